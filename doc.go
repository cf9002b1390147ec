// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package xxlsort sorts arbitrarily large streams of fixed-header,
// variable-body records by their 64-byte key using bounded memory.
// Input and output are ordinary files; intermediate sorted runs are
// staged in temporary files that are removed before the sort returns,
// whether it succeeds or fails. No signal handler is installed: a
// process killed by a signal leaves them, and a partial output, behind.
//
// The sort proceeds in two phases. Split-and-sort fills a single
// preallocated memory arena with records and 16-byte sort handles
// growing toward each other from opposite ends, sorts the handles in
// place, and writes one sorted run per arena filling. The k-way merge
// then combines runs through a min-heap of stream cursors until a
// single run, the destination, remains. Oversized record bodies are
// left on disk during the sort and fetched back only when the final
// output is written.
//
// The driver allocates the arena once, sized by the AVAILABLE_MEM
// environment variable (default 8 GiB), and keeps the destination
// marked for unlinking until the sort completes, so a failure never
// leaves a half-written output behind.
package xxlsort
