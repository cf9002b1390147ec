// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package defaultsize holds the default sizes of the sorter's working
// regions. They are package variables so that tests can shrink them;
// production code leaves them alone.
package defaultsize

var (
	// ParseBuf is the split-phase input buffer carved off the arena
	// once, ahead of all runs.
	ParseBuf = 4 << 20
	// SpillBuf is the output buffer through which each sorted run is
	// written during the split phase.
	SpillBuf = 25 << 20
	// MergeOutBuf is the output buffer of a merge group.
	MergeOutBuf = 40 << 20
	// MergeInBuf is the per-stream input buffer of a merge group; it
	// bounds how many runs one group can merge.
	MergeInBuf = 25 << 20
	// BypassThreshold is the body size at and above which bodies of a
	// seekable input are left on disk during the sort phase rather
	// than packed into the arena.
	BypassThreshold = 1 << 20
)
