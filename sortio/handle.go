// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package sortio implements the sorter's two phases: split-and-sort,
// which packs records and sort handles into a memory arena from
// opposite ends and emits sorted runs, and the k-way merge that
// combines runs through a min-heap of stream cursors.
package sortio

import (
	"bytes"
	"unsafe"

	"github.com/grailbio/xxlsort/mem"
	"github.com/grailbio/xxlsort/recio"
)

const (
	handleSize = 16
	prefixSize = 12
)

// A handle is the 16-byte sort surrogate for a packed record: the
// first 12 bytes of its key plus the record's offset from the arena
// base. Two handles fit in a cache line, and the prefix resolves most
// comparisons without dereferencing into the record.
type handle struct {
	prefix [prefixSize]byte
	off    uint32
}

// handleArea aliases the arena region as a handle array. The handle
// stack occupies the array's tail, growing downward. The region base
// must be 16-byte aligned.
func handleArea(region mem.Chunk) []handle {
	if len(region) < handleSize {
		return nil
	}
	return unsafe.Slice((*handle)(unsafe.Pointer(&region[0])), len(region)/handleSize)
}

// byKey orders handles by full record key: the 12-byte prefix first
// and, on a prefix tie, the remaining key bytes resolved through the
// arena base.
type byKey struct {
	handles []handle
	base    mem.Chunk
}

func (s byKey) Len() int      { return len(s.handles) }
func (s byKey) Swap(i, j int) { s.handles[i], s.handles[j] = s.handles[j], s.handles[i] }

func (s byKey) Less(i, j int) bool {
	hi, hj := &s.handles[i], &s.handles[j]
	if c := bytes.Compare(hi.prefix[:], hj.prefix[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(s.tail(hi), s.tail(hj)) < 0
}

func (s byKey) tail(h *handle) []byte {
	return s.base[int(h.off)+prefixSize : int(h.off)+recio.KeySize]
}
