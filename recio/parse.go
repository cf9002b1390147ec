// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package recio

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/xxlsort/fileio"
	"github.com/grailbio/xxlsort/mem"
)

// A ParseBuf consumes input data: the read-side mirror of RenderBuf.
// It holds a memory region and the unread suffix of the most recent
// refill. Refills land at an offset equal to the file position modulo
// mem.AlignmentMax, keeping buffer offsets congruent with logical file
// positions.
type ParseBuf struct {
	f    *fileio.File
	mem  mem.Chunk
	data mem.Chunk // unread suffix of the last refill
}

// NewParseBuf returns a parse buffer over region m reading from f.
func NewParseBuf(m mem.Chunk, f *fileio.File) *ParseBuf {
	return &ParseBuf{f: f, mem: m.Aligned(mem.AlignmentMax)}
}

// Pos returns the logical position of the next unread byte.
func (b *ParseBuf) Pos() int64 {
	return b.f.Pos() - int64(len(b.data))
}

// Read copies up to len(p) bytes into p, refilling the region from the
// input file as needed, and returns the number of bytes copied. A
// short count indicates EOF.
func (b *ParseBuf) Read(p []byte) (int, error) {
	var n int
	for n < len(p) {
		if len(b.data) == 0 {
			if err := b.fill(); err != nil {
				return n, err
			}
			if len(b.data) == 0 {
				break
			}
		}
		k := copy(p[n:], b.data)
		b.data = b.data.Suffix(k)
		n += k
	}
	return n, nil
}

func (b *ParseBuf) fill() error {
	// Refill at the file-position offset to keep memory and file
	// alignment in sync.
	window := b.mem.Suffix(int(b.f.Pos() & (mem.AlignmentMax - 1)))
	n, err := b.f.Read(window)
	if err != nil {
		return err
	}
	b.data = window.Sub(0, n)
	return nil
}

// Get reads v's representation from the buffer, aligning first. It
// returns false at a clean EOF (no bytes remained) and an error if the
// representation was truncated.
func (b *ParseBuf) Get(v Repr) (bool, error) {
	if n := v.ReprAlign(); n != 1 {
		if err := b.Align(n); err != nil {
			return false, err
		}
	}
	var scratch [128]byte
	size := v.ReprSize()
	p := scratch[:]
	if size > len(p) {
		p = make([]byte, size)
	}
	n, err := b.Read(p[:size])
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if n < size {
		return false, errors.E(errors.Integrity, "Malformed data")
	}
	v.Unmarshal(p[:size])
	return true, nil
}

// Skip advances past n bytes, seeking the underlying file when n
// exceeds the buffered suffix.
func (b *ParseBuf) Skip(n int64) error {
	if n <= int64(len(b.data)) {
		b.data = b.data.Suffix(int(n))
		return nil
	}
	n -= int64(len(b.data))
	b.data = nil
	return b.f.SetPos(b.f.Pos() + n)
}

// Align skips up to n-1 bytes so that the next unread byte lands on a
// multiple of n.
func (b *ParseBuf) Align(n int) error {
	pos := b.Pos()
	return b.Skip(mem.AlignUp(pos, n) - pos)
}
