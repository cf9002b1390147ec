// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package recio

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/xxlsort/fileio"
	"github.com/grailbio/xxlsort/mem"
)

// A RenderBuf produces output data: it packs bytes and typed values
// into a memory region and, when the region fills up, spills the
// populated prefix to an output file and restarts the region from
// offset zero. The region length is trimmed to a multiple of
// mem.AlignmentMax so that buffer offsets stay congruent with logical
// file positions across restarts.
//
// A RenderBuf without an output file is a pure memory arena; filling
// it up is an error. The sort-run builder uses this mode and
// pre-checks free space before every placement.
type RenderBuf struct {
	f   *fileio.File
	mem mem.Chunk
	// The populated prefix not yet spilled is mem[start:end]; start
	// advances on Flush, end on writes.
	start, end int
	// spilled counts bytes already written to the file.
	spilled int64
}

// NewRenderBuf returns a render buffer over region m writing to f,
// which may be nil for a memory-only buffer.
func NewRenderBuf(m mem.Chunk, f *fileio.File) *RenderBuf {
	return &RenderBuf{f: f, mem: m.Aligned(mem.AlignmentMax)}
}

// Pos returns the logical position of the next byte: the bytes already
// spilled to the file plus the bytes currently populated.
func (b *RenderBuf) Pos() int64 {
	return b.spilled + int64(b.end-b.start)
}

// FreeLen returns the number of unpopulated bytes remaining in the
// region. Unlike FreeMem it never spills.
func (b *RenderBuf) FreeLen() int {
	return len(b.mem) - b.end
}

// FreeMem returns the unpopulated remainder of the region, spilling
// the populated prefix and restarting the region if none remains.
// Bytes placed into the returned chunk become part of the buffer only
// once passed back through Write.
func (b *RenderBuf) FreeMem() (mem.Chunk, error) {
	free := b.mem.Suffix(b.end)
	if len(free) == 0 {
		if err := b.spill(); err != nil {
			return nil, err
		}
		free = b.mem
		if len(free) == 0 {
			return nil, errors.E(errors.Precondition, "recio: empty render region")
		}
	}
	return free, nil
}

func (b *RenderBuf) spill() error {
	if b.f == nil {
		return errors.E(errors.Precondition, "recio: render buffer has no output file")
	}
	if err := b.f.Write(b.mem[b.start:b.end]); err != nil {
		return err
	}
	b.spilled += int64(b.end - b.start)
	b.start, b.end = 0, 0
	return nil
}

// Write appends p to the populated prefix and returns the region
// offset at which the first byte was placed. The offset identifies a
// stable location only if the caller ensured the write could not
// spill; after a spill it is meaningful only as "written".
func (b *RenderBuf) Write(p []byte) (int, error) {
	origin := b.end
	first := true
	for len(p) > 0 {
		free, err := b.FreeMem()
		if err != nil {
			return 0, err
		}
		if first {
			origin = b.end
			first = false
		}
		k := len(p)
		if k > len(free) {
			k = len(free)
		}
		data := mem.Append(b.mem[b.start:b.end], p[:k])
		b.end = b.start + len(data)
		p = p[k:]
	}
	return origin, nil
}

// Put aligns the buffer to v's representation alignment and then
// writes v's representation, returning the region offset of its first
// byte. The offset is stable under the same condition as Write's.
func (b *RenderBuf) Put(v Repr) (int, error) {
	if err := b.Align(v.ReprAlign()); err != nil {
		return 0, err
	}
	var scratch [128]byte
	size := v.ReprSize()
	p := scratch[:]
	if size > len(p) {
		p = make([]byte, size)
	}
	v.Marshal(p[:size])
	return b.Write(p[:size])
}

// Skip advances the buffer by n zero bytes.
func (b *RenderBuf) Skip(n int) error {
	for n > 0 {
		free, err := b.FreeMem()
		if err != nil {
			return err
		}
		k := n
		if k > len(free) {
			k = len(free)
		}
		free.Sub(0, k).Zero()
		if _, err = b.Write(free[:k]); err != nil {
			return err
		}
		n -= k
	}
	return nil
}

// Align skips up to n-1 zero bytes so that the next byte lands on a
// multiple of n. n must be a power of two no greater than
// mem.AlignmentMax. Because the region length is a multiple of
// mem.AlignmentMax, aligning the region offset aligns the logical
// position equally.
func (b *RenderBuf) Align(n int) error {
	pad := int(mem.AlignUp(int64(b.end), n)) - b.end
	return b.Skip(pad)
}

// Flush writes the populated prefix to the output file and syncs it.
// The buffer continues from its current offset, keeping memory and
// file positions congruent.
func (b *RenderBuf) Flush() error {
	if b.f == nil {
		return errors.E(errors.Precondition, "recio: render buffer has no output file")
	}
	if err := b.f.Write(b.mem[b.start:b.end]); err != nil {
		return err
	}
	b.spilled += int64(b.end - b.start)
	b.start = b.end
	return b.f.Sync()
}
