// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package mem provides chunks: views onto caller-owned byte ranges
// from which the sorter carves its working regions. A chunk does not
// own its bytes; ownership sits with whoever allocated the underlying
// block.
package mem

import "unsafe"

// AlignmentMax is the largest alignment accepted by Aligned and by the
// buffer alignment operations built on top of chunks. Working regions
// are trimmed to AlignmentMax boundaries so that buffer offsets remain
// congruent with logical file positions.
const AlignmentMax = 64 << 10

// A Chunk is a contiguous byte range. The zero Chunk is empty and
// ready to use. Chunks are plain slices: sub-slicing a chunk aliases
// the same memory.
type Chunk []byte

// Sub returns the sub-chunk of size bytes starting at offset. Both
// offset and size are clamped to the chunk's bounds.
func (c Chunk) Sub(offset, size int) Chunk {
	rest := c.Suffix(offset)
	if size > len(rest) {
		size = len(rest)
	}
	return rest[:size]
}

// Suffix returns the sub-chunk starting at offset and extending to the
// end of the chunk. The offset is clamped to the chunk's length.
func (c Chunk) Suffix(offset int) Chunk {
	if offset > len(c) {
		offset = len(c)
	}
	return c[offset:]
}

// Split splits the chunk at pos, returning the left and right halves.
// The position is clamped to the chunk's length.
func (c Chunk) Split(pos int) (left, right Chunk) {
	if pos > len(c) {
		pos = len(c)
	}
	return c[:pos], c[pos:]
}

// Aligned returns the largest sub-chunk whose base address is aligned
// to n and whose length is a multiple of n. n must be a power of two
// no greater than AlignmentMax; Aligned panics otherwise.
func (c Chunk) Aligned(n int) Chunk {
	CheckAlignment(n)
	if len(c) == 0 {
		return c
	}
	origin := uintptr(unsafe.Pointer(&c[0]))
	skip := int(AlignUp(int64(origin), n) - int64(origin))
	sub := c.Suffix(skip)
	return sub[:len(sub)&^(n-1)]
}

// Zero zeroes the chunk's bytes.
func (c Chunk) Zero() {
	for i := range c {
		c[i] = 0
	}
}

// Append extends dst by src, copying bytes unless src already sits
// immediately past dst's end, in which case the extension is in place.
// dst must have capacity for the result.
func Append(dst, src Chunk) Chunk {
	if len(src) == 0 {
		return dst
	}
	grown := dst[: len(dst)+len(src) : cap(dst)]
	if &grown[len(dst)] != &src[0] {
		copy(grown[len(dst):], src)
	}
	return grown
}

// AlignUp rounds pos up to the next multiple of n, which must be a
// power of two no greater than AlignmentMax.
func AlignUp(pos int64, n int) int64 {
	CheckAlignment(n)
	return (pos + int64(n) - 1) &^ int64(n-1)
}

// CheckAlignment panics unless n is a positive power of two no greater
// than AlignmentMax. Passing a bad alignment is a programming error,
// not a runtime condition.
func CheckAlignment(n int) {
	if n <= 0 || n&(n-1) != 0 || n > AlignmentMax {
		panic("mem: bad alignment")
	}
}
