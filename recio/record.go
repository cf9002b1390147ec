// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package recio implements record buffers and parsing for the sorter:
// the record wire format, the write-side render buffer that packs
// records into memory and spills them to a file, the read-side parse
// buffer that refills from a file, and the record parser that iterates
// over (header, body) pairs.
package recio

import "encoding/binary"

const (
	// KeySize is the size of a record key.
	KeySize = 64
	// HeaderSize is the exact wire size of an external record header:
	// the key followed by flags, crc and the body size, packed without
	// padding.
	HeaderSize = 88
	// InternalHeaderSize is the buffer size of an internal record
	// header, which extends the external form with the body's position
	// in the original input and a flag telling whether the body bytes
	// follow the header. Internal headers are padded to a multiple of
	// their alignment.
	InternalHeaderSize = 112
	// InternalAlign is the buffer alignment of internal headers. The
	// 16-byte alignment lets sort handles address records with a
	// 32-bit offset instead of a pointer.
	InternalAlign = 16
	// MaxBodySize caps record bodies. A larger declared body is
	// malformed input.
	MaxBodySize = 100 << 20
)

// A Repr is a value with a fixed buffer representation. It controls
// how RenderBuf.Put lays the value out and how ParseBuf.Get recovers
// it: the encoded size, the required alignment, and the encoding
// itself. All representations are little-endian.
type Repr interface {
	// ReprSize returns the encoded size in bytes.
	ReprSize() int
	// ReprAlign returns the required buffer alignment, a power of two.
	ReprAlign() int
	// Marshal encodes the value into p, which has ReprSize bytes.
	Marshal(p []byte)
	// Unmarshal decodes the value from p, which has ReprSize bytes.
	Unmarshal(p []byte)
}

// A Header is an external record header exactly as it appears on the
// wire. Records are concatenated without delimiters: a header is
// immediately followed by BodySize bytes of body.
type Header struct {
	Key      [KeySize]byte
	Flags    uint64
	CRC      uint64
	BodySize uint64
}

// ReprSize implements Repr.
func (*Header) ReprSize() int { return HeaderSize }

// ReprAlign implements Repr. External headers are packed with
// alignment 1.
func (*Header) ReprAlign() int { return 1 }

// Marshal implements Repr.
func (h *Header) Marshal(p []byte) {
	copy(p, h.Key[:])
	binary.LittleEndian.PutUint64(p[64:], h.Flags)
	binary.LittleEndian.PutUint64(p[72:], h.CRC)
	binary.LittleEndian.PutUint64(p[80:], h.BodySize)
}

// Unmarshal implements Repr.
func (h *Header) Unmarshal(p []byte) {
	copy(h.Key[:], p)
	h.Flags = binary.LittleEndian.Uint64(p[64:])
	h.CRC = binary.LittleEndian.Uint64(p[72:])
	h.BodySize = binary.LittleEndian.Uint64(p[80:])
}

// An Internal is the sort-phase form of a record header. It extends
// the external header with the position of the body in the original
// input and a presence flag. When BodyPresent is zero, the body bytes
// are absent from the buffer holding the header; emitting the record
// requires reading them back from BodyPos in the original input.
type Internal struct {
	Header
	BodyPos     uint64
	BodyPresent uint64
}

// ReprSize implements Repr.
func (*Internal) ReprSize() int { return InternalHeaderSize }

// ReprAlign implements Repr.
func (*Internal) ReprAlign() int { return InternalAlign }

// Marshal implements Repr.
func (h *Internal) Marshal(p []byte) {
	h.Header.Marshal(p)
	binary.LittleEndian.PutUint64(p[88:], h.BodyPos)
	binary.LittleEndian.PutUint64(p[96:], h.BodyPresent)
	binary.LittleEndian.PutUint64(p[104:], 0)
}

// Unmarshal implements Repr.
func (h *Internal) Unmarshal(p []byte) {
	h.Header.Unmarshal(p)
	h.BodyPos = binary.LittleEndian.Uint64(p[88:])
	h.BodyPresent = binary.LittleEndian.Uint64(p[96:])
}
