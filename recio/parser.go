// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package recio

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/xxlsort/fileio"
	"github.com/grailbio/xxlsort/mem"
)

// A HeaderCodec parses the next record header out of a parse buffer,
// producing the internal header form and the number of body bytes that
// follow in the stream. It returns ok=false at a clean EOF.
type HeaderCodec interface {
	ParseHeader(b *ParseBuf, hd *Internal) (bodyBytes uint64, ok bool, err error)
}

// ExternalCodec parses the external wire form, recording the body's
// file position and marking the body present. It is the codec for
// original input files.
type ExternalCodec struct{}

// ParseHeader implements HeaderCodec.
func (ExternalCodec) ParseHeader(b *ParseBuf, hd *Internal) (uint64, bool, error) {
	var ext Header
	ok, err := b.Get(&ext)
	if err != nil || !ok {
		return 0, false, err
	}
	if ext.BodySize > MaxBodySize {
		return 0, false, errors.E(errors.Integrity, "Malformed data")
	}
	hd.Header = ext
	hd.BodyPos = uint64(b.Pos())
	hd.BodyPresent = 1
	return ext.BodySize, true, nil
}

// InternalCodec parses the internal header form found in transient
// runs. Bypassed records carry no body bytes in the run, so the body
// length in the stream is zero for them.
type InternalCodec struct{}

// ParseHeader implements HeaderCodec.
func (InternalCodec) ParseHeader(b *ParseBuf, hd *Internal) (uint64, bool, error) {
	ok, err := b.Get(hd)
	if err != nil || !ok {
		return 0, false, err
	}
	if hd.BodyPresent == 0 {
		return 0, true, nil
	}
	return hd.BodySize, true, nil
}

// A Parser is a stateful cursor over a stream of (header, body)
// records on top of a parse buffer. After construction and after each
// successful Next, the current header is valid and the body may be
// read incrementally with ReadBody.
type Parser struct {
	buf      *ParseBuf
	codec    HeaderCodec
	hd       Internal
	valid    bool
	bodyLeft uint64
}

// NewParser returns a parser over f using region m for buffering,
// positioned at the first record. The parser does not own f.
func NewParser(m mem.Chunk, f *fileio.File, codec HeaderCodec) (*Parser, error) {
	p := &Parser{buf: NewParseBuf(m, f), codec: codec}
	if _, err := p.Next(); err != nil {
		return nil, err
	}
	return p, nil
}

// Next skips whatever remains of the current record's body and parses
// the next header. It returns false at a clean EOF.
func (p *Parser) Next() (bool, error) {
	if err := p.buf.Skip(int64(p.bodyLeft)); err != nil {
		return false, err
	}
	n, ok, err := p.codec.ParseHeader(p.buf, &p.hd)
	p.bodyLeft = n
	p.valid = ok && err == nil
	return p.valid, err
}

// Valid reports whether the parser holds a current header.
func (p *Parser) Valid() bool { return p.valid }

// Header returns the current header. It is valid only after Next
// returned true.
func (p *Parser) Header() *Internal { return &p.hd }

// BodyLeft returns the number of unread body bytes of the current
// record.
func (p *Parser) BodyLeft() uint64 { return p.bodyLeft }

// ReadBody reads up to min(len(dst), BodyLeft()) body bytes into dst,
// returning the number read; zero means the body is exhausted. Running
// out of input before the declared body size is satisfied is fatal.
func (p *Parser) ReadBody(dst []byte) (int, error) {
	k := len(dst)
	if uint64(k) > p.bodyLeft {
		k = int(p.bodyLeft)
	}
	if k == 0 {
		return 0, nil
	}
	n, err := p.buf.Read(dst[:k])
	if err != nil {
		return n, err
	}
	if n != k {
		return n, errors.E(errors.Integrity, "Data corrupt")
	}
	p.bodyLeft -= uint64(k)
	return n, nil
}
