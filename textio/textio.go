// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package textio converts between the sorter's binary record format
// and the textual sample format used by the test pipeline:
//
//	key flags crc body_size body_seed
//
// whitespace-separated, one record per line. Bodies are not spelled
// out: body_seed feeds a reproducible 64-bit-word stream from which
// the body is synthesized.
package textio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/xxlsort/recio"
	"github.com/spaolacci/murmur3"
)

// ParseLine parses one textual record line into a header and the body
// seed. The key is truncated or zero-padded to 64 bytes. A line that
// does not parse into five fields, or that declares a body larger
// than recio.MaxBodySize, is rejected.
func ParseLine(line string) (hd recio.Header, seed uint64, err error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return hd, 0, errors.E(errors.Invalid, fmt.Sprintf("expected 5 fields, got %d", len(fields)))
	}
	copy(hd.Key[:], fields[0])
	if hd.Flags, err = strconv.ParseUint(fields[1], 10, 64); err != nil {
		return hd, 0, errors.E(errors.Invalid, "bad flags", err)
	}
	if hd.CRC, err = strconv.ParseUint(fields[2], 10, 64); err != nil {
		return hd, 0, errors.E(errors.Invalid, "bad crc", err)
	}
	if hd.BodySize, err = strconv.ParseUint(fields[3], 10, 64); err != nil {
		return hd, 0, errors.E(errors.Invalid, "bad body size", err)
	}
	if hd.BodySize > recio.MaxBodySize {
		return hd, 0, errors.E(errors.Invalid, fmt.Sprintf("body size %d too large", hd.BodySize))
	}
	if seed, err = strconv.ParseUint(fields[4], 10, 64); err != nil {
		return hd, 0, errors.E(errors.Invalid, "bad body seed", err)
	}
	return hd, seed, nil
}

// A BodyStream synthesizes a record body deterministically from its
// seed, one 64-bit word at a time.
type BodyStream struct {
	seed uint32
	ctr  uint64
	word [8]byte
	rem  []byte
}

// NewBodyStream returns the body stream for seed.
func NewBodyStream(seed uint64) *BodyStream {
	return &BodyStream{seed: uint32(seed) ^ uint32(seed>>32)}
}

// Fill fills p with the next bytes of the stream.
func (s *BodyStream) Fill(p []byte) {
	for len(p) > 0 {
		if len(s.rem) == 0 {
			var ctr [8]byte
			binary.LittleEndian.PutUint64(ctr[:], s.ctr)
			s.ctr++
			binary.LittleEndian.PutUint64(s.word[:], murmur3.Sum64WithSeed(ctr[:], s.seed))
			s.rem = s.word[:]
		}
		n := copy(p, s.rem)
		s.rem = s.rem[n:]
		p = p[n:]
	}
}

// Binarize reads textual records from r and renders their binary form
// into out. Lines that fail to parse are reported and skipped. The
// caller flushes out.
func Binarize(out *recio.RenderBuf, r io.Reader) error {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 1<<20), 1<<20)
	for scan.Scan() {
		hd, seed, err := ParseLine(scan.Text())
		if err != nil {
			log.Error.Printf("line ignored: %v", err)
			continue
		}
		if _, err = out.Put(&hd); err != nil {
			return err
		}
		stream := NewBodyStream(seed)
		left := hd.BodySize
		for left > 0 {
			free, err := out.FreeMem()
			if err != nil {
				return err
			}
			k := len(free)
			if uint64(k) > left {
				k = int(left)
			}
			stream.Fill(free[:k])
			if _, err = out.Write(free[:k]); err != nil {
				return err
			}
			left -= uint64(k)
		}
	}
	return scan.Err()
}
