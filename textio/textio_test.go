// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package textio

import (
	"bufio"
	"bytes"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/grailbio/xxlsort/recio"
)

func TestParseLine(t *testing.T) {
	hd, seed, err := ParseLine("somekey 1 2 3 4")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(hd.Key[:7]), "somekey"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	for _, b := range hd.Key[7:] {
		if b != 0 {
			t.Fatal("key not zero-padded")
		}
	}
	if got, want := hd.Flags, uint64(1); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := hd.CRC, uint64(2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := hd.BodySize, uint64(3); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := seed, uint64(4); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseLineLongKey(t *testing.T) {
	key := strings.Repeat("k", 80)
	hd, _, err := ParseLine(key + " 0 0 0 0")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(hd.Key[:]), key[:recio.KeySize]; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseLineBad(t *testing.T) {
	for _, line := range []string{
		"",
		"a b c",
		"key 1 2 3 4 5",
		"key x 2 3 4",
		"key 1 x 3 4",
		"key 1 2 x 4",
		"key 1 2 3 x",
		"key 1 2 209715201 4", // body over 100 MiB
	} {
		if _, _, err := ParseLine(line); err == nil {
			t.Errorf("%q: expected error", line)
		}
	}
}

func TestBodyStream(t *testing.T) {
	a := make([]byte, 4096)
	NewBodyStream(7).Fill(a)
	// The same seed reproduces the same bytes regardless of chunking.
	b := make([]byte, 4096)
	s := NewBodyStream(7)
	for i := 0; i < len(b); i += 123 {
		end := i + 123
		if end > len(b) {
			end = len(b)
		}
		s.Fill(b[i:end])
	}
	if !bytes.Equal(a, b) {
		t.Error("chunked fill differs from whole fill")
	}
	c := make([]byte, 4096)
	NewBodyStream(8).Fill(c)
	if bytes.Equal(a, c) {
		t.Error("different seeds produced identical bodies")
	}
}

func TestBinarize(t *testing.T) {
	in := strings.Join([]string{
		"beta 1 2 10 3",
		"not a record",
		"alpha 4 5 0 6",
	}, "\n")
	out := recio.NewRenderBuf(make([]byte, 256<<10), nil)
	if err := Binarize(out, strings.NewReader(in)); err != nil {
		t.Fatal(err)
	}
	if got, want := out.Pos(), int64(2*recio.HeaderSize+10); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestGenerate(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	var buf bytes.Buffer
	const total = 1 << 16
	if err := Generate(&buf, total, LogNormal(r, 3.0, 2.3), r); err != nil {
		t.Fatal(err)
	}
	var encoded int64
	scan := bufio.NewScanner(&buf)
	for scan.Scan() {
		fields := strings.Fields(scan.Text())
		if got, want := len(fields), 5; got != want {
			t.Fatalf("got %v fields, want %v", got, want)
		}
		size, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			t.Fatal(err)
		}
		encoded += recio.HeaderSize + size
	}
	if encoded < total {
		t.Errorf("generated %d encoded bytes, want >= %d", encoded, total)
	}
}
