// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package recio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/xxlsort/fileio"
	"github.com/grailbio/xxlsort/mem"
)

const testRegion = 3 * mem.AlignmentMax

func tempFile(t *testing.T) (*fileio.ID, func()) {
	t.Helper()
	dir, cleanup := testutil.TempDir(t, "", "recio")
	return fileio.NewID(filepath.Join(dir, "out")), cleanup
}

func TestRenderSpill(t *testing.T) {
	id, cleanup := tempFile(t)
	defer cleanup()
	f, err := fileio.Create(id)
	if err != nil {
		t.Fatal(err)
	}
	b := NewRenderBuf(make([]byte, testRegion), f)

	// Write several times the buffer capacity and check the file holds
	// exactly the written byte sequence.
	chunk := bytes.Repeat([]byte("abcdefgh"), 1024) // 8 KiB
	const rounds = 40                               // 320 KiB total, > region
	for i := 0; i < rounds; i++ {
		chunk[0] = byte(i)
		if _, err = b.Write(chunk); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := b.Pos(), int64(rounds*len(chunk)); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err = b.Flush(); err != nil {
		t.Fatal(err)
	}
	if err = f.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(id.Path())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(data), rounds*len(chunk); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := 0; i < rounds; i++ {
		chunk[0] = byte(i)
		if !bytes.Equal(data[i*len(chunk):(i+1)*len(chunk)], chunk) {
			t.Fatalf("round %d mismatch", i)
		}
	}
}

func TestRenderStableOffset(t *testing.T) {
	b := NewRenderBuf(make([]byte, testRegion), nil)
	off1, err := b.Write([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	off2, err := b.Write([]byte("world"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := off1, 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := off2, 5; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRenderAlign(t *testing.T) {
	b := NewRenderBuf(make([]byte, testRegion), nil)
	if _, err := b.Write([]byte("xyz")); err != nil {
		t.Fatal(err)
	}
	if err := b.Align(16); err != nil {
		t.Fatal(err)
	}
	if got, want := b.Pos(), int64(16); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	// Aligning an aligned buffer is a no-op.
	if err := b.Align(16); err != nil {
		t.Fatal(err)
	}
	if got, want := b.Pos(), int64(16); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRenderSkip(t *testing.T) {
	b := NewRenderBuf(make([]byte, testRegion), nil)
	total := b.FreeLen()
	if err := b.Skip(100); err != nil {
		t.Fatal(err)
	}
	if got, want := b.Pos(), int64(100); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := b.FreeLen(), total-100; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRenderNoFile(t *testing.T) {
	// A memory-only render buffer reports an error when it fills up.
	b := NewRenderBuf(make([]byte, testRegion), nil)
	free, err := b.FreeMem()
	if err != nil {
		t.Fatal(err)
	}
	if _, err = b.Write(free); err != nil {
		t.Fatal(err)
	}
	if _, err = b.Write([]byte("x")); err == nil {
		t.Error("expected error")
	}
}

func TestPutHeader(t *testing.T) {
	b := NewRenderBuf(make([]byte, testRegion), nil)
	var hd Header
	copy(hd.Key[:], "key")
	hd.Flags, hd.CRC, hd.BodySize = 1, 2, 3
	off, err := b.Put(&hd)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := off, 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := b.Pos(), int64(HeaderSize); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
