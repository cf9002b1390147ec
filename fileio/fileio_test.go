// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package fileio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
)

func TestReadWriteSeek(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "fileio")
	defer cleanup()
	id := NewID(filepath.Join(dir, "data"))

	f, err := Create(id)
	if err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte("0123456789"), 100)
	if err = f.Write(payload); err != nil {
		t.Fatal(err)
	}
	if got, want := f.Pos(), int64(len(payload)); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err = f.Sync(); err != nil {
		t.Fatal(err)
	}
	if err = f.Close(); err != nil {
		t.Fatal(err)
	}

	g, err := OpenRead(id)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	if !g.Seekable() {
		t.Error("regular file not seekable")
	}
	p := make([]byte, 10)
	if err = g.SetPos(500); err != nil {
		t.Fatal(err)
	}
	n, err := g.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := n, 10; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got, want := string(p), "0123456789"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	// Reading past EOF returns a short count, not an error.
	if err = g.SetPos(995); err != nil {
		t.Fatal(err)
	}
	n, err = g.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := n, 5; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := OpenRead(NewID("/no/such/file")); err == nil {
		t.Error("expected error")
	}
	if _, err := OpenRead(nil); err == nil {
		t.Error("expected error")
	}
}

func TestTempAutoUnlink(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "fileio")
	defer cleanup()
	t.Setenv("TMP", dir)

	id, err := NewTemp()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := filepath.Dir(id.Path()), dir; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if !strings.HasPrefix(filepath.Base(id.Path()), "xxlsort-") {
		t.Errorf("unexpected name %s", id.Path())
	}
	if _, err = os.Stat(id.Path()); err != nil {
		t.Fatal(err)
	}
	id.Release()
	if _, err = os.Stat(id.Path()); !os.IsNotExist(err) {
		t.Errorf("temp file survived release: %v", err)
	}
	// Release is idempotent.
	id.Release()
}

func TestTempDirOrder(t *testing.T) {
	t.Setenv("TMP", "")
	t.Setenv("TEMP", "")
	t.Setenv("TMPDIR", "")
	if got, want := TempDir(), "/tmp"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	t.Setenv("TMPDIR", "/a")
	if got, want := TempDir(), "/a"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	t.Setenv("TEMP", "/b")
	if got, want := TempDir(), "/b"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	t.Setenv("TMP", "/c")
	if got, want := TempDir(), "/c"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDisarmedRelease(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "fileio")
	defer cleanup()
	t.Setenv("TMP", dir)

	id, err := NewTemp()
	if err != nil {
		t.Fatal(err)
	}
	id.SetAutoUnlink(false)
	id.Release()
	if _, err = os.Stat(id.Path()); err != nil {
		t.Errorf("disarmed release removed file: %v", err)
	}
}
