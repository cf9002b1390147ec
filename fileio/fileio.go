// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package fileio implements the sorter's file layer: named files with
// an optional auto-unlink guarantee, and open files with EINTR-safe
// blocking I/O and a tracked logical position.
package fileio

import (
	"fmt"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"golang.org/x/sys/unix"
)

// An ID names a file on disk, as opposed to an open file. An ID marked
// auto-unlink removes its path from the filesystem when released, so
// that transient runs and half-written outputs do not outlive a sort
// that returns, successfully or not. Release is idempotent.
type ID struct {
	path       string
	autoUnlink bool
}

// NewID returns an ID for the given path. The ID is not marked
// auto-unlink.
func NewID(path string) *ID {
	return &ID{path: path}
}

// NewTemp creates an empty temporary file in TempDir and returns its
// ID, marked auto-unlink.
func NewTemp() (*ID, error) {
	f, err := os.CreateTemp(TempDir(), "xxlsort-*")
	if err != nil {
		return nil, errors.E(err, "creating temporary file")
	}
	if err = f.Close(); err != nil {
		log.Error.Printf("closing %s: %v", f.Name(), err)
	}
	return &ID{path: f.Name(), autoUnlink: true}, nil
}

// Path returns the file's path.
func (id *ID) Path() string { return id.path }

// SetAutoUnlink arranges for the path to be removed when the ID is
// released (or not, if b is false).
func (id *ID) SetAutoUnlink(b bool) { id.autoUnlink = b }

// Release removes the path from the filesystem if the ID is marked
// auto-unlink. Subsequent calls are no-ops.
func (id *ID) Release() {
	if id == nil || !id.autoUnlink {
		return
	}
	id.autoUnlink = false
	if err := os.Remove(id.path); err != nil && !os.IsNotExist(err) {
		log.Error.Printf("unlinking %s: %v", id.path, err)
	}
}

// TempDir returns the directory in which transient files are created:
// the first of TMP, TEMP and TMPDIR that is set, else /tmp.
func TempDir() string {
	for _, key := range []string{"TMP", "TEMP", "TMPDIR"} {
		if dir := os.Getenv(key); dir != "" {
			return dir
		}
	}
	return "/tmp"
}

// A File is an open file together with its logical byte position. All
// I/O is synchronous and blocking; reads and writes restart on EINTR.
// Files need not be seekable, though SetPos fails on ones that are
// not.
type File struct {
	fd  int
	id  *ID
	pos int64
}

func open(id *ID, flags int) (*File, error) {
	if id == nil {
		return nil, errors.E(errors.Precondition, "fileio: nil file")
	}
	for {
		fd, err := unix.Open(id.path, flags, 0600)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("opening %s", id.path))
		}
		return &File{fd: fd, id: id}, nil
	}
}

// OpenRead opens the named file for reading.
func OpenRead(id *ID) (*File, error) {
	return open(id, unix.O_RDONLY)
}

// Create opens the named file for writing, creating it if necessary
// and truncating it otherwise.
func Create(id *ID) (*File, error) {
	return open(id, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC)
}

// NewFile returns a File wrapping an already-open descriptor, such as
// a standard stream. The descriptor is owned by the returned File.
func NewFile(fd int, name string) *File {
	return &File{fd: fd, id: NewID(name)}
}

// Name returns the file's path.
func (f *File) Name() string { return f.id.path }

// ID returns the file's ID.
func (f *File) ID() *ID { return f.id }

// Pos returns the file's logical position: the offset at which the
// next read or write will take place.
func (f *File) Pos() int64 { return f.pos }

// SetPos seeks the file to pos. Seeking a non-seekable file fails.
func (f *File) SetPos(pos int64) error {
	if pos == f.pos {
		return nil
	}
	f.pos = pos
	if _, err := unix.Seek(f.fd, pos, unix.SEEK_SET); err != nil {
		return errors.E(err, fmt.Sprintf("seeking in %s", f.id.path))
	}
	return nil
}

// Seekable reports whether the file supports seeking. Only regular
// files do.
func (f *File) Seekable() bool {
	var st unix.Stat_t
	if err := unix.Fstat(f.fd, &st); err != nil {
		log.Error.Printf("fstat %s: %v", f.id.path, err)
		return false
	}
	return st.Mode&unix.S_IFMT == unix.S_IFREG
}

// Read reads into p until p is full or the file is exhausted,
// returning the number of bytes read. A short count with a nil error
// indicates EOF.
func (f *File) Read(p []byte) (int, error) {
	var n int
	for n < len(p) {
		s, err := unix.Read(f.fd, p[n:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return n, errors.E(err, fmt.Sprintf("reading from %s", f.id.path))
		}
		if s == 0 {
			break
		}
		n += s
		f.pos += int64(s)
	}
	return n, nil
}

// Write writes all of p to the file.
func (f *File) Write(p []byte) error {
	for len(p) > 0 {
		s, err := unix.Write(f.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return errors.E(err, fmt.Sprintf("writing to %s", f.id.path))
		}
		p = p[s:]
		f.pos += int64(s)
	}
	return nil
}

// Sync flushes the file's data to stable storage. EINVAL from a
// non-seekable sink (a pipe, a socket) is tolerated.
func (f *File) Sync() error {
	for {
		err := unix.Fsync(f.fd)
		switch err {
		case unix.EINTR:
			continue
		case unix.EINVAL:
			return nil
		case nil:
			return nil
		default:
			return errors.E(err, fmt.Sprintf("flushing %s", f.id.path))
		}
	}
}

// Close releases the file's descriptor. Close retries on EINTR, which
// close(2) can in fact return.
func (f *File) Close() error {
	if f.fd < 0 {
		return errors.E(errors.Precondition, "fileio: double close")
	}
	fd := f.fd
	f.fd = -1
	for {
		err := unix.Close(fd)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return errors.E(err, fmt.Sprintf("closing %s", f.id.path))
		}
		return nil
	}
}
