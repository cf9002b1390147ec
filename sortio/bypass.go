// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package sortio

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/xxlsort/fileio"
	"github.com/grailbio/xxlsort/recio"
)

// A fetcher reads bypassed record bodies back out of the original
// source file when records are emitted in final form. Its file handle
// is opened on first use and reused across fetches; it seeks
// independently of the sequential input cursor, so the two never
// disturb each other's positions.
type fetcher struct {
	src *fileio.ID
	f   *fileio.File
}

// fetch seeks to hd's body position in the source and streams
// hd.BodySize body bytes into out, in chunks of at most out's free
// region. Running out of source bytes early is fatal.
func (x *fetcher) fetch(out *recio.RenderBuf, hd *recio.Internal) error {
	if x.f == nil {
		f, err := fileio.OpenRead(x.src)
		if err != nil {
			return err
		}
		x.f = f
	}
	if err := x.f.SetPos(int64(hd.BodyPos)); err != nil {
		return err
	}
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
		n, err := x.f.Read(free[:k])
		if err != nil {
			return err
		}
		if n < k {
			return errors.E(errors.Integrity, "Data corrupt")
		}
		if _, err = out.Write(free[:n]); err != nil {
			return err
		}
		left -= uint64(n)
	}
	return nil
}

func (x *fetcher) close() {
	if x.f == nil {
		return
	}
	if err := x.f.Close(); err != nil {
		log.Error.Printf("%v", err)
	}
	x.f = nil
}
