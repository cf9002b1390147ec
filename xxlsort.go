// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package xxlsort

import (
	"fmt"
	"os"
	"strconv"

	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/xxlsort/fileio"
	"github.com/grailbio/xxlsort/internal/defaultsize"
	"github.com/grailbio/xxlsort/mem"
	"github.com/grailbio/xxlsort/sortio"
	"golang.org/x/sys/unix"
)

// DefaultMem is the arena size used when AVAILABLE_MEM is unset.
const DefaultMem = 8 << 30

// ParseMem parses the AVAILABLE_MEM grammar: a decimal number,
// optionally followed by one of k, K, m, M, g, G (multipliers 1024,
// 1024², 1024³). No suffix means bytes.
func ParseMem(s string) (int64, error) {
	mult := int64(1)
	num := s
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'k', 'K':
			mult, num = 1<<10, s[:n-1]
		case 'm', 'M':
			mult, num = 1<<20, s[:n-1]
		case 'g', 'G':
			mult, num = 1<<30, s[:n-1]
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("invalid settings in env: AVAILABLE_MEM=%s", s))
	}
	return int64(v * float64(mult)), nil
}

// AvailableMem returns the arena size configured in the environment:
// the parsed value of AVAILABLE_MEM if set, DefaultMem otherwise.
func AvailableMem() (int64, error) {
	s, ok := os.LookupEnv("AVAILABLE_MEM")
	if !ok {
		return DefaultMem, nil
	}
	return ParseMem(s)
}

// Sort sorts the records of the file named src into dst using at most
// memSize bytes of working memory. The destination is marked for
// unlinking until the sort completes, so no failure leaves a partial
// dst behind.
func Sort(src, dst string, memSize int64) (err error) {
	block, unmap, err := allocArena(memSize)
	if err != nil {
		return err
	}
	defer unmap()
	arena := block.Aligned(mem.AlignmentMax)

	srcID := fileio.NewID(src)
	dstID := fileio.NewID(dst)
	dstID.SetAutoUnlink(true)
	defer dstID.Release()

	q := new(sortio.RunQueue)
	defer q.Drain()

	log.Debug.Printf("sorting %s into %s, arena %s", src, dst, data.Size(len(arena)))
	if err = sortio.BuildRuns(arena, srcID, dstID, q); err != nil {
		return err
	}
	if q.Len() > 0 {
		if min := int64(defaultsize.MergeOutBuf + 2*defaultsize.MergeInBuf); int64(len(arena)) < min {
			return errors.E(errors.Invalid,
				fmt.Sprintf("AVAILABLE_MEM too small to merge %d runs: need at least %s", q.Len(), data.Size(min)))
		}
		if err = sortio.Merge(arena, q, srcID, dstID); err != nil {
			return err
		}
	}
	dstID.SetAutoUnlink(false)
	return nil
}

func allocArena(size int64) (mem.Chunk, func(), error) {
	if size <= 0 {
		return nil, nil, errors.E(errors.Invalid, fmt.Sprintf("bad arena size %d", size))
	}
	b, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, errors.E(errors.OOM, fmt.Sprintf("allocating %d bytes of memory", size), err)
	}
	unmap := func() {
		if err := unix.Munmap(b); err != nil {
			log.Error.Printf("munmap: %v", err)
		}
	}
	return mem.Chunk(b), unmap, nil
}
