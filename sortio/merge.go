// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package sortio

import (
	"bytes"
	"container/heap"

	"github.com/grailbio/base/log"
	"github.com/grailbio/xxlsort/fileio"
	"github.com/grailbio/xxlsort/internal/defaultsize"
	"github.com/grailbio/xxlsort/mem"
	"github.com/grailbio/xxlsort/recio"
)

// A cursor is one sorted input stream of a merge group. It owns its
// parser, its open file, and the transient run's ID, which it releases
// once the stream is exhausted.
type cursor struct {
	p  *recio.Parser
	f  *fileio.File
	id *fileio.ID
}

func (c *cursor) key() []byte { return c.p.Header().Key[:] }

func (c *cursor) close() error {
	err := c.f.Close()
	c.id.Release()
	return err
}

// cursorHeap is a min-heap of merge cursors keyed by the current
// record key. container/heap is a min-heap, so the ordering is the
// natural one.
type cursorHeap []*cursor

func (h cursorHeap) Len() int           { return len(h) }
func (h cursorHeap) Less(i, j int) bool { return bytes.Compare(h[i].key(), h[j].key()) < 0 }
func (h cursorHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x interface{}) { *h = append(*h, x.(*cursor)) }

func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// Merge runs the k-way merge phase: it repeatedly forms merge groups
// from the front of the queue, merging as many runs as the arena can
// buffer into one output run, until the queue drains. The last group's
// output is dst, written in external form; earlier groups write
// transient runs pushed to the back of the queue. src is the original
// input, consulted for bypassed record bodies during the final pass.
func Merge(arena mem.Chunk, q *RunQueue, src, dst *fileio.ID) error {
	fetch := &fetcher{src: src}
	defer fetch.close()
	for group := 0; q.Len() > 0; group++ {
		if err := mergeGroup(arena, q, dst, fetch, group); err != nil {
			return err
		}
	}
	return nil
}

func mergeGroup(arena mem.Chunk, q *RunQueue, dst *fileio.ID, fetch *fetcher, group int) (err error) {
	outputMem, avail := arena.Split(defaultsize.MergeOutBuf)

	var h cursorHeap
	defer func() {
		for _, c := range h {
			if cerr := c.close(); err == nil {
				err = cerr
			}
		}
	}()

	for q.Len() > 0 && len(avail) >= defaultsize.MergeInBuf {
		var inputMem mem.Chunk
		inputMem, avail = avail.Split(defaultsize.MergeInBuf)
		id := q.Pop()
		f, err := fileio.OpenRead(id)
		if err != nil {
			id.Release()
			return err
		}
		p, err := recio.NewParser(inputMem, f, recio.InternalCodec{})
		if err != nil {
			f.Close()
			id.Release()
			return err
		}
		if !p.Valid() {
			err = f.Close()
			id.Release()
			if err != nil {
				return err
			}
			continue
		}
		h = append(h, &cursor{p: p, f: f, id: id})
	}

	isFinal := q.Len() == 0
	outID := dst
	if !isFinal {
		if outID, err = fileio.NewTemp(); err != nil {
			return err
		}
		q.Push(outID)
	}
	fout, err := fileio.Create(outID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fout.Close(); err == nil {
			err = cerr
		}
	}()
	out := recio.NewRenderBuf(outputMem, fout)

	log.Debug.Printf("merge group %d: %d streams", group, len(h))
	heap.Init(&h)
	for len(h) > 0 {
		c := h[0]
		if err = emitStream(out, c.p, isFinal, fetch); err != nil {
			return err
		}
		ok, err := c.p.Next()
		if err != nil {
			return err
		}
		if ok {
			heap.Fix(&h, 0)
		} else {
			heap.Remove(&h, 0)
			if err = c.close(); err != nil {
				return err
			}
		}
	}
	return out.Flush()
}

// emitStream writes the parser's current record to out: the header,
// then the body streamed through out's free region in place.
func emitStream(out *recio.RenderBuf, p *recio.Parser, final bool, fetch *fetcher) error {
	hd := p.Header()
	if final {
		if _, err := out.Put(&hd.Header); err != nil {
			return err
		}
		if hd.BodyPresent == 0 {
			return fetch.fetch(out, hd)
		}
	} else {
		if _, err := out.Put(hd); err != nil {
			return err
		}
	}
	for {
		free, err := out.FreeMem()
		if err != nil {
			return err
		}
		n, err := p.ReadBody(free)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err = out.Write(free[:n]); err != nil {
			return err
		}
	}
}
