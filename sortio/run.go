// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package sortio

import (
	"math"
	"sort"

	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/xxlsort/fileio"
	"github.com/grailbio/xxlsort/internal/defaultsize"
	"github.com/grailbio/xxlsort/mem"
	"github.com/grailbio/xxlsort/recio"
)

// Sort handles address records with a 32-bit offset from the region
// base, so a single run packs at most 4 GiB.
const maxPackRegion int64 = (1 << 32) - mem.AlignmentMax

// A RunQueue is the FIFO of transient runs: split-and-sort appends,
// the merger pops from the front and pushes intermediate results to
// the back. Drain releases whatever remains; it is the cleanup of the
// error paths and a no-op after a successful merge.
type RunQueue struct {
	ids []*fileio.ID
}

// Push appends a run to the back of the queue.
func (q *RunQueue) Push(id *fileio.ID) { q.ids = append(q.ids, id) }

// Pop removes and returns the run at the front of the queue.
func (q *RunQueue) Pop() *fileio.ID {
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id
}

// Len returns the number of queued runs.
func (q *RunQueue) Len() int { return len(q.ids) }

// Drain releases every queued run.
func (q *RunQueue) Drain() {
	for _, id := range q.ids {
		id.Release()
	}
	q.ids = nil
}

// BuildRuns runs the split-and-sort phase: it consumes src through a
// streaming parser, fills the arena with records growing from the low
// end and sort handles growing from the high end, sorts the handles,
// and writes one run per arena filling. If the whole input fits in a
// single run, that run is written directly to dst in external form and
// the queue stays empty; otherwise each run goes to a transient file
// appended to q.
//
// Bodies of at least defaultsize.BypassThreshold bytes are left on
// disk when src is seekable: the arena holds only their headers, and
// the bodies are fetched from src again when the record is emitted in
// final form.
func BuildRuns(arena mem.Chunk, src, dst *fileio.ID, q *RunQueue) (err error) {
	inputMem, arena := arena.Split(defaultsize.ParseBuf)

	fsrc, err := fileio.OpenRead(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fsrc.Close(); err == nil {
			err = cerr
		}
	}()

	threshold := uint64(defaultsize.BypassThreshold)
	if !fsrc.Seekable() {
		// Bypassed bodies must be re-read by position, so a
		// non-seekable input forces every body inline.
		threshold = math.MaxUint64
	}

	p, err := recio.NewParser(inputMem, fsrc, recio.ExternalCodec{})
	if err != nil {
		return err
	}

	fetch := &fetcher{src: src}
	defer fetch.close()

	for segment := 0; ; segment++ {
		outputMem, packMem := arena.Split(defaultsize.SpillBuf)
		region := packMem.Aligned(mem.AlignmentMax)
		if int64(len(region)) > maxPackRegion {
			region = region[:maxPackRegion]
		}
		rb := recio.NewRenderBuf(region, nil)
		hs := handleArea(region)

		// Memory layout:
		//
		//	records -> -> ...free... <- <- handles
		var nh int
		for p.Valid() {
			hd := *p.Header()
			inline := hd.BodySize
			if hd.BodySize >= threshold {
				hd.BodyPresent = 0
				inline = 0
			}
			end := len(region) - rb.FreeLen()
			pad := int(mem.AlignUp(int64(end), recio.InternalAlign)) - end
			need := int64(pad+recio.InternalHeaderSize+handleSize) + int64(inline)
			free := int64((len(hs)-nh)*handleSize - end)
			if free < need {
				break
			}

			off, err := rb.Put(&hd)
			if err != nil {
				return err
			}
			if hd.BodyPresent != 0 {
				for {
					buf, err := rb.FreeMem()
					if err != nil {
						return err
					}
					n, err := p.ReadBody(buf)
					if err != nil {
						return err
					}
					if n == 0 {
						break
					}
					if _, err = rb.Write(buf[:n]); err != nil {
						return err
					}
				}
			}

			h := &hs[len(hs)-1-nh]
			copy(h.prefix[:], hd.Key[:prefixSize])
			h.off = uint32(off)
			nh++

			if _, err = p.Next(); err != nil {
				return err
			}
		}
		if nh == 0 && p.Valid() {
			return errors.E(errors.Invalid, "record too large for available memory")
		}

		sorted := hs[len(hs)-nh:]
		sort.Sort(byKey{sorted, region})

		isFinal := segment == 0 && !p.Valid()
		outID := dst
		if !isFinal {
			if outID, err = fileio.NewTemp(); err != nil {
				return err
			}
			q.Push(outID)
		}
		if err = writeRun(outputMem, outID, region, sorted, isFinal, fetch); err != nil {
			return err
		}
		log.Debug.Printf("run %d: %d records, %s packed", segment, nh, data.Size(rb.Pos()))

		if !p.Valid() {
			return nil
		}
	}
}

// writeRun emits the sorted handles' records to a fresh run at outID:
// external form (with bypassed bodies fetched back from the source)
// when the run is the final destination, internal form otherwise.
func writeRun(outputMem mem.Chunk, outID *fileio.ID, base mem.Chunk, sorted []handle, final bool, fetch *fetcher) (err error) {
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
	for i := range sorted {
		if err = emitPacked(out, base, &sorted[i], final, fetch); err != nil {
			return err
		}
	}
	return out.Flush()
}

// emitPacked writes the arena-packed record addressed by h to out.
func emitPacked(out *recio.RenderBuf, base mem.Chunk, h *handle, final bool, fetch *fetcher) error {
	var hd recio.Internal
	hd.Unmarshal(base.Suffix(int(h.off)))
	var inline mem.Chunk
	if hd.BodyPresent != 0 {
		inline = base.Sub(int(h.off)+recio.InternalHeaderSize, int(hd.BodySize))
	}
	if !final {
		if _, err := out.Put(&hd); err != nil {
			return err
		}
		_, err := out.Write(inline)
		return err
	}
	if _, err := out.Put(&hd.Header); err != nil {
		return err
	}
	if hd.BodyPresent == 0 {
		return fetch.fetch(out, &hd)
	}
	_, err := out.Write(inline)
	return err
}
