// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Xxlgen prepares sample data for xxlsort. By default it reads
// textual records (key flags crc body_size body_seed, one per line)
// on the standard input and writes their binary form on the standard
// output. With -sample it instead emits a textual sample corpus whose
// binary encoding totals roughly the given size:
//
//	xxlgen -sample 20g | xxlgen | xxlsort /dev/stdin sorted
package main

import (
	"bufio"
	"flag"
	"math/rand"
	"os"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/xxlsort"
	"github.com/grailbio/xxlsort/fileio"
	"github.com/grailbio/xxlsort/recio"
	"github.com/grailbio/xxlsort/textio"
)

var (
	sample = flag.String("sample", "", "emit a textual sample corpus of this binary size (e.g. 20g) instead of binarizing")
	large  = flag.Bool("large", false, "with -sample, draw larger bodies")
	seed   = flag.Int64("seed", 1, "with -sample, random seed")
)

func main() {
	log.AddFlags()
	log.SetFlags(0)
	log.SetPrefix("xxlgen: ")
	must.Func = log.Fatal
	flag.Parse()

	if *sample != "" {
		total, err := xxlsort.ParseMem(*sample)
		if err != nil {
			log.Fatal(err)
		}
		r := rand.New(rand.NewSource(*seed))
		mu, sigma := 3.0, 2.3
		if *large {
			mu, sigma = 5.2, 3.2
		}
		w := bufio.NewWriter(os.Stdout)
		must.Nil(textio.Generate(w, total, textio.LogNormal(r, mu, sigma), r))
		must.Nil(w.Flush())
		return
	}

	out := recio.NewRenderBuf(make([]byte, 40<<20), fileio.NewFile(1, "/dev/stdout"))
	if err := textio.Binarize(out, os.Stdin); err != nil {
		log.Fatal(err)
	}
	if err := out.Flush(); err != nil {
		log.Fatal(err)
	}
}
