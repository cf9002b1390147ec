// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Xxlsort sorts a file of binary records by their 64-byte key:
//
//	xxlsort <input> <output>
//
// The working-memory budget is taken from AVAILABLE_MEM (default
// 8 GiB). Temporary files go to the first of TMP, TEMP and TMPDIR
// that is set, else /tmp.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/xxlsort"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <input> <output>\n", os.Args[0])
	os.Exit(2)
}

func main() {
	log.AddFlags()
	log.SetFlags(0)
	log.SetPrefix("xxlsort: ")
	must.Func = log.Fatal
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
	}
	defer func() {
		if e := recover(); e != nil {
			log.Fatalf("Internal error: %v", e)
		}
	}()
	memSize, err := xxlsort.AvailableMem()
	if err != nil {
		log.Fatal(err)
	}
	switch err := xxlsort.Sort(flag.Arg(0), flag.Arg(1), memSize); {
	case err == nil:
	case errors.Is(errors.Precondition, err):
		log.Fatalf("Internal error: %v", err)
	default:
		log.Fatal(err)
	}
}
