// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package textio

import (
	"crypto/sha256"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"

	"github.com/grailbio/xxlsort/recio"
)

// Generate writes textual sample records to w until their binary
// encoding reaches total bytes. Keys are the hex SHA-256 of the
// record ordinal; flags, crc and the body seed are uniform random;
// body sizes are drawn from bodySize, clamped to the legal range.
func Generate(w io.Writer, total int64, bodySize func() int64, r *rand.Rand) error {
	var generated int64
	for i := 0; generated < total; i++ {
		key := sha256.Sum256([]byte(strconv.Itoa(i)))
		size := bodySize()
		if size < 0 {
			size = 0
		}
		if size > recio.MaxBodySize {
			size = recio.MaxBodySize
		}
		_, err := fmt.Fprintf(w, "%x %d %d %d %d\n",
			key[:], r.Uint64(), r.Uint64(), size, r.Uint64())
		if err != nil {
			return err
		}
		generated += recio.HeaderSize + size
	}
	return nil
}

// LogNormal returns a log-normal body-size distribution. The sample
// generator uses (3.0, 2.3) for small-body corpora and (5.2, 3.2) for
// large ones.
func LogNormal(r *rand.Rand, mu, sigma float64) func() int64 {
	return func() int64 {
		return int64(math.Exp(mu + sigma*r.NormFloat64()))
	}
}
