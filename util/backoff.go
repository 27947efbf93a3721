// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package util

import (
	"math"
	"math/rand"
	"time"
)

// DefaultBackoff returns a delay with an exponential backoff based on the
// number of retries, using the same base/jitter/factor defaults OPA's
// downloader uses for bundle polling retries.
func DefaultBackoff(base, maxNS float64, retries int) time.Duration {
	return Backoff(base, maxNS, 0.1, 2, retries)
}

// Backoff returns a delay with an exponential backoff based on the number
// of retries. Same algorithm used in gRPC: delay = min(base*factor^retries,
// max), jittered by +/- jitter fraction.
func Backoff(base, maxNS, jitter, factor float64, retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}
	backoff := base * math.Pow(factor, float64(retries))
	if backoff > maxNS {
		backoff = maxNS
	}
	delta := backoff * jitter
	min := backoff - delta
	max := backoff + delta
	d := min + (max-min)*rand.Float64()
	return time.Duration(d)
}
