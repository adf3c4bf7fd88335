// Package security implements the admission engine for the host: per-client
// and per-address rate limiting, replay defense, violation tracking with
// automatic blocking, whitelisting, and a bounded security event log.
package security

import (
	"time"

	"golang.org/x/time/rate"
)

// Bucket is a token bucket with capacity burst and a steady refill rate in
// tokens per second. The caller supplies the clock so behaviour is
// deterministic under test.
type Bucket struct {
	lim *rate.Limiter
}

// NewBucket creates a full bucket.
func NewBucket(tokensPerSec float64, burst int) *Bucket {
	return &Bucket{lim: rate.NewLimiter(rate.Limit(tokensPerSec), burst)}
}

// TryConsume takes n tokens if available. A denied call does not consume
// anything beyond the refill bookkeeping.
func (b *Bucket) TryConsume(n int, now time.Time) bool {
	return b.lim.AllowN(now, n)
}
