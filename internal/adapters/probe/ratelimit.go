package probe

import (
	"context"
	"sync"
	"time"
)

// tokenBucket allows bursts up to max, then one request per refill interval.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     int
	max        int
	refill     time.Duration
	lastRefill time.Time
	now        func() time.Time
}

func newTokenBucket(max int, refill time.Duration) *tokenBucket {
	if max <= 0 {
		max = 1
	}
	return &tokenBucket{tokens: max, max: max, refill: refill, lastRefill: time.Now(), now: time.Now}
}

// take consumes a token if one is available, otherwise reports how long to wait.
func (b *tokenBucket) take() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.refill > 0 {
		if add := int(now.Sub(b.lastRefill) / b.refill); add > 0 {
			b.tokens += add
			if b.tokens > b.max {
				b.tokens = b.max
			}
			b.lastRefill = b.lastRefill.Add(time.Duration(add) * b.refill)
		}
	}
	if b.tokens > 0 {
		b.tokens--
		return true, 0
	}
	return false, b.refill - now.Sub(b.lastRefill)
}

// Wait blocks until a token is available or ctx is done.
func (b *tokenBucket) Wait(ctx context.Context) error {
	for {
		ok, wait := b.take()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
