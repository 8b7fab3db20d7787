// Package retrypolicy holds the retry policy applied to every outbound
// network call. Both remote gateways share the same fixed-attempt,
// fixed-backoff behavior, so the loop lives here instead of at each call
// site.
package retrypolicy

import (
	"context"
	"fmt"
	"time"
)

type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Default matches the upstream rate-limit guidance: three attempts with a
// five second pause between them.
var Default = Policy{
	MaxAttempts: 3,
	Backoff:     5 * time.Second,
}

// Do runs fn until it succeeds or the attempt budget is exhausted, sleeping
// Backoff between attempts. Context cancellation interrupts the backoff wait
// and is returned as-is.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff):
			}
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", lastErr)
}
