package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/voicewire/gateway/internal/providers"
)

// RetryOnce runs fn, and if it fails with an error that is not
// providers.IsFatal (auth, quota) retries exactly once after a backoff
// delay chosen uniformly from [minBackoff, maxBackoff], matching spec §4.4's
// "retry once with exponential backoff capped at 500ms" rule for STT. The
// context is respected between the two attempts; a cancelled context aborts
// the retry early and returns ctx.Err().
func RetryOnce(ctx context.Context, minBackoff, maxBackoff time.Duration, fn func() error) error {
	err := fn()
	if err == nil || providers.IsFatal(err) {
		return err
	}

	delay := minBackoff
	if maxBackoff > minBackoff {
		delay += time.Duration(rand.Int63n(int64(maxBackoff - minBackoff)))
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	return fn()
}
