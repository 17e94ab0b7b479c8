package utils

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// SleepContext sleeps for given duration. If the context closes in the
// meantime, it returns immediately with a context.Canceled error.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return context.Canceled
	case <-t.C:
		return nil
	}
}

// SleepContextPerturb is like SleepContext, but sleeps between 80% and 120%
// of the duration, so that multiple instances do not line up.
func SleepContextPerturb(ctx context.Context, d time.Duration) error {
	r := rand.Intn(400)
	d = time.Duration(800+r) * d / 1000
	return SleepContext(ctx, d)
}

// IsCanceled checks if the context has been canceled.
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// DisplayValue represents a serialized value for humans. Printable ascii is
// shown as is, other bytes as '.', followed by the hex bytes.
// Values longer than max bytes are truncated, max <= 0 disables this.
func DisplayValue(b []byte, max int) string {
	truncated := 0
	if max > 0 && len(b) > max {
		truncated = len(b) - max
		b = b[:max]
	}
	ret := make([]byte, len(b))
	for i, ch := range b {
		if ch < 32 || ch > 126 {
			ret[i] = '.'
		} else {
			ret[i] = ch
		}
	}
	if truncated > 0 {
		return fmt.Sprintf("%s [% 0x] (+%d bytes)", ret, b, truncated)
	}
	return fmt.Sprintf("%s [% 0x]", ret, b)
}

// TimeDiff returns the difference between two times, rounded to milliseconds.
func TimeDiff(t1, t0 time.Time) time.Duration {
	return t1.Sub(t0).Round(time.Millisecond)
}
