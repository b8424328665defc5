package pacing

import (
	"context"
	"log/slog"
	"time"

	"github.com/mazen160/go-random"
)

// Sleep blocks for a random duration within [min, max]. The jitter is
// deliberate: evenly spaced requests are a strong automation signature,
// and it doubles as politeness rate limiting. Returns early with the
// context's error on cancellation.
func Sleep(ctx context.Context, min, max time.Duration) error {
	if max < min {
		max = min
	}
	delay := min
	if max > min {
		extra, err := random.IntRange(0, int((max-min)/time.Millisecond)+1)
		if err == nil {
			delay = min + time.Duration(extra)*time.Millisecond
		} else {
			slog.WarnContext(ctx, "failed to draw pacing jitter", "err", err)
		}
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
