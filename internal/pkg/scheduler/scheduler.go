// Package scheduler runs a function on a fixed cadence.
package scheduler

import (
	"context"
	"time"
)

// Every calls fn once right away and then once per interval until ctx is
// done, returning ctx.Err(). Calls never overlap: a call that outlasts the
// interval delays the next one, and missed ticks are dropped rather than
// queued. ctx is only checked between calls; fn decides for itself whether
// to honour cancellation of the ctx it receives.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// shutdown wins when both are ready
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn(ctx)
		}
	}
}
