package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/sentinelwatch/sentinelwatch/pkg/types"
)

// RetryPolicy governs the per-item attempt cycle: how many attempts one
// delivery cycle makes and how long to sleep between them. The delay is
// fixed, not exponential — the extended cool-down in Client handles
// prolonged collector outages.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration

	// sleep is injectable for tests; nil means sleepCtx.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the shipped defaults: 3 attempts, 5s apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 5 * time.Second}
}

// Deliver runs one full attempt cycle for snap against t. Delivered and
// Fatal outcomes return immediately; Retry sleeps the fixed delay and
// Backoff sleeps the server hint (or the fixed delay when absent), each
// consuming one attempt. When attempts are exhausted the last failing
// Result is returned — the caller treats it as a failed cycle, not as
// fatal. Cancelling ctx aborts the cycle between attempts.
func (p RetryPolicy) Deliver(ctx context.Context, t Transport, snap *types.Snapshot) Result {
	var last Result
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		last = t.Send(ctx, snap)

		switch last.Outcome {
		case Delivered, Fatal:
			return last
		}

		if attempt == p.MaxAttempts {
			break
		}

		wait := p.Delay
		if last.Outcome == Backoff && last.RetryAfter > 0 {
			wait = last.RetryAfter
		}
		slog.Warn("delivery: attempt failed, will retry",
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"outcome", last.Outcome.String(),
			"retry_in", wait,
			"err", last.Err,
		)
		if err := p.doSleep(ctx, wait); err != nil {
			// Shutdown mid-cycle: report the last attempt as-is.
			return last
		}
	}
	return last
}

func (p RetryPolicy) doSleep(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
