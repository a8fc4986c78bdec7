package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinelwatch/sentinelwatch/agent/internal/backlog"
	"github.com/sentinelwatch/sentinelwatch/pkg/types"
)

// Client orchestrates the online/offline state machine over one Transport
// and one Backlog. It is driven synchronously by a single scheduling loop;
// the internal lock only protects Stats() readers on other goroutines.
type Client struct {
	transport Transport
	policy    RetryPolicy
	backlog   *backlog.Backlog

	threshold uint
	cooldown  time.Duration

	mu                  sync.Mutex
	online              bool
	consecutiveFailures uint

	// sleep is injectable for tests; nil means sleepCtx.
	sleep func(ctx context.Context, d time.Duration) error
}

// Stats is the read-only view served by the agent's status endpoint.
type Stats struct {
	Online              bool `json:"online"`
	ConsecutiveFailures uint `json:"consecutive_failures"`
	BacklogSize         int  `json:"backlog_size"`
}

// NewClient builds a delivery client. threshold is the consecutive-failure
// count that triggers the extended cooldown sleep. The client starts Online
// with zero failures; state is never persisted across restarts.
func NewClient(t Transport, policy RetryPolicy, b *backlog.Backlog, threshold uint, cooldown time.Duration) *Client {
	return &Client{
		transport: t,
		policy:    policy,
		backlog:   b,
		threshold: threshold,
		cooldown:  cooldown,
		online:    true,
	}
}

// Send runs one delivery cycle for snap: flush the backlog oldest-first,
// then deliver snap directly when online, or queue it when offline.
// The returned bool reports whether snap itself was delivered this cycle;
// a non-nil error means snap was permanently dropped (fatal outcome).
// Queued-for-later is (false, nil).
func (c *Client) Send(ctx context.Context, snap *types.Snapshot) (bool, error) {
	if c.backlog.Size() > 0 {
		if c.Flush(ctx) {
			c.setOnline()
			c.resetFailures()
		} else {
			c.setOffline()
			c.addFailure()
		}
	}

	delivered := false
	var dropErr error

	if c.Online() {
		res := c.policy.Deliver(ctx, c.transport, snap)
		switch res.Outcome {
		case Delivered:
			c.resetFailures()
			delivered = true

		case Fatal:
			// The item can never be delivered; it must not enter the
			// backlog where it would be retried forever.
			slog.Error("delivery: dropping undeliverable snapshot",
				"client_id", snap.ClientID,
				"status", res.StatusCode,
				"err", res.Err,
			)
			dropErr = res.Err

		default:
			// Attempts exhausted on a transient or rate-limit failure.
			c.backlog.Enqueue(snap)
			c.setOffline()
			c.addFailure()
			slog.Warn("delivery: snapshot queued offline",
				"client_id", snap.ClientID,
				"backlog_size", c.backlog.Size(),
				"err", res.Err,
			)
		}
	} else {
		// Known offline: queue without a redundant network attempt.
		c.backlog.Enqueue(snap)
		slog.Warn("delivery: offline — snapshot queued",
			"client_id", snap.ClientID,
			"backlog_size", c.backlog.Size(),
		)
	}

	c.maybeCooldown(ctx)
	return delivered, dropErr
}

// Flush attempts to drain the backlog oldest-first. Items that deliver are
// removed; fatal items are dropped in place without blocking the scan; the
// first transient failure stops the scan so later items are never sent
// ahead of an undelivered one. Returns true when the backlog is empty
// afterwards.
func (c *Client) Flush(ctx context.Context) bool {
	entries := c.backlog.PeekAll()
	if len(entries) == 0 {
		return true
	}

	slog.Info("delivery: flushing backlog", "pending", len(entries))

	resolved := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}

		res := c.policy.Deliver(ctx, c.transport, e.Snapshot)
		switch res.Outcome {
		case Delivered:
			resolved++

		case Fatal:
			slog.Error("delivery: dropping undeliverable queued snapshot",
				"client_id", e.Snapshot.ClientID,
				"enqueued_at", e.EnqueuedAt,
				"status", res.StatusCode,
				"err", res.Err,
			)
			resolved++

		default:
			// Stop here: removing this item or sending past it would
			// break per-client temporal ordering.
			c.backlog.RemoveFront(resolved)
			slog.Warn("delivery: flush stopped",
				"sent", resolved,
				"remaining", c.backlog.Size(),
				"err", res.Err,
			)
			return false
		}
	}

	c.backlog.RemoveFront(resolved)
	drained := c.backlog.Size() == 0
	if drained {
		slog.Info("delivery: backlog drained", "sent", resolved)
	}
	return drained
}

// Stats returns a consistent snapshot of the delivery state for the status
// endpoint. Safe to call from any goroutine.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Online:              c.online,
		ConsecutiveFailures: c.consecutiveFailures,
		BacklogSize:         c.backlog.Size(),
	}
}

// Online reports whether the client currently believes the collector is
// reachable.
func (c *Client) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// maybeCooldown sleeps the extended cool-down once the consecutive-failure
// threshold is reached, then resets the counter. This is an escalation
// beyond the per-attempt delay, meant to stop hammering a collector that
// has been down for a while.
func (c *Client) maybeCooldown(ctx context.Context) {
	c.mu.Lock()
	trip := c.consecutiveFailures >= c.threshold
	if trip {
		c.consecutiveFailures = 0
	}
	c.mu.Unlock()

	if !trip {
		return
	}

	slog.Info("delivery: consecutive failures reached threshold — cooling down",
		"threshold", c.threshold,
		"cooldown", c.cooldown,
	)
	if c.sleep != nil {
		_ = c.sleep(ctx, c.cooldown)
	} else {
		_ = sleepCtx(ctx, c.cooldown)
	}
}

func (c *Client) setOnline() {
	c.mu.Lock()
	changed := !c.online
	c.online = true
	c.mu.Unlock()
	if changed {
		slog.Info("delivery: back online", "backlog_size", c.backlog.Size())
	}
}

func (c *Client) setOffline() {
	c.mu.Lock()
	changed := c.online
	c.online = false
	c.mu.Unlock()
	if changed {
		slog.Warn("delivery: went offline", "backlog_size", c.backlog.Size())
	}
}

func (c *Client) addFailure() {
	c.mu.Lock()
	c.consecutiveFailures++
	c.mu.Unlock()
}

func (c *Client) resetFailures() {
	c.mu.Lock()
	c.consecutiveFailures = 0
	c.mu.Unlock()
}
