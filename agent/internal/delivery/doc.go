// Package delivery turns a locally captured snapshot into a durably
// delivered record despite unreliable connectivity, collector downtime, or
// rate limiting.
//
// Three pieces:
//
//   - Transport performs exactly one HTTP attempt against the collector's
//     ingestion endpoint and classifies the outcome (Delivered, Retry,
//     Backoff, Fatal). It holds no retry logic or state.
//   - RetryPolicy drives the per-item attempt cycle: transient failures
//     sleep a fixed delay and retry up to MaxAttempts; a 429 honours the
//     server's Retry-After hint; fatal outcomes return immediately.
//   - Client is the online/offline state machine. Every Send first flushes
//     the backlog oldest-first (stopping at the first non-fatal failure so
//     nothing is ever delivered out of order), then delivers the new
//     snapshot directly when online, or queues it without a network call
//     when offline. After five consecutive failed cycles the client sleeps
//     one extended cool-down before the next tick.
//
// Fatal outcomes (401 bad key, other 4xx payload rejection) discard the one
// item with an operator-visible log entry and never block items behind it.
package delivery
