package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sentinelwatch/sentinelwatch/pkg/types"
)

// reportPath is the collector's ingestion endpoint, relative to the
// configured server URL.
const reportPath = "/api/v1/activities/report"

// Outcome classifies the result of one delivery attempt.
type Outcome int

const (
	// Delivered: the collector accepted the snapshot.
	Delivered Outcome = iota

	// Retry: transient failure (connection error, timeout, 5xx). Worth
	// retrying after a fixed delay.
	Retry

	// Backoff: the collector is rate limiting (429). Retry after the
	// server-supplied wait hint.
	Backoff

	// Fatal: the item itself can never be delivered (401 revoked key,
	// other 4xx payload rejection). Drop it; do not retry.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Retry:
		return "retry"
	case Backoff:
		return "backoff"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}

// Result is the classified outcome of one delivery attempt.
type Result struct {
	Outcome    Outcome
	StatusCode int           // 0 when the request never completed
	RetryAfter time.Duration // server wait hint on Backoff; 0 when absent
	Err        error         // underlying cause for non-Delivered outcomes
}

// Transport performs one delivery attempt for a snapshot. Implementations
// hold no retry logic and no delivery state.
type Transport interface {
	Send(ctx context.Context, snap *types.Snapshot) Result
}

// HTTPTransport delivers snapshots with a single authenticated JSON POST to
// the collector's ingestion endpoint.
type HTTPTransport struct {
	endpoint string
	header   string
	key      string
	client   *http.Client
}

// NewHTTPTransport builds a transport for the collector at serverURL.
// header and key configure API-key authentication; timeout bounds each
// attempt end to end.
func NewHTTPTransport(serverURL, header, key string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		endpoint: strings.TrimRight(serverURL, "/") + reportPath,
		header:   header,
		key:      key,
		client:   &http.Client{Timeout: timeout},
	}
}

// Send performs one HTTP attempt and classifies the response.
func (t *HTTPTransport) Send(ctx context.Context, snap *types.Snapshot) Result {
	body, err := json.Marshal(snap)
	if err != nil {
		// A snapshot that cannot be serialised can never be delivered.
		return Result{Outcome: Fatal, Err: fmt.Errorf("transport: marshal snapshot: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: Fatal, Err: fmt.Errorf("transport: build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if t.header != "" && t.key != "" {
		req.Header.Set(t.header, t.key)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// Connection refused, DNS failure, timeout — all transient.
		return Result{Outcome: Retry, Err: fmt.Errorf("transport: post: %w", err)}
	}
	defer resp.Body.Close()

	return classify(resp)
}

// classify maps an HTTP response to a Result per the ingestion contract:
// 2xx delivered, 401 fatal (bad key), 429 backoff with optional Retry-After,
// other 4xx fatal (payload rejected), everything else transient.
func classify(resp *http.Response) Result {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return Result{Outcome: Delivered, StatusCode: code}

	case code == http.StatusUnauthorized:
		return Result{
			Outcome:    Fatal,
			StatusCode: code,
			Err:        fmt.Errorf("transport: invalid or revoked API key (status %d)", code),
		}

	case code == http.StatusTooManyRequests:
		return Result{
			Outcome:    Backoff,
			StatusCode: code,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("transport: rate limited (status %d)", code),
		}

	case code >= 400 && code < 500:
		return Result{
			Outcome:    Fatal,
			StatusCode: code,
			Err:        fmt.Errorf("transport: payload rejected: %s", responseDetail(resp)),
		}

	default:
		return Result{
			Outcome:    Retry,
			StatusCode: code,
			Err:        fmt.Errorf("transport: server error (status %d)", code),
		}
	}
}

// parseRetryAfter reads a Retry-After header value in delay-seconds or
// HTTP-date form. Returns 0 when absent or unparseable.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// responseDetail extracts a short error description from the response body.
func responseDetail(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
