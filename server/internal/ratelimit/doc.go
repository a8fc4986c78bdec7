// Package ratelimit provides a per-client sliding-window rate limiting
// middleware for the REST API. Requests are counted per identity (client
// IP, honouring X-Forwarded-For from trusted proxies) over a one minute
// window; excess requests are rejected with 429 and a Retry-After hint.
package ratelimit
