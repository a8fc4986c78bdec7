// Package auth provides API-key authentication middleware for the REST API.
// The expected key is resolved from the environment at startup; an
// unconfigured key disables the check for local development.
package auth
