// Package types defines the shared data types exchanged between
// sentinel-agent and sentinel-server. Snapshot is the canonical wire
// representation of one activity capture; its JSON field names are the
// ingestion API contract and must not change without a format version bump.
package types
