package api

import "github.com/sentinelwatch/sentinelwatch/pkg/types"

// ReportResponse is the payload for POST /api/v1/activities/report.
type ReportResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	ActivityID string `json:"activity_id"`
	NewClient  bool   `json:"new_client"`
}

// ActivityResponse is one activity in GET /api/v1/activities or
// GET /api/v1/activities/{id}.
type ActivityResponse struct {
	ID         string          `json:"id"`
	ReceivedAt string          `json:"received_at"` // RFC3339
	Snapshot   *types.Snapshot `json:"snapshot"`
}

// StatsResponse is the payload for GET /api/v1/activities/stats.
type StatsResponse struct {
	TotalActivities int            `json:"total_activities"`
	ActiveClients   int            `json:"active_clients"`
	ByClient        map[string]int `json:"by_client"`
	PeriodDays      int            `json:"period_days"`
	WindowStart     string         `json:"window_start"` // RFC3339
}

// ClientResponse is one client summary in GET /api/v1/clients.
type ClientResponse struct {
	ClientID      string `json:"client_id"`
	ClientType    string `json:"client_type"`
	FirstSeen     string `json:"first_seen"` // RFC3339
	LastSeen      string `json:"last_seen"`  // RFC3339
	ActivityCount int    `json:"activity_count"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	ActivityCount int    `json:"activity_count"`
	ClientCount   int    `json:"client_count"`
}

// FeedResponse is the live feed payload broadcast over WebSocket.
type FeedResponse struct {
	Activities  []ActivityResponse `json:"activities"`
	GeneratedAt string             `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
