package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sentinelwatch/sentinelwatch/pkg/types"
	"github.com/sentinelwatch/sentinelwatch/server/internal/store"
)

// Stats window bounds for GET /api/v1/activities/stats.
const (
	defaultStatsDays = 7
	maxStatsDays     = 90
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads and writes the activity store and returns JSON responses.
type Handler struct {
	store *store.Store
	mux   *http.ServeMux
	now   func() time.Time // injectable for deterministic tests
}

// New creates a Handler wired to the given activity store and registers all routes.
func New(st *store.Store) *Handler {
	h := &Handler{store: st, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/activities/report", h.report)
	h.mux.HandleFunc("/api/v1/activities/stats", h.stats)
	h.mux.HandleFunc("/api/v1/activities", h.listActivities)
	h.mux.HandleFunc("/api/v1/activities/", h.getActivity) // subtree — extracts {id}
	h.mux.HandleFunc("/api/v1/clients", h.listClients)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// report handles POST /api/v1/activities/report — the agent delivery endpoint.
func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var snap types.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if snap.ClientID == "" {
		jsonErr(w, http.StatusBadRequest, "client_id is required")
		return
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = h.now().UTC()
	}

	act, isNew := h.store.Add(&snap)
	slog.Info("activity recorded",
		"activity_id", act.ID,
		"client_id", snap.ClientID,
		"new_client", isNew)

	jsonResp(w, http.StatusOK, ReportResponse{
		Status:     "success",
		Message:    "Activity recorded successfully",
		ActivityID: act.ID,
		NewClient:  isNew,
	})
}

// listActivities handles GET /api/v1/activities with filtering and pagination.
func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	f := store.Filter{ClientID: q.Get("client_id")}

	var err error
	if f.Offset, err = intParam(q.Get("skip"), 0); err != nil || f.Offset < 0 {
		jsonErr(w, http.StatusBadRequest, "invalid skip parameter")
		return
	}
	if f.Limit, err = intParam(q.Get("limit"), store.DefaultListLimit); err != nil || f.Limit < 1 || f.Limit > store.MaxListLimit {
		jsonErr(w, http.StatusBadRequest, "invalid limit parameter")
		return
	}
	if f.Since, err = timeParam(q.Get("since")); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid since parameter, want RFC3339")
		return
	}
	if f.Until, err = timeParam(q.Get("until")); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid until parameter, want RFC3339")
		return
	}

	acts := h.store.List(f)
	out := make([]ActivityResponse, 0, len(acts))
	for _, a := range acts {
		out = append(out, toActivityResponse(a))
	}
	jsonResp(w, http.StatusOK, out)
}

// stats handles GET /api/v1/activities/stats.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	days, err := intParam(q.Get("days"), defaultStatsDays)
	if err != nil || days < 1 || days > maxStatsDays {
		jsonErr(w, http.StatusBadRequest, "invalid days parameter")
		return
	}

	since := h.now().UTC().AddDate(0, 0, -days)
	st := h.store.Stats(q.Get("client_id"), since)

	jsonResp(w, http.StatusOK, StatsResponse{
		TotalActivities: st.TotalActivities,
		ActiveClients:   st.ActiveClients,
		ByClient:        st.ByClient,
		PeriodDays:      days,
		WindowStart:     since.Format(time.RFC3339),
	})
}

// getActivity handles GET /api/v1/activities/{id}.
func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/activities/")
	if id == "" {
		h.listActivities(w, r)
		return
	}

	a, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "activity not found")
		return
	}
	jsonResp(w, http.StatusOK, toActivityResponse(a))
}

// listClients handles GET /api/v1/clients.
func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	clients := h.store.Clients()
	out := make([]ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, ClientResponse{
			ClientID:      c.ClientID,
			ClientType:    c.ClientType,
			FirstSeen:     c.FirstSeen.Format(time.RFC3339),
			LastSeen:      c.LastSeen.Format(time.RFC3339),
			ActivityCount: c.ActivityCount,
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// health handles GET /api/v1/health — liveness plus store counters.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		ActivityCount: h.store.Count(),
		ClientCount:   len(h.store.Clients()),
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func timeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// BuildFeed assembles the live feed payload from the n most recent
// activities. Shared with the WebSocket hub.
func BuildFeed(st *store.Store, n int) FeedResponse {
	acts := st.Latest(n)
	out := make([]ActivityResponse, 0, len(acts))
	for _, a := range acts {
		out = append(out, toActivityResponse(a))
	}
	return FeedResponse{
		Activities:  out,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// toActivityResponse maps a store.Activity to its JSON representation.
func toActivityResponse(a *store.Activity) ActivityResponse {
	return ActivityResponse{
		ID:         a.ID,
		ReceivedAt: a.ReceivedAt.UTC().Format(time.RFC3339),
		Snapshot:   a.Snapshot,
	}
}
