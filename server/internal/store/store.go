package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelwatch/sentinelwatch/pkg/types"
)

// List pagination bounds, matching the REST API contract.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Activity is one accepted snapshot with its server-side identity.
type Activity struct {
	ID         string
	ReceivedAt time.Time
	Snapshot   *types.Snapshot
}

// ClientSummary aggregates what the server knows about one reporting client.
type ClientSummary struct {
	ClientID      string
	ClientType    string
	FirstSeen     time.Time
	LastSeen      time.Time
	ActivityCount int
}

// Stats summarises activity over a time window.
type Stats struct {
	TotalActivities int
	ActiveClients   int
	ByClient        map[string]int
	WindowStart     time.Time
}

// Filter narrows and paginates List results. Zero values mean "no
// constraint"; Limit zero means DefaultListLimit.
type Filter struct {
	ClientID string
	Since    time.Time
	Until    time.Time
	Offset   int
	Limit    int
}

// Store is a thread-safe in-memory activity store. Activities are kept in
// arrival order, which matches capture order per client because each agent
// delivers its snapshots strictly oldest-first. A background goroutine
// (Run) evicts activities older than the retention window.
type Store struct {
	mu         sync.RWMutex
	activities []*Activity
	clients    map[string]*ClientSummary
	retention  time.Duration
	now        func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given retention window.
func New(retention time.Duration) *Store {
	return &Store{
		clients:   make(map[string]*ClientSummary),
		retention: retention,
		now:       time.Now,
	}
}

// Add records snap as a new activity, assigns its ID, and updates the
// client summary. The second return value reports whether this is the
// first activity seen from the client.
func (s *Store) Add(snap *types.Snapshot) (*Activity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	act := &Activity{
		ID:         uuid.NewString(),
		ReceivedAt: s.now().UTC(),
		Snapshot:   snap,
	}
	s.activities = append(s.activities, act)

	c, known := s.clients[snap.ClientID]
	if !known {
		c = &ClientSummary{
			ClientID:   snap.ClientID,
			ClientType: snap.ClientType,
			FirstSeen:  act.ReceivedAt,
		}
		s.clients[snap.ClientID] = c
	}
	if snap.ClientType != "" {
		c.ClientType = snap.ClientType
	}
	c.LastSeen = act.ReceivedAt
	c.ActivityCount++

	return act, !known
}

// Get returns the activity with the given ID.
func (s *Store) Get(id string) (*Activity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.activities {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// List returns activities matching f in arrival order, paginated by
// f.Offset/f.Limit.
func (s *Store) List(f Filter) []*Activity {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := 0
	out := make([]*Activity, 0, limit)
	for _, a := range s.activities {
		if f.ClientID != "" && a.Snapshot.ClientID != f.ClientID {
			continue
		}
		if !f.Since.IsZero() && a.Snapshot.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && a.Snapshot.Timestamp.After(f.Until) {
			continue
		}
		if matched < f.Offset {
			matched++
			continue
		}
		matched++
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Latest returns the n most recent activities, newest last.
func (s *Store) Latest(n int) []*Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.activities) {
		n = len(s.activities)
	}
	out := make([]*Activity, n)
	copy(out, s.activities[len(s.activities)-n:])
	return out
}

// Stats aggregates activity counts since the given time, optionally for a
// single client.
func (s *Store) Stats(clientID string, since time.Time) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		ByClient:    make(map[string]int),
		WindowStart: since,
	}
	for _, a := range s.activities {
		if !since.IsZero() && a.ReceivedAt.Before(since) {
			continue
		}
		if clientID != "" && a.Snapshot.ClientID != clientID {
			continue
		}
		st.TotalActivities++
		st.ByClient[a.Snapshot.ClientID]++
	}
	st.ActiveClients = len(st.ByClient)
	return st
}

// Clients returns summaries for every known client, sorted by client ID.
func (s *Store) Clients() []ClientSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ClientSummary, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// Count returns the total number of stored activities.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.activities)
}

// Evict removes activities received before now minus the retention window.
// It returns the number of activities removed. Client summaries survive
// eviction so operators can still see when a silent client last reported.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.retention)
	keep := s.activities[:0]
	removed := 0
	for _, a := range s.activities {
		if a.ReceivedAt.Before(cutoff) {
			removed++
			if c, ok := s.clients[a.Snapshot.ClientID]; ok && c.ActivityCount > 0 {
				c.ActivityCount--
			}
			continue
		}
		keep = append(keep, a)
	}
	// Clear the tail of the shared backing array so evicted snapshots are
	// actually collectable instead of staying pinned until the next append.
	for i := len(keep); i < len(s.activities); i++ {
		s.activities[i] = nil
	}
	s.activities = keep
	return removed
}

// Run starts the background retention eviction loop. It ticks at half the
// retention interval, capped to at most once a minute and at least once a
// second. Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.retention / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted expired activities", "count", n)
			}
		}
	}
}
