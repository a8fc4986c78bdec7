package store

import (
	"sync"
	"testing"
	"time"

	"github.com/sentinelwatch/sentinelwatch/pkg/types"
)

func snap(clientID string) *types.Snapshot {
	return &types.Snapshot{
		ClientID:   clientID,
		ClientType: "linux_desktop",
		Timestamp:  time.Now().UTC(),
	}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestAdd_AssignsIDAndReportsNewClient(t *testing.T) {
	st := New(24 * time.Hour)

	a1, isNew := st.Add(snap("desk-1"))
	if !isNew {
		t.Error("first activity from a client should report new_client")
	}
	if a1.ID == "" {
		t.Error("activity ID is empty")
	}

	a2, isNew := st.Add(snap("desk-1"))
	if isNew {
		t.Error("second activity from the same client reported as new")
	}
	if a2.ID == a1.ID {
		t.Error("activity IDs are not unique")
	}
}

func TestGet(t *testing.T) {
	st := New(24 * time.Hour)
	a, _ := st.Add(snap("desk-1"))

	got, ok := st.Get(a.ID)
	if !ok {
		t.Fatal("Get: expected activity, got none")
	}
	if got.Snapshot.ClientID != "desk-1" {
		t.Errorf("client_id: got %q", got.Snapshot.ClientID)
	}

	if _, ok := st.Get("no-such-id"); ok {
		t.Error("Get with unknown ID: expected false")
	}
}

func TestList_ArrivalOrder(t *testing.T) {
	st := New(24 * time.Hour)
	for _, id := range []string{"a", "b", "c"} {
		s := snap("desk-1")
		s.AdditionalData = map[string]any{"marker": id}
		st.Add(s)
	}

	acts := st.List(Filter{})
	if len(acts) != 3 {
		t.Fatalf("List: got %d, want 3", len(acts))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := acts[i].Snapshot.AdditionalData["marker"]; got != want {
			t.Errorf("List[%d]: got %v, want %v", i, got, want)
		}
	}
}

func TestList_FilterByClient(t *testing.T) {
	st := New(24 * time.Hour)
	st.Add(snap("desk-1"))
	st.Add(snap("desk-2"))
	st.Add(snap("desk-1"))

	acts := st.List(Filter{ClientID: "desk-1"})
	if len(acts) != 2 {
		t.Fatalf("List filtered: got %d, want 2", len(acts))
	}
	for _, a := range acts {
		if a.Snapshot.ClientID != "desk-1" {
			t.Errorf("unexpected client in filtered list: %q", a.Snapshot.ClientID)
		}
	}
}

func TestList_Pagination(t *testing.T) {
	st := New(24 * time.Hour)
	for i := 0; i < 10; i++ {
		st.Add(snap("desk-1"))
	}

	page1 := st.List(Filter{Limit: 4})
	page2 := st.List(Filter{Offset: 4, Limit: 4})
	page3 := st.List(Filter{Offset: 8, Limit: 4})

	if len(page1) != 4 || len(page2) != 4 || len(page3) != 2 {
		t.Errorf("page sizes: got %d/%d/%d, want 4/4/2", len(page1), len(page2), len(page3))
	}
	if page1[0].ID == page2[0].ID {
		t.Error("pages overlap")
	}
}

func TestList_TimeWindow(t *testing.T) {
	st := New(24 * time.Hour)
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		s := snap("desk-1")
		s.Timestamp = base.Add(time.Duration(i) * time.Hour)
		st.Add(s)
	}

	acts := st.List(Filter{Since: base.Add(30 * time.Minute), Until: base.Add(90 * time.Minute)})
	if len(acts) != 1 {
		t.Fatalf("windowed list: got %d, want 1", len(acts))
	}
	if !acts[0].Snapshot.Timestamp.Equal(base.Add(time.Hour)) {
		t.Errorf("windowed activity timestamp: got %v", acts[0].Snapshot.Timestamp)
	}
}

func TestLatest(t *testing.T) {
	st := New(24 * time.Hour)
	for i := 0; i < 5; i++ {
		s := snap("desk-1")
		s.AdditionalData = map[string]any{"n": i}
		st.Add(s)
	}

	latest := st.Latest(2)
	if len(latest) != 2 {
		t.Fatalf("Latest(2): got %d", len(latest))
	}
	if latest[1].Snapshot.AdditionalData["n"] != 4 {
		t.Errorf("newest activity: got %v, want 4", latest[1].Snapshot.AdditionalData["n"])
	}
}

func TestStats(t *testing.T) {
	st := New(24 * time.Hour)
	st.Add(snap("desk-1"))
	st.Add(snap("desk-1"))
	st.Add(snap("srv-1"))

	stats := st.Stats("", time.Time{})
	if stats.TotalActivities != 3 {
		t.Errorf("total: got %d, want 3", stats.TotalActivities)
	}
	if stats.ActiveClients != 2 {
		t.Errorf("active clients: got %d, want 2", stats.ActiveClients)
	}
	if stats.ByClient["desk-1"] != 2 {
		t.Errorf("by_client[desk-1]: got %d, want 2", stats.ByClient["desk-1"])
	}

	only := st.Stats("srv-1", time.Time{})
	if only.TotalActivities != 1 {
		t.Errorf("filtered total: got %d, want 1", only.TotalActivities)
	}
}

func TestClients_SummariesAndOrder(t *testing.T) {
	st := New(24 * time.Hour)
	st.Add(snap("zeta"))
	st.Add(snap("alpha"))
	st.Add(snap("alpha"))

	clients := st.Clients()
	if len(clients) != 2 {
		t.Fatalf("Clients: got %d, want 2", len(clients))
	}
	if clients[0].ClientID != "alpha" || clients[1].ClientID != "zeta" {
		t.Errorf("order: got [%s %s], want [alpha zeta]", clients[0].ClientID, clients[1].ClientID)
	}
	if clients[0].ActivityCount != 2 {
		t.Errorf("alpha count: got %d, want 2", clients[0].ActivityCount)
	}
}

func TestEvict_RemovesExpired(t *testing.T) {
	base := time.Now()
	st := New(time.Hour)

	st.now = fixedClock(base.Add(-2 * time.Hour))
	st.Add(snap("old"))

	st.now = fixedClock(base)
	st.Add(snap("fresh"))

	removed := st.Evict(base)
	if removed != 1 {
		t.Errorf("Evict: removed %d, want 1", removed)
	}
	if st.Count() != 1 {
		t.Errorf("Count after evict: got %d, want 1", st.Count())
	}
	// The client summary survives so a silent client is still visible.
	found := false
	for _, c := range st.Clients() {
		if c.ClientID == "old" {
			found = true
			if c.ActivityCount != 0 {
				t.Errorf("evicted client count: got %d, want 0", c.ActivityCount)
			}
		}
	}
	if !found {
		t.Error("client summary was dropped on eviction")
	}
}

func TestEvict_ClearsBackingArrayTail(t *testing.T) {
	base := time.Now()
	st := New(time.Hour)

	st.now = fixedClock(base.Add(-2 * time.Hour))
	st.Add(snap("old-1"))
	st.Add(snap("old-2"))

	st.now = fixedClock(base)
	st.Add(snap("fresh"))

	// Evict filters in place; the backing array is shared with the slice
	// captured here, so slots past the kept prefix must come back nil or
	// the evicted activities stay reachable.
	backing := st.activities

	if removed := st.Evict(base); removed != 2 {
		t.Fatalf("Evict: removed %d, want 2", removed)
	}
	for i := st.Count(); i < len(backing); i++ {
		if backing[i] != nil {
			t.Errorf("backing[%d] still references an evicted activity", i)
		}
	}
}

func TestConcurrentAddAndList(t *testing.T) {
	st := New(24 * time.Hour)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.Add(snap("desk-1"))
		}()
		go func() {
			defer wg.Done()
			st.List(Filter{})
		}()
	}
	wg.Wait()

	if st.Count() != 50 {
		t.Errorf("Count after concurrent adds: got %d, want 50", st.Count())
	}
}
