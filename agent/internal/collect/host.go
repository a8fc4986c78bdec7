package collect

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/sentinelwatch/sentinelwatch/agent/internal/config"
	"github.com/sentinelwatch/sentinelwatch/pkg/types"
)

// hostCollector captures portable platform facts plus the agent's own
// process metrics. It works on every platform the agent compiles for.
type hostCollector struct {
	clientID   string
	clientType string
	startedAt  time.Time
}

func newHostCollector(cfg config.AgentConfig) *hostCollector {
	return &hostCollector{
		clientID:   cfg.ClientID,
		clientType: cfg.ClientType,
		startedAt:  time.Now().UTC(),
	}
}

func (c *hostCollector) Collect(_ context.Context) (*types.Snapshot, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return &types.Snapshot{
		ClientID:   c.clientID,
		ClientType: c.clientType,
		Timestamp:  time.Now().UTC(),
		Platform: map[string]string{
			"os":       runtime.GOOS,
			"arch":     runtime.GOARCH,
			"hostname": hostname,
		},
		SystemMetrics: map[string]float64{
			"agent_goroutines":       float64(runtime.NumGoroutine()),
			"agent_heap_alloc_bytes": float64(mem.HeapAlloc),
			"agent_uptime_seconds":   time.Since(c.startedAt).Seconds(),
			"num_cpu":                float64(runtime.NumCPU()),
		},
		AdditionalData: map[string]any{
			"hostname":    hostname,
			"client_type": c.clientType,
			"agent_pid":   os.Getpid(),
		},
	}, nil
}
