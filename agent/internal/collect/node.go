package collect

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sentinelwatch/sentinelwatch/pkg/types"
)

// Default node_exporter families folded into system_metrics when the config
// does not name its own set.
var defaultNodeMetrics = []string{
	"node_load1",
	"node_load5",
	"node_memory_MemAvailable_bytes",
	"node_memory_MemTotal_bytes",
	"node_filesystem_avail_bytes",
	"node_network_receive_bytes_total",
	"node_network_transmit_bytes_total",
}

// nodeCollector extends the host collector with system metrics scraped from
// a Prometheus exposition endpoint, typically a local node_exporter.
type nodeCollector struct {
	host     *hostCollector
	endpoint string
	metrics  []string
	client   *http.Client
}

func nodeMetricNames(configured []string) []string {
	if len(configured) > 0 {
		return configured
	}
	return defaultNodeMetrics
}

// Collect scrapes the metrics endpoint and merges the summed family values
// into the host snapshot. Label dimensions are collapsed by summation — the
// collector records totals, not per-device series.
func (c *nodeCollector) Collect(ctx context.Context) (*types.Snapshot, error) {
	snap, err := c.host.Collect(ctx)
	if err != nil {
		return nil, err
	}
	mfs, err := fetchMetrics(ctx, c.client, c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("collect: node scrape %q: %w", c.endpoint, err)
	}

	for _, name := range c.metrics {
		if mf, ok := mfs[name]; ok {
			snap.SystemMetrics[name] = sumFamily(mf)
		}
	}
	snap.AdditionalData["metrics_endpoint"] = c.endpoint

	return snap, nil
}
