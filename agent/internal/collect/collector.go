package collect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/sentinelwatch/sentinelwatch/agent/internal/config"
	"github.com/sentinelwatch/sentinelwatch/pkg/types"
)

const defaultScrapeTimeout = 10 * time.Second

// Collector produces one activity Snapshot per call. Implementations must
// return a fresh value each time; the caller hands it to the delivery
// pipeline and never touches it again.
type Collector interface {
	Collect(ctx context.Context) (*types.Snapshot, error)
}

// New returns the appropriate Collector for the agent configuration.
func New(cfg config.AgentConfig) (Collector, error) {
	switch cfg.Collector.Type {
	case "host", "":
		return newHostCollector(cfg), nil
	case "node":
		return &nodeCollector{
			host:     newHostCollector(cfg),
			endpoint: cfg.Collector.Endpoint,
			metrics:  nodeMetricNames(cfg.Collector.Metrics),
			client:   &http.Client{Timeout: defaultScrapeTimeout},
		}, nil
	default:
		return nil, fmt.Errorf("collect: unsupported type %q", cfg.Collector.Type)
	}
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	// Non-empty result with a non-nil err means partial parse (trailing lines,
	// format warnings). Treat as success.
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil (metric not present in the scrape).
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}
