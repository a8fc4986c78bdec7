// Package collect produces activity snapshots for the delivery pipeline.
//
// Collector is a single capability interface; platform variants implement it
// as independent types selected by the factory at startup, not via
// inheritance chains. Implemented collectors:
//
//   - host (host.go): portable capture of platform facts and agent process
//     metrics. Fields this build cannot observe (active window, full
//     process table) stay empty — richer platform collectors are external
//     to this module.
//   - node (node.go): everything host captures, plus system metrics scraped
//     from a Prometheus exposition endpoint (typically node_exporter) and
//     folded into the snapshot's system_metrics map.
//
// Factory: New(cfg) returns the collector for cfg.Collector.Type with a
// pre-built HTTP client where one is needed.
package collect
