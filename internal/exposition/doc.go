// Package exposition serves the exporter's HTTP surface: the Prometheus
// text-format /metrics endpoint rendered from the current store snapshot,
// and a /healthz probe. A scrape is a pure store read; it completes
// independently of poll cadence and never waits on the upstream API.
package exposition
