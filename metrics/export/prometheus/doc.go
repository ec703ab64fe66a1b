// Package prometheus exposes engine metrics through client_golang.
//
// [Collector] implements prometheus.Collector and converts a fresh
// [accesshub.Engine.MetricsSnapshot] into const metrics on every scrape.
// Counter names are prefixed accesshub_*_total; the single histogram is
// accesshub_access_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global default registry; callers own registration.
//   - Mutate engine state.
package prometheus
