// Package otel publishes engine metrics through an OpenTelemetry meter.
//
// [NewExporter] registers one Int64ObservableCounter per counter and a
// bucket/count/sum gauge trio for the latency histogram. A single callback
// reads [accesshub.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
