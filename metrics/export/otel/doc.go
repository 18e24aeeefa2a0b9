// Package otel provides OpenTelemetry metric exporter bindings for twofactor
// counters.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for each
// twofactor metric. A single callback reads
// [twofactor.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate engine state.
package otel
