// Package prometheus provides Prometheus collectors for twofactor metrics.
//
// [NewPrometheusExporter] accepts a [twofactor.Engine] and exposes an [http.Handler]
// that renders all twofactor counters in Prometheus text exposition format.
// Counter names are prefixed twofactor_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
