// Package otel exposes dispatcher metrics as OpenTelemetry observable
// instruments. Counters map to Int64ObservableCounter and each latency
// bucket to an Int64ObservableGauge; one callback reads the snapshot per
// collection. The caller owns the MeterProvider.
package otel
