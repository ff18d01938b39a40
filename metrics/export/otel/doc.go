// Package otel bridges engine metrics to an OpenTelemetry meter.
//
// Each counter becomes an Int64ObservableCounter. Latency histograms are
// published as one cumulative Int64ObservableGauge per bucket plus a
// _count gauge. Callers own the MeterProvider.
package otel
