// Package prometheus exposes engine counters and latency histograms as a
// client_golang Collector.
//
// Counters are named authcore_*_total and histograms
// authcore_*_latency_seconds. The collector reads
// [authcore.Engine.MetricsSnapshot] on each scrape and never mutates the
// engine.
package prometheus
