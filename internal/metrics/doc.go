// Package metrics records build and stage metrics.
//
// Components receive a Recorder and default to NoopRecorder, so no nil checks
// are needed at call sites. PrometheusRecorder backs the interface with a
// Prometheus registry that can be written out in text exposition format,
// which suits one-shot command-line builds picked up by a node exporter
// textfile collector.
package metrics
