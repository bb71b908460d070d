// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ulogmetrics exposes the producer's and exporter's drop
// counters as Prometheus metrics. It is optional operational
// scaffolding around the core pipeline: the in-process counters remain
// the source of truth, these are a read-only mirror of them, and
// nothing in the pipeline depends on a metrics registry being wired up.
package ulogmetrics

import "github.com/prometheus/client_golang/prometheus"

// ProducerMetrics mirrors a ulogproducer.Producer's dropped_total
// counter.
type ProducerMetrics struct {
	DroppedTotal prometheus.Counter
}

// NewProducerMetrics creates and registers the producer counter on
// reg. subsystem distinguishes multiple producers sharing one
// registry (e.g. "flight" vs "ground").
func NewProducerMetrics(reg prometheus.Registerer, subsystem string) *ProducerMetrics {
	m := &ProducerMetrics{
		DroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ulog",
			Subsystem: subsystem,
			Name:      "producer_dropped_total",
			Help:      "Total producer emit attempts that did not reach the queue.",
		}),
	}
	reg.MustRegister(m.DroppedTotal)
	return m
}

// ExporterMetrics mirrors an ulogexporter.Exporter's dropped_streams
// counter and the number of bytes written to the sink.
type ExporterMetrics struct {
	DroppedStreams prometheus.Counter
	BytesWritten   prometheus.Counter
}

// NewExporterMetrics creates and registers the exporter counters on reg.
func NewExporterMetrics(reg prometheus.Registerer, subsystem string) *ExporterMetrics {
	m := &ExporterMetrics{
		DroppedStreams: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ulog",
			Subsystem: subsystem,
			Name:      "exporter_dropped_streams_total",
			Help:      "Total Data records dropped due to subscription-slot budget overflow.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ulog",
			Subsystem: subsystem,
			Name:      "exporter_bytes_written_total",
			Help:      "Total bytes written to the ULog sink.",
		}),
	}
	reg.MustRegister(m.DroppedStreams, m.BytesWritten)
	return m
}
