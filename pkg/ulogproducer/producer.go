// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ulogproducer is the user-facing facade for enqueueing
// records: log, log_tagged, parameter_*, data, data_instance. It
// validates inputs, encodes user structs into a bounded payload
// buffer, and performs a single non-blocking enqueue, counting every
// rejection so the total is always observable.
//
// Producer only ever owns a counter (and, optionally, a Prometheus
// mirror of it) -- no mutexes, no buffering -- so it is safe to call
// from multiple goroutines and from contexts that must never block,
// such as interrupt handlers and other latency-sensitive callers.
package ulogproducer

import (
	"sync/atomic"

	"github.com/jettify/uf-ulog-go/internal/ulogmetrics"
	"github.com/jettify/uf-ulog-go/pkg/ulogrecord"
	"github.com/jettify/uf-ulog-go/pkg/ulogregistry"
)

// EmitStatus is the outcome of a single producer call.
type EmitStatus bool

const (
	Emitted EmitStatus = true
	Dropped EmitStatus = false
)

// Sender is the narrow, non-blocking half of the queue contract a
// Producer needs. *internal/queue.Queue[ulogrecord.Record] and
// *internal/natsqueue.Publisher both satisfy it.
type Sender interface {
	TrySend(ulogrecord.Record) bool
}

// Producer is the façade user code calls into. The zero value is not
// usable; construct with New.
type Producer struct {
	registry    *ulogregistry.Registry
	sender      Sender
	maxMultiIDs uint8
	dropped     atomic.Uint32
	metrics     *ulogmetrics.ProducerMetrics
}

// Option configures a Producer at construction time.
type Option func(*Producer)

// WithMetrics mirrors the drop counter into a Prometheus counter. Off
// by default so the hot path never pays for a disabled metric.
func WithMetrics(m *ulogmetrics.ProducerMetrics) Option {
	return func(p *Producer) { p.metrics = m }
}

// New builds a Producer bound to reg (for data/data_instance topic
// validation) and sender (the enqueue target). maxMultiIDs is the
// build-time MAX_MULTI_IDS bound on Data.instance.
func New(reg *ulogregistry.Registry, sender Sender, maxMultiIDs uint8, opts ...Option) *Producer {
	p := &Producer{registry: reg, sender: sender, maxMultiIDs: maxMultiIDs}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DroppedCount returns the total number of emit attempts that did not
// reach the queue. Monotonic, safe to read from any goroutine.
func (p *Producer) DroppedCount() uint32 {
	return p.dropped.Load()
}

func (p *Producer) drop() EmitStatus {
	p.dropped.Add(1)
	if p.metrics != nil {
		p.metrics.DroppedTotal.Inc()
	}
	return Dropped
}

func (p *Producer) enqueue(r ulogrecord.Record) EmitStatus {
	if !p.sender.TrySend(r) {
		return p.drop()
	}
	return Emitted
}

// Log builds an untagged LoggedString and enqueues it.
func (p *Producer) Log(level ulogrecord.LogLevel, ts uint64, msg string) EmitStatus {
	return p.enqueue(ulogrecord.NewLoggedString(level, ts, msg))
}

// LogTagged builds a tagged LoggedString and enqueues it.
func (p *Producer) LogTagged(level ulogrecord.LogLevel, tag uint16, ts uint64, msg string) EmitStatus {
	return p.enqueue(ulogrecord.NewLoggedStringTagged(level, tag, ts, msg))
}

// ParameterI32 synthesizes the key "int32_t <name>" and enqueues an
// I32 parameter. Drops (without enqueueing) if the synthesized key
// exceeds RecordCap or 255 bytes.
func (p *Producer) ParameterI32(name string, v int32) EmitStatus {
	return p.parameter("int32_t "+name, ulogrecord.I32(v))
}

// ParameterF32 synthesizes the key "float <name>" and enqueues an F32
// parameter. Drops (without enqueueing) if the synthesized key exceeds
// RecordCap or 255 bytes.
func (p *Producer) ParameterF32(name string, v float32) EmitStatus {
	return p.parameter("float "+name, ulogrecord.F32(v))
}

func (p *Producer) parameter(key string, v ulogrecord.ParameterValue) EmitStatus {
	r, err := ulogrecord.NewParameter(key, v)
	if err != nil {
		return p.drop()
	}
	return p.enqueue(r)
}

// Data is Producer.DataInstance(value, 0).
func (p *Producer) Data(value ulogrecord.ULogData, binding ulogrecord.TopicBinding) EmitStatus {
	return p.DataInstance(value, 0, binding)
}

// DataInstance encodes value via its ULogData.Encode into a bounded
// scratch buffer and enqueues a Data record for (binding.Index,
// instance). Drops without enqueueing if the binding's topic index is
// out of range for the active registry, if instance >= maxMultiIDs, or
// if Encode overflows or returns a length exceeding RecordCap.
func (p *Producer) DataInstance(value ulogrecord.ULogData, instance uint8, binding ulogrecord.TopicBinding) EmitStatus {
	if err := binding.Validate(p.registry, ulogregistry.MessageMeta{
		Name:     value.Name(),
		Format:   value.Format(),
		WireSize: value.WireSize(),
	}); err != nil {
		return p.drop()
	}
	if instance >= p.maxMultiIDs {
		return p.drop()
	}

	var scratch [ulogrecord.RecordCap]byte
	n, err := value.Encode(scratch[:])
	if err != nil || n > len(scratch) {
		return p.drop()
	}

	r, err := ulogrecord.NewData(binding.Index, instance, value.Timestamp(), scratch[:n])
	if err != nil {
		return p.drop()
	}
	return p.enqueue(r)
}
