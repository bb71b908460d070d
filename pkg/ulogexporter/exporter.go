// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ulogexporter drains the producer/exporter queue and
// serializes each record into the exact wire frames the ULog v1
// container format requires, emitting startup metadata on first use
// and a subscription frame the first time each (topic, instance) pair
// is seen.
//
// An Exporter is owned by exactly one goroutine: it is not safe for
// concurrent use against itself. Sharing the sink's internal bufio
// buffer and the subscription bitset across goroutines would require
// locking on every record, which would defeat the point of draining
// the queue on a single dedicated writer.
package ulogexporter

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jettify/uf-ulog-go/internal/cclog"
	"github.com/jettify/uf-ulog-go/internal/ulogmetrics"
	"github.com/jettify/uf-ulog-go/pkg/ulogrecord"
	"github.com/jettify/uf-ulog-go/pkg/ulogregistry"
)

// Protocol-level errors, surfaced to the caller without retry.
var (
	ErrInvalidTopicIndex = errors.New("ulogexporter: invalid topic index")
	ErrInvalidMultiId    = errors.New("ulogexporter: instance >= MaxMultiIDs")
	ErrTooManyStreams    = errors.New("ulogexporter: subscription slot exceeds 65535")
	ErrMessageTooLarge   = errors.New("ulogexporter: frame payload exceeds 65535 bytes")
	// ErrNotStarted is returned by Run when EmitStartup has not been
	// called yet. PollOnce instead returns (Idle, nil) in this case,
	// since a single non-blocking poll has no harm in returning idle
	// before startup; a suspending loop driver has no sensible
	// idle-forever behavior, so Run treats it as a caller-contract
	// violation instead of a busy-loop.
	ErrNotStarted = errors.New("ulogexporter: EmitStartup must be called before Run")
)

// Step is the outcome of one PollOnce call.
type Step int

const (
	Idle Step = iota
	Progressed
)

// Receiver is the narrow half of the queue contract an Exporter needs.
type Receiver interface {
	TryRecv() (ulogrecord.Record, bool)
	Recv(ctx context.Context) (ulogrecord.Record, bool)
}

// Exporter is the ULog serialization state machine.
type Exporter struct {
	registry    *ulogregistry.Registry
	receiver    Receiver
	sink        *bufio.Writer
	maxMultiIDs uint32
	maxStreams  uint32

	started    bool
	subscribed []uint64 // bitset, one bit per slot

	droppedStreams atomic.Uint32
	metrics        *ulogmetrics.ExporterMetrics
	dropLimiter    *rate.Limiter
}

// Option configures an Exporter at construction time.
type Option func(*Exporter)

// WithMetrics mirrors exporter counters into Prometheus.
func WithMetrics(m *ulogmetrics.ExporterMetrics) Option {
	return func(e *Exporter) { e.metrics = m }
}

// New builds an Exporter writing to sink. maxMultiIDs bounds Data's
// instance field, and maxStreams bounds the number of distinct
// (topic, instance) subscription slots the exporter will track; both
// are accepted as constructor parameters rather than compile-time
// constants so one binary can serve registries of differing size.
func New(reg *ulogregistry.Registry, recv Receiver, sink io.Writer, maxMultiIDs uint8, maxStreams uint32, opts ...Option) *Exporter {
	nslots := (maxStreams + 63) / 64
	if nslots == 0 {
		nslots = 1
	}
	e := &Exporter{
		registry:    reg,
		receiver:    recv,
		sink:        bufio.NewWriter(sink),
		maxMultiIDs: uint32(maxMultiIDs),
		maxStreams:  maxStreams,
		subscribed:  make([]uint64, nslots),
		// Stream-slot overflow is a capacity event, not a protocol
		// error; throttle the accompanying warning log so a sustained
		// overflow cannot itself become a bottleneck on the single
		// exporter goroutine.
		dropLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exporter) writeFrame(msgType byte, payload []byte) error {
	if len(payload) > maxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(payload))
	}
	var header [3]byte
	binary.LittleEndian.PutUint16(header[:2], uint16(len(payload)))
	header[2] = msgType
	if _, err := e.sink.Write(header[:]); err != nil {
		return err
	}
	if _, err := e.sink.Write(payload); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.BytesWritten.Add(float64(len(header) + len(payload)))
	}
	return e.sink.Flush()
}

// EmitStartup writes the file header, flag-bits frame, and one format
// frame per registry entry, in registry order. Idempotent: subsequent
// calls after a successful first call are no-ops.
func (e *Exporter) EmitStartup(ts uint64) error {
	if e.started {
		return nil
	}

	var header [16]byte
	copy(header[:7], fileMagic[:])
	header[7] = fileVersion
	binary.LittleEndian.PutUint64(header[8:], ts)
	if _, err := e.sink.Write(header[:]); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.BytesWritten.Add(float64(len(header)))
	}
	if err := e.sink.Flush(); err != nil {
		return err
	}

	var flagBits [flagBitsPayloadSize]byte
	if err := e.writeFrame(msgTypeFlagBits, flagBits[:]); err != nil {
		return err
	}

	var ferr error
	e.registry.All(func(_ uint16, meta ulogregistry.MessageMeta) bool {
		payload := make([]byte, 0, len(meta.Name)+1+len(meta.Format))
		payload = append(payload, meta.Name...)
		payload = append(payload, ':')
		payload = append(payload, meta.Format...)
		if ferr = e.writeFrame(msgTypeFormat, payload); ferr != nil {
			return false
		}
		return true
	})
	if ferr != nil {
		return ferr
	}

	e.started = true
	return nil
}

// PollOnce performs one non-blocking try_recv. If the Exporter has not
// been started, it returns (Idle, nil) without touching the queue; if
// the queue is empty, it returns (Idle, nil). If a record was drained,
// it writes it and returns (Progressed, err).
func (e *Exporter) PollOnce() (Step, error) {
	if !e.started {
		return Idle, nil
	}
	r, ok := e.receiver.TryRecv()
	if !ok {
		return Idle, nil
	}
	if err := e.WriteRecord(r); err != nil {
		return Progressed, err
	}
	return Progressed, nil
}

// Run blocks, draining and writing one record at a time, until ctx is
// cancelled, the queue is closed and drained, or a protocol/sink error
// occurs. EmitStartup must be called first.
func (e *Exporter) Run(ctx context.Context) error {
	if !e.started {
		return ErrNotStarted
	}
	for {
		r, ok := e.receiver.Recv(ctx)
		if !ok {
			return nil
		}
		if err := e.WriteRecord(r); err != nil {
			return err
		}
	}
}

// DroppedStreams is the number of Data records dropped because their
// (topic, instance) slot exceeded MaxStreams. Monotonic.
func (e *Exporter) DroppedStreams() uint32 {
	return e.droppedStreams.Load()
}

// SubscribedSlots returns the (topic, instance) slot indices that have
// already emitted an AddSubscription frame. Like WriteRecord, this
// reads state the owning goroutine mutates and so must not be called
// concurrently with Run/PollOnce; it exists for tools that snapshot an
// Exporter's state between polls on the same goroutine.
func (e *Exporter) SubscribedSlots() []uint64 {
	var slots []uint64
	for word, bits := range e.subscribed {
		for bit := 0; bit < 64; bit++ {
			if bits&(1<<uint(bit)) != 0 {
				slots = append(slots, uint64(word)*64+uint64(bit))
			}
		}
	}
	return slots
}

// WriteRecord serializes one Record into its framed wire form.
func (e *Exporter) WriteRecord(r ulogrecord.Record) error {
	switch r.Kind {
	case ulogrecord.KindLoggedString:
		return e.writeLoggedString(r)
	case ulogrecord.KindParameter:
		return e.writeParameter(r)
	case ulogrecord.KindData:
		return e.writeData(r)
	default:
		return fmt.Errorf("ulogexporter: unknown record kind %v", r.Kind)
	}
}

func (e *Exporter) writeLoggedString(r ulogrecord.Record) error {
	text := r.Bytes()
	if r.HasTag {
		payload := make([]byte, 0, 1+2+8+len(text))
		payload = append(payload, r.Level.Byte())
		payload = binary.LittleEndian.AppendUint16(payload, r.Tag)
		payload = binary.LittleEndian.AppendUint64(payload, r.Timestamp)
		payload = append(payload, text...)
		return e.writeFrame(msgTypeLogTagged, payload)
	}
	payload := make([]byte, 0, 1+8+len(text))
	payload = append(payload, r.Level.Byte())
	payload = binary.LittleEndian.AppendUint64(payload, r.Timestamp)
	payload = append(payload, text...)
	return e.writeFrame(msgTypeLog, payload)
}

func (e *Exporter) writeParameter(r ulogrecord.Record) error {
	key := r.Bytes()
	payload := make([]byte, 0, 1+len(key)+4)
	payload = append(payload, byte(len(key)))
	payload = append(payload, key...)
	payload = binary.LittleEndian.AppendUint32(payload, r.Param.RawBits())
	return e.writeFrame(msgTypeParameter, payload)
}

func (e *Exporter) writeData(r ulogrecord.Record) error {
	if uint32(r.Instance) >= e.maxMultiIDs {
		return ErrInvalidMultiId
	}
	meta, ok := e.registry.Get(r.TopicIndex)
	if !ok {
		return ErrInvalidTopicIndex
	}

	slot := uint64(r.TopicIndex)*uint64(e.maxMultiIDs) + uint64(r.Instance)
	if slot >= uint64(e.maxStreams) {
		e.droppedStreams.Add(1)
		if e.metrics != nil {
			e.metrics.DroppedStreams.Inc()
		}
		if e.dropLimiter.Allow() {
			cclog.Warnf("ulogexporter: dropping data for topic %d instance %d: slot budget exhausted", r.TopicIndex, r.Instance)
		}
		return nil
	}
	if slot >= 1<<16 {
		return fmt.Errorf("%w: slot %d", ErrTooManyStreams, slot)
	}
	msgID := uint16(slot)

	if !e.isSubscribed(slot) {
		payload := make([]byte, 0, 1+2+len(meta.Name))
		payload = append(payload, r.Instance)
		payload = binary.LittleEndian.AppendUint16(payload, msgID)
		payload = append(payload, meta.Name...)
		if err := e.writeFrame(msgTypeAddSubscription, payload); err != nil {
			return err
		}
		e.setSubscribed(slot)
	}

	data := r.Bytes()
	payload := make([]byte, 0, 2+len(data))
	payload = binary.LittleEndian.AppendUint16(payload, msgID)
	payload = append(payload, data...)
	return e.writeFrame(msgTypeData, payload)
}

func (e *Exporter) isSubscribed(slot uint64) bool {
	word, bit := slot/64, slot%64
	return e.subscribed[word]&(1<<bit) != 0
}

func (e *Exporter) setSubscribed(slot uint64) {
	word, bit := slot/64, slot%64
	e.subscribed[word] |= 1 << bit
}
