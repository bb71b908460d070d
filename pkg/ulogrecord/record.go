// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ulogrecord defines the Record sum type that crosses the
// producer-to-exporter queue: LoggedString, Data, and Parameter. A
// Record is a value object with fixed-capacity storage -- producing
// one never allocates on the heap, so it can be built from
// interrupt-adjacent contexts where blocking and allocation are both
// forbidden.
package ulogrecord

import (
	"errors"
	"math"
)

// RecordCap bounds the shared text/payload/key buffer embedded in
// every Record. It is a compile-time constant: bumping it recompiles
// the whole module, which is deliberate since the buffer is embedded
// inline rather than heap-allocated.
const RecordCap = 512

// Kind discriminates the Record sum type.
type Kind uint8

const (
	KindLoggedString Kind = iota
	KindData
	KindParameter
)

func (k Kind) String() string {
	switch k {
	case KindLoggedString:
		return "LoggedString"
	case KindData:
		return "Data"
	case KindParameter:
		return "Parameter"
	default:
		return "Unknown"
	}
}

// LogLevel is one of the eight syslog severities. On the wire it is
// encoded as the ASCII digit '0' (Emerg) through '7' (Debug).
type LogLevel uint8

const (
	LogEmerg LogLevel = iota
	LogAlert
	LogCrit
	LogErr
	LogWarning
	LogNotice
	LogInfo
	LogDebug
)

// Byte returns the wire encoding of the level: the ASCII digit '0'..'7'.
func (l LogLevel) Byte() byte {
	return '0' + byte(l&0x7)
}

// ParameterKind discriminates the two ParameterValue payloads.
type ParameterKind uint8

const (
	ParamI32 ParameterKind = iota
	ParamF32
)

// ParameterValue is either an int32 or a float32, stored as a raw
// 4-byte bit pattern so ParameterValue itself needs no heap allocation
// or interface boxing.
type ParameterValue struct {
	Kind ParameterKind
	bits uint32
}

// I32 constructs an integer ParameterValue.
func I32(v int32) ParameterValue {
	return ParameterValue{Kind: ParamI32, bits: uint32(v)}
}

// F32 constructs a floating-point ParameterValue.
func F32(v float32) ParameterValue {
	return ParameterValue{Kind: ParamF32, bits: math.Float32bits(v)}
}

// Int32 returns the value reinterpreted as int32. Only meaningful when Kind == ParamI32.
func (p ParameterValue) Int32() int32 { return int32(p.bits) }

// Float32 returns the value reinterpreted as float32. Only meaningful when Kind == ParamF32.
func (p ParameterValue) Float32() float32 { return math.Float32frombits(p.bits) }

// RawBits returns the raw 4-byte bit pattern backing the value,
// regardless of Kind. This is the little-endian value encoded into a
// Parameter frame's payload.
func (p ParameterValue) RawBits() uint32 { return p.bits }

var (
	// ErrPayloadTooLarge is returned by NewData when payload exceeds RecordCap.
	ErrPayloadTooLarge = errors.New("ulogrecord: payload exceeds RecordCap")
	// ErrKeyTooLong is returned when a Parameter key exceeds the 255-byte wire limit or RecordCap.
	ErrKeyTooLong = errors.New("ulogrecord: parameter key too long")
)

// Record is the tagged union carried across the producer/exporter
// queue. Fields not relevant to Kind are simply unused; the struct is
// a plain value type, safe to copy, never mutated in place once
// constructed.
type Record struct {
	Kind Kind

	// LoggedString / LoggedString-tagged fields.
	Level     LogLevel
	Tag       uint16
	HasTag    bool
	Timestamp uint64

	// Data fields.
	TopicIndex uint16
	Instance   uint8

	// Parameter fields.
	Param ParameterValue

	buf    [RecordCap]byte
	length uint16
}

// Bytes returns the variant-specific payload: log text, Data payload,
// or Parameter key, depending on Kind.
func (r *Record) Bytes() []byte {
	return r.buf[:r.length]
}

func (r *Record) setBytes(b []byte) {
	n := copy(r.buf[:], b)
	r.length = uint16(n)
}

// NewLoggedString builds an untagged log line, truncating msg to
// RecordCap bytes.
func NewLoggedString(level LogLevel, ts uint64, msg string) Record {
	r := Record{Kind: KindLoggedString, Level: level, Timestamp: ts}
	r.setBytes(truncate([]byte(msg), RecordCap))
	return r
}

// NewLoggedStringTagged builds a tagged log line, truncating msg to
// RecordCap bytes.
func NewLoggedStringTagged(level LogLevel, tag uint16, ts uint64, msg string) Record {
	r := Record{Kind: KindLoggedString, Level: level, Tag: tag, HasTag: true, Timestamp: ts}
	r.setBytes(truncate([]byte(msg), RecordCap))
	return r
}

// NewParameter builds a Parameter record from an already-synthesized
// key (e.g. "int32_t P") and value. It fails if key exceeds either
// the 255-byte wire limit or RecordCap.
func NewParameter(key string, value ParameterValue) (Record, error) {
	if len(key) > 255 || len(key) > RecordCap {
		return Record{}, ErrKeyTooLong
	}
	r := Record{Kind: KindParameter, Param: value}
	r.setBytes([]byte(key))
	return r, nil
}

// NewData builds a Data record. payload must already be the
// little-endian field-by-field encoding of one telemetry sample; it
// fails if payload exceeds RecordCap.
func NewData(topicIndex uint16, instance uint8, ts uint64, payload []byte) (Record, error) {
	if len(payload) > RecordCap {
		return Record{}, ErrPayloadTooLarge
	}
	r := Record{Kind: KindData, TopicIndex: topicIndex, Instance: instance, Timestamp: ts}
	r.setBytes(payload)
	return r, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
