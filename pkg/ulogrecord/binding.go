// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ulogrecord

import (
	"errors"
	"fmt"

	"github.com/jettify/uf-ulog-go/pkg/ulogregistry"
)

// ULogData is the contract a user telemetry type must satisfy to be
// produced as a Data record. It is implemented once per telemetry
// struct and checked by TopicBinding.Validate each time a Data record
// is produced, rather than by the compiler.
type ULogData interface {
	// Name is the unique registry name; must match the bound
	// MessageMeta.Name.
	Name() string
	// Format is the ULog format-string descriptor; must match the
	// bound MessageMeta.Format.
	Format() string
	// WireSize is the exact byte length Encode writes; must match the
	// bound MessageMeta.WireSize.
	WireSize() int
	// Timestamp is the caller-supplied logical time in microseconds.
	Timestamp() uint64
	// Encode writes the fields in declaration order, little-endian,
	// into buf (which is at least WireSize() bytes), returning the
	// number of bytes written or ErrBufferOverflow.
	Encode(buf []byte) (int, error)
}

// ErrBufferOverflow is returned by ULogData.Encode implementations
// when the destination buffer is too small.
var ErrBufferOverflow = errors.New("ulogrecord: buffer overflow during encode")

// TopicBinding associates a user telemetry type (identified only by
// the MessageMeta it claims) with a fixed topic_index in a specific
// Registry. Validate re-checks that the bound index, name, format, and
// wire size still agree every time a binding is used, since nothing
// at compile time enforces that a struct's encoding stays in sync with
// the registry entry it was bound against.
type TopicBinding struct {
	Index uint16
}

// Validate checks that b.Index is in range for reg and that the entry
// at that index matches meta exactly.
func (b TopicBinding) Validate(reg *ulogregistry.Registry, meta ulogregistry.MessageMeta) error {
	entry, ok := reg.Get(b.Index)
	if !ok {
		return fmt.Errorf("ulogrecord: topic index %d out of range (registry has %d entries)", b.Index, reg.Len())
	}
	if entry.Name != meta.Name || entry.Format != meta.Format || entry.WireSize != meta.WireSize {
		return fmt.Errorf("ulogrecord: topic index %d bound to %+v, registry has %+v", b.Index, meta, entry)
	}
	return nil
}
