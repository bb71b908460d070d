// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ulogregistry holds the build-time table that maps a compact
// topic index to the name/format/wire-size triple of a telemetry
// message type. Index order is the order of construction and is
// externally observable through AddSubscription frames, so a Registry
// is immutable once built: there is no AddEntry, only New.
package ulogregistry

import "fmt"

// MessageMeta describes one message type that can be produced as Data.
// Format must follow the ULog format-string grammar (a ';'-separated
// list of "<type> <fieldname>" entries, the first of which is always
// "uint64_t timestamp").
type MessageMeta struct {
	Name      string
	Format    string
	WireSize  int
}

// Registry is an ordered, immutable sequence of MessageMeta. The index
// into the sequence is the stable topic_index referenced by Data
// records and TopicBinding.
type Registry struct {
	entries []MessageMeta
}

// New builds a Registry from entries, in order. It fails at
// construction time if any two entries share a name, catching a
// misconfigured topic table before it can produce ambiguous
// AddSubscription frames.
func New(entries ...MessageMeta) (*Registry, error) {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("ulogregistry: duplicate message name %q", e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	out := make([]MessageMeta, len(entries))
	copy(out, entries)
	return &Registry{entries: out}, nil
}

// MustNew is New but panics on error, for package-level registry
// variables that should fail the build rather than be checked at
// every call site.
func MustNew(entries ...MessageMeta) *Registry {
	reg, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return reg
}

// Len returns the number of registered message types.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Get returns the entry at topic_index i. The second return value is
// false when i is out of range -- Get is intentionally partial, never
// panicking, since exporter code calls it with caller-supplied indices.
func (r *Registry) Get(i uint16) (MessageMeta, bool) {
	if r == nil || int(i) >= len(r.entries) {
		return MessageMeta{}, false
	}
	return r.entries[i], true
}

// All calls fn for every (topic_index, MessageMeta) pair in
// registration order, stopping early if fn returns false.
func (r *Registry) All(fn func(index uint16, meta MessageMeta) bool) {
	if r == nil {
		return
	}
	for i, e := range r.entries {
		if !fn(uint16(i), e) {
			return
		}
	}
}
