// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ulogavro takes an operational snapshot of a registry and an
// exporter's subscription and drop state and encodes it as an Avro
// object container file, for debugging a running exporter without
// writing (or depending on) a ULog decoder. It never reads or mutates
// the .ulg byte stream itself.
package ulogavro

import (
	"bytes"
	"fmt"
	"io"

	"github.com/linkedin/goavro/v2"

	"github.com/jettify/uf-ulog-go/pkg/ulogexporter"
	"github.com/jettify/uf-ulog-go/pkg/ulogregistry"
)

const schema = `{
	"type": "record",
	"name": "ExporterSnapshot",
	"fields": [
		{"name": "topics", "type": {"type": "array", "items": {
			"type": "record",
			"name": "Topic",
			"fields": [
				{"name": "index", "type": "int"},
				{"name": "name", "type": "string"},
				{"name": "format", "type": "string"},
				{"name": "wire_size", "type": "int"}
			]
		}}},
		{"name": "subscribed_slots", "type": {"type": "array", "items": "long"}},
		{"name": "dropped_streams", "type": "long"}
	]
}`

var codec = mustCodec()

func mustCodec() *goavro.Codec {
	c, err := goavro.NewCodec(schema)
	if err != nil {
		panic(fmt.Sprintf("ulogavro: invalid embedded schema: %v", err))
	}
	return c
}

// Snapshot encodes reg's format-frame metadata and exp's current
// subscription and drop state as a single-record Avro OCF container,
// writing it to w. Like ulogexporter.Exporter.SubscribedSlots, this
// must not run concurrently with exp's owning goroutine.
func Snapshot(w io.Writer, reg *ulogregistry.Registry, exp *ulogexporter.Exporter) error {
	topics := make([]map[string]any, 0, reg.Len())
	reg.All(func(index uint16, meta ulogregistry.MessageMeta) bool {
		topics = append(topics, map[string]any{
			"index":     int32(index),
			"name":      meta.Name,
			"format":    meta.Format,
			"wire_size": int32(meta.WireSize),
		})
		return true
	})

	slots := exp.SubscribedSlots()
	subscribed := make([]any, len(slots))
	for i, s := range slots {
		subscribed[i] = int64(s)
	}

	native := map[string]any{
		"topics":           topics,
		"subscribed_slots": subscribed,
		"dropped_streams":  int64(exp.DroppedStreams()),
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:     w,
		Codec: codec,
	})
	if err != nil {
		return fmt.Errorf("ulogavro: creating OCF writer: %w", err)
	}
	if err := ocfWriter.Append([]any{native}); err != nil {
		return fmt.Errorf("ulogavro: writing snapshot: %w", err)
	}
	return nil
}

// Bytes is Snapshot but returns the encoded OCF container as a byte
// slice, for callers that want to write it out themselves (e.g. to a
// file or over a debug endpoint).
func Bytes(reg *ulogregistry.Registry, exp *ulogexporter.Exporter) ([]byte, error) {
	var buf bytes.Buffer
	if err := Snapshot(&buf, reg, exp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TopicSummary is one decoded entry from a Snapshot.
type TopicSummary struct {
	Index    uint16
	Name     string
	Format   string
	WireSize int
}

// Decoded is the result of decoding one Snapshot record.
type Decoded struct {
	Topics          []TopicSummary
	SubscribedSlots []uint64
	DroppedStreams  uint64
}

// Decode reads the single record out of an OCF container produced by
// Snapshot, for tests and debugging tools that do not want to depend
// on the live Registry/Exporter.
func Decode(r io.Reader) (Decoded, error) {
	ocfReader, err := goavro.NewOCFReader(r)
	if err != nil {
		return Decoded{}, fmt.Errorf("ulogavro: creating OCF reader: %w", err)
	}
	if !ocfReader.Scan() {
		if err := ocfReader.Err(); err != nil {
			return Decoded{}, fmt.Errorf("ulogavro: decode: %w", err)
		}
		return Decoded{}, fmt.Errorf("ulogavro: decode: empty snapshot")
	}
	native, err := ocfReader.Read()
	if err != nil {
		return Decoded{}, fmt.Errorf("ulogavro: decode: %w", err)
	}
	rec, ok := native.(map[string]any)
	if !ok {
		return Decoded{}, fmt.Errorf("ulogavro: decode: unexpected native type %T", native)
	}

	rawTopics, _ := rec["topics"].([]any)
	topics := make([]TopicSummary, 0, len(rawTopics))
	for _, rt := range rawTopics {
		m, ok := rt.(map[string]any)
		if !ok {
			continue
		}
		topics = append(topics, TopicSummary{
			Index:    uint16(m["index"].(int32)),
			Name:     m["name"].(string),
			Format:   m["format"].(string),
			WireSize: int(m["wire_size"].(int32)),
		})
	}

	rawSlots, _ := rec["subscribed_slots"].([]any)
	slots := make([]uint64, 0, len(rawSlots))
	for _, rs := range rawSlots {
		slots = append(slots, uint64(rs.(int64)))
	}

	droppedStreams := uint64(rec["dropped_streams"].(int64))
	return Decoded{Topics: topics, SubscribedSlots: slots, DroppedStreams: droppedStreams}, nil
}
