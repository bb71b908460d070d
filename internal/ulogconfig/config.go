// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ulogconfig loads the three runtime-configurable knobs of the
// pipeline -- MaxMultiIDs, MaxStreams, and the producer/exporter queue
// capacity -- from JSON, validated against an embedded schema before
// decode.
package ulogconfig

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jettify/uf-ulog-go/internal/cclog"
)

const schema = `{
	"type": "object",
	"description": "Build-time configuration for the ULog producer/exporter pipeline.",
	"properties": {
		"max-multi-ids": {
			"description": "Number of instances permitted per topic.",
			"type": "integer",
			"minimum": 1,
			"maximum": 255
		},
		"max-streams": {
			"description": "Subscription-slot budget ceiling.",
			"type": "integer",
			"minimum": 0
		},
		"queue-capacity": {
			"description": "Buffered capacity of the producer/exporter queue.",
			"type": "integer",
			"minimum": 1
		}
	},
	"required": ["max-multi-ids", "max-streams", "queue-capacity"]
}`

// Config is the decoded, validated configuration.
type Config struct {
	MaxMultiIDs   uint8  `json:"max-multi-ids"`
	MaxStreams    uint32 `json:"max-streams"`
	QueueCapacity int    `json:"queue-capacity"`
}

// Load validates raw against the embedded schema, then decodes it.
// Load returns an error rather than exiting the process: this package
// is a library used by cmd/ulog-exporter and by tests, and a library
// must never exit the process out from under its caller.
func Load(raw json.RawMessage) (Config, error) {
	sch, err := jsonschema.CompileString("ulogconfig.json", schema)
	if err != nil {
		return Config{}, fmt.Errorf("ulogconfig: compiling schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Config{}, fmt.Errorf("ulogconfig: parsing config: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return Config{}, fmt.Errorf("ulogconfig: invalid config: %w", err)
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("ulogconfig: decoding config: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load but calls cclog.Fatal on error, for use at process
// startup where an invalid configuration is unrecoverable.
func MustLoad(raw json.RawMessage) Config {
	cfg, err := Load(raw)
	if err != nil {
		cclog.Fatal(err)
	}
	return cfg
}
