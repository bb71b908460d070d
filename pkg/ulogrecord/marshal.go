// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ulogrecord

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned by UnmarshalBinary when b is too short to
// hold a valid encoded Record.
var ErrShortBuffer = errors.New("ulogrecord: short buffer")

// MarshalBinary encodes r for transport between processes (e.g. over
// NATS, see internal/natsqueue). This is an internal process-to-process
// wire format, distinct from the bit-exact ULog frame layout that
// Exporter.WriteRecord produces -- it exists so a Record can cross a
// byte-oriented transport before it ever reaches an Exporter.
func (r Record) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 16+r.length)
	out = append(out, byte(r.Kind))
	out = append(out, byte(r.Level))
	tag := byte(0)
	if r.HasTag {
		tag = 1
	}
	out = append(out, tag)
	out = binary.LittleEndian.AppendUint16(out, r.Tag)
	out = binary.LittleEndian.AppendUint64(out, r.Timestamp)
	out = binary.LittleEndian.AppendUint16(out, r.TopicIndex)
	out = append(out, r.Instance)
	out = append(out, byte(r.Param.Kind))
	out = binary.LittleEndian.AppendUint32(out, r.Param.bits)
	out = binary.LittleEndian.AppendUint16(out, r.length)
	out = append(out, r.buf[:r.length]...)
	return out, nil
}

// UnmarshalBinary decodes a Record previously produced by MarshalBinary.
func (r *Record) UnmarshalBinary(b []byte) error {
	const headerLen = 1 + 1 + 1 + 2 + 8 + 2 + 1 + 1 + 4 + 2
	if len(b) < headerLen {
		return ErrShortBuffer
	}
	r.Kind = Kind(b[0])
	r.Level = LogLevel(b[1])
	r.HasTag = b[2] != 0
	off := 3
	r.Tag = binary.LittleEndian.Uint16(b[off:])
	off += 2
	r.Timestamp = binary.LittleEndian.Uint64(b[off:])
	off += 8
	r.TopicIndex = binary.LittleEndian.Uint16(b[off:])
	off += 2
	r.Instance = b[off]
	off++
	r.Param.Kind = ParameterKind(b[off])
	off++
	r.Param.bits = binary.LittleEndian.Uint32(b[off:])
	off += 4
	length := binary.LittleEndian.Uint16(b[off:])
	off += 2
	if len(b) < off+int(length) || int(length) > RecordCap {
		return ErrShortBuffer
	}
	r.length = length
	copy(r.buf[:], b[off:off+int(length)])
	return nil
}
