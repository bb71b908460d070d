// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ulogexporter

// Bit-exact ULog v1 wire constants.
var fileMagic = [7]byte{0x55, 0x4C, 0x6F, 0x67, 0x01, 0x12, 0x35}

const fileVersion byte = 0x01

const (
	msgTypeFlagBits        byte = 'B'
	msgTypeFormat          byte = 'F'
	msgTypeAddSubscription byte = 'A'
	msgTypeData            byte = 'D'
	msgTypeLog             byte = 'L'
	msgTypeLogTagged       byte = 'C'
	msgTypeParameter       byte = 'P'
)

const flagBitsPayloadSize = 40

const maxMessageSize = 1<<16 - 1
