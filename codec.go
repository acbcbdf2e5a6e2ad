// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"encoding/binary"
	"math"
)

// putUint16 writes v big-endian at the start of b. b must have length >= 2.
func putUint16(b []byte, v uint16) {
	binary.BigEndian.PutUint16(b, v)
}

// getUint16 reads a big-endian uint16 from the start of b.
func getUint16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

// putFloat32 writes v's IEEE-754 bit pattern big-endian at the start of b,
// occupying a register pair. b must have length >= 4.
func putFloat32(b []byte, v float32) {
	binary.BigEndian.PutUint32(b, math.Float32bits(v))
}

// getFloat32 reads a big-endian IEEE-754 bit pattern from the start of b
// and reinterprets it as a float32.
func getFloat32(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

// registersBlock encodes a sequence of uint16 values big-endian,
// contiguously.
func registersBlock(values ...uint16) []byte {
	data := make([]byte, 2*len(values))
	for i, v := range values {
		putUint16(data[i*2:], v)
	}
	return data
}

// bytesToRegisters decodes a contiguous run of big-endian uint16 values.
func bytesToRegisters(data []byte) []uint16 {
	count := len(data) / 2
	result := make([]uint16, count)
	for i := 0; i < count; i++ {
		result[i] = getUint16(data[i*2:])
	}
	return result
}

// byteCount returns the number of bytes needed to hold quantity packed
// bits, i.e. ceil(quantity/8).
func byteCount(quantity uint16) byte {
	return byte((quantity + 7) / 8)
}

// packBits packs quantity bools into a byte slice, least-significant bit
// first, zero-padded to a byte boundary.
func packBits(bits []bool) []byte {
	out := make([]byte, byteCount(uint16(len(bits))))
	for i, v := range bits {
		if !v {
			continue
		}
		out[i/8] |= 1 << uint(i%8)
	}
	return out
}

// unpackBits extracts quantity bits from data, least-significant bit
// first.
func unpackBits(data []byte, quantity uint16) []bool {
	result := make([]bool, quantity)
	for i := uint16(0); i < quantity; i++ {
		result[i] = data[i/8]&(1<<uint(i%8)) != 0
	}
	return result
}
