// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"reflect"
	"testing"
)

// scratchBuf returns a fresh scratch-sized buffer, mirroring the
// Instance.scratch area these encode functions write into outside tests.
func scratchBuf() []byte {
	return make([]byte, scratchSize)
}

func TestReadRequestRoundTrip(t *testing.T) {
	data := encodeReadRequest(scratchBuf(), 0x006B, 0x0003)
	address, quantity, ok := decodeReadRequest(data)
	if !ok || address != 0x006B || quantity != 0x0003 {
		t.Fatalf("decodeReadRequest(%x) = (%#x, %d, %v)", data, address, quantity, ok)
	}
	if _, _, ok := decodeReadRequest(data[:3]); ok {
		t.Error("decodeReadRequest accepted a short payload")
	}
}

func TestReadBitsResponseRoundTrip(t *testing.T) {
	bits := []bool{true, false, true, true, false, false, true, false, true}
	data := encodeReadBitsResponse(scratchBuf(), bits)
	if data[0] != 2 {
		t.Fatalf("byte count = %d, want 2 for 9 bits", data[0])
	}
	got, ok := decodeReadBitsResponse(data, uint16(len(bits)))
	if !ok {
		t.Fatal("decodeReadBitsResponse failed")
	}
	if !reflect.DeepEqual(got, bits) {
		t.Errorf("decodeReadBitsResponse = %v, want %v", got, bits)
	}
}

func TestReadRegistersResponseRoundTrip(t *testing.T) {
	values := []uint16{0x0102, 0x0304, 0xFFFF}
	data := encodeReadRegistersResponse(scratchBuf(), values)
	if int(data[0]) != len(values)*2 {
		t.Fatalf("byte count = %d, want %d", data[0], len(values)*2)
	}
	got, ok := decodeReadRegistersResponse(data)
	if !ok {
		t.Fatal("decodeReadRegistersResponse failed")
	}
	if !reflect.DeepEqual(got, values) {
		t.Errorf("decodeReadRegistersResponse = %v, want %v", got, values)
	}
}

func TestDecodeReadRegistersResponseRejectsOddByteCount(t *testing.T) {
	data := []byte{0x03, 0x00, 0x01, 0x00}
	if _, ok := decodeReadRegistersResponse(data); ok {
		t.Error("accepted an odd byte count")
	}
}

func TestWriteSingleRoundTrip(t *testing.T) {
	data := encodeWriteSingle(scratchBuf(), 0x0001, coilOnOff(true))
	address, value, ok := decodeWriteSingle(data)
	if !ok || address != 0x0001 || value != 0xFF00 {
		t.Fatalf("decodeWriteSingle(%x) = (%#x, %#x, %v)", data, address, value, ok)
	}
	if coilOnOff(false) != 0x0000 {
		t.Errorf("coilOnOff(false) = %#x, want 0x0000", coilOnOff(false))
	}
}

func TestWriteMultipleRequestRoundTrip(t *testing.T) {
	payload := packBits([]bool{true, true, false, true, true, false, true, true, true})
	data := encodeWriteMultipleRequest(scratchBuf(), 0x0013, 9, payload)
	address, quantity, gotPayload, ok := decodeWriteMultipleRequest(data)
	if !ok || address != 0x0013 || quantity != 9 || !reflect.DeepEqual(gotPayload, payload) {
		t.Fatalf("decodeWriteMultipleRequest(%x) = (%#x, %d, %x, %v)", data, address, quantity, gotPayload, ok)
	}
}

func TestDecodeWriteMultipleRequestRejectsByteCountMismatch(t *testing.T) {
	// address=0, quantity=8, byte-count claims 2 but only 1 byte follows.
	data := []byte{0x00, 0x00, 0x00, 0x08, 0x02, 0xFF}
	if _, _, _, ok := decodeWriteMultipleRequest(data); ok {
		t.Error("accepted a byte-count/payload-length mismatch")
	}
}

func TestMaskWriteRoundTrip(t *testing.T) {
	data := encodeMaskWrite(scratchBuf(), 0x0004, 0x00F2, 0x0025)
	address, and, or, ok := decodeMaskWrite(data)
	if !ok || address != 0x0004 || and != 0x00F2 || or != 0x0025 {
		t.Fatalf("decodeMaskWrite(%x) = (%#x, %#x, %#x, %v)", data, address, and, or, ok)
	}
}

func TestReadWriteRequestRoundTrip(t *testing.T) {
	writeValues := []uint16{0x00FF, 0xFF00}
	data := encodeReadWriteRequest(scratchBuf(), 0x0003, 0x0006, 0x000E, 2, registersBlock(writeValues...))
	readAddr, readQty, writeAddr, writeQty, payload, ok := decodeReadWriteRequest(data)
	if !ok || readAddr != 0x0003 || readQty != 0x0006 || writeAddr != 0x000E || writeQty != 2 {
		t.Fatalf("decodeReadWriteRequest header mismatch: %#x %d %#x %d ok=%v", readAddr, readQty, writeAddr, writeQty, ok)
	}
	if !reflect.DeepEqual(bytesToRegisters(payload), writeValues) {
		t.Errorf("decoded write payload = %v, want %v", bytesToRegisters(payload), writeValues)
	}
}

func TestExceptionRoundTrip(t *testing.T) {
	pdu := encodeException(scratchBuf(), FuncCodeReadHoldingRegisters, ExceptionIllegalDataAddress)
	if pdu.FunctionCode != FuncCodeReadHoldingRegisters|exceptionFlag {
		t.Fatalf("exception function code = %#x", pdu.FunctionCode)
	}
	if !pdu.IsException() {
		t.Error("IsException() = false for an exception PDU")
	}
	if pdu.RequestFunctionCode() != FuncCodeReadHoldingRegisters {
		t.Errorf("RequestFunctionCode() = %#x, want %#x", pdu.RequestFunctionCode(), FuncCodeReadHoldingRegisters)
	}
	code, ok := decodeException(pdu.Data)
	if !ok || code != ExceptionIllegalDataAddress {
		t.Fatalf("decodeException(%x) = (%#x, %v)", pdu.Data, code, ok)
	}
}

func TestCountLimits(t *testing.T) {
	cases := []struct {
		name  string
		valid func(uint16) bool
		min   uint16
		max   uint16
	}{
		{"read bits", validReadBitQuantity, minReadBitQuantity, maxReadBitQuantity},
		{"read registers", validReadRegQuantity, minReadRegQuantity, maxReadRegQuantity},
		{"write bits", validWriteBitQuantity, minWriteBitQuantity, maxWriteBitQuantity},
		{"write registers", validWriteRegQuantity, minWriteRegQuantity, maxWriteRegQuantity},
		{"read-write read", validRWReadQuantity, minRWReadQuantity, maxRWReadQuantity},
		{"read-write write", validRWWriteQuantity, minRWWriteQuantity, maxRWWriteQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.valid(tc.min - 1) {
				t.Errorf("%d accepted below minimum %d", tc.min-1, tc.min)
			}
			if !tc.valid(tc.min) {
				t.Errorf("minimum %d rejected", tc.min)
			}
			if !tc.valid(tc.max) {
				t.Errorf("maximum %d rejected", tc.max)
			}
			if tc.valid(tc.max + 1) {
				t.Errorf("%d accepted above maximum %d", tc.max+1, tc.max)
			}
		})
	}
}
