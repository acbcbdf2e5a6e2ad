// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

// This file is the PDU codec: per-function-code construction and parsing
// of the Data payload of a ProtocolDataUnit, shared by both the master
// engine (client.go, which constructs requests and parses responses) and
// the slave engine (slave.go, which parses requests and constructs
// responses), so the two sides can never drift out of sync on the wire
// shape of a function code.
//
// A short payload is reported back as ok=false so callers can turn it
// into the right error for their side (framing error on the master,
// illegal-data-value exception on the slave).

// --- read-request / read-response (0x01-0x04) ---

// encodeReadRequest builds the Data payload of a read-coils,
// read-discrete-inputs, read-holding-registers or read-input-registers
// request: address (u16) + count (u16), written into buf (the caller's
// scratch area). buf must have length >= 4.
func encodeReadRequest(buf []byte, address, quantity uint16) []byte {
	putUint16(buf, address)
	putUint16(buf[2:], quantity)
	return buf[:4]
}

// decodeReadRequest parses a read request payload (min length 4).
func decodeReadRequest(data []byte) (address, quantity uint16, ok bool) {
	if len(data) < 4 {
		return 0, 0, false
	}
	return getUint16(data), getUint16(data[2:]), true
}

// encodeReadBitsResponse builds a read-coils/read-discrete-inputs response
// payload into buf (the caller's scratch area): byte-count (u8) + packed
// bits, LSB first, zero-padded. buf must be large enough to hold
// 1+ceil(len(bits)/8) bytes.
func encodeReadBitsResponse(buf []byte, bits []bool) []byte {
	packed := packBits(bits)
	buf[0] = byte(len(packed))
	copy(buf[1:], packed)
	return buf[:1+len(packed)]
}

// decodeReadBitsResponse parses a read-coils/read-discrete-inputs response
// payload: 1 byte-count byte plus that many data bytes, and requires the
// total length to equal 1+byte-count exactly.
func decodeReadBitsResponse(data []byte, quantity uint16) (bits []bool, ok bool) {
	if len(data) < 2 {
		return nil, false
	}
	count := int(data[0])
	if len(data) != 1+count || count != int(byteCount(quantity)) {
		return nil, false
	}
	return unpackBits(data[1:], quantity), true
}

// encodeReadRegistersResponse builds a read-holding/read-input-registers
// response payload into buf (the caller's scratch area): byte-count (u8)
// + registers big-endian. buf must be large enough to hold 1+2*len(values)
// bytes.
func encodeReadRegistersResponse(buf []byte, values []uint16) []byte {
	payload := registersBlock(values...)
	buf[0] = byte(len(payload))
	copy(buf[1:], payload)
	return buf[:1+len(payload)]
}

// decodeReadRegistersResponse parses a read-holding/read-input-registers
// response payload.
func decodeReadRegistersResponse(data []byte) (values []uint16, ok bool) {
	if len(data) < 3 {
		return nil, false
	}
	count := int(data[0])
	if len(data) != 1+count || count%2 != 0 {
		return nil, false
	}
	return bytesToRegisters(data[1 : 1+count]), true
}

// --- write-single (0x05/0x06): request and echo response share a shape ---

// encodeWriteSingle builds the 4-byte address+value payload used by both
// the write-single-coil/write-single-register request and its echo
// response, written into buf (the caller's scratch area). buf must have
// length >= 4.
func encodeWriteSingle(buf []byte, address, value uint16) []byte {
	putUint16(buf, address)
	putUint16(buf[2:], value)
	return buf[:4]
}

// decodeWriteSingle parses the shared request/response shape (min length
// 4; the function-code byte itself lives outside ProtocolDataUnit.Data in
// this codec).
func decodeWriteSingle(data []byte) (address, value uint16, ok bool) {
	if len(data) < 4 {
		return 0, 0, false
	}
	return getUint16(data), getUint16(data[2:]), true
}

// coilOnOff encodes a bool coil value as the wire 0xFF00/0x0000 pair.
func coilOnOff(on bool) uint16 {
	if on {
		return 0xFF00
	}
	return 0x0000
}

// --- write-multiple-request / write-multiple-response (0x0F/0x10) ---

// encodeWriteMultipleRequest builds address+count+byte-count+payload into
// buf (the caller's scratch area). buf must be large enough to hold
// 5+len(payload) bytes.
func encodeWriteMultipleRequest(buf []byte, address, quantity uint16, payload []byte) []byte {
	putUint16(buf, address)
	putUint16(buf[2:], quantity)
	buf[4] = byte(len(payload))
	copy(buf[5:], payload)
	return buf[:5+len(payload)]
}

// decodeWriteMultipleRequest parses address+count+byte-count+payload (min
// length 6; a trailing byte-count mismatch is reported as ok=false so the
// slave can raise an illegal-data-value exception).
func decodeWriteMultipleRequest(data []byte) (address, quantity uint16, payload []byte, ok bool) {
	if len(data) < 6 {
		return 0, 0, nil, false
	}
	address = getUint16(data)
	quantity = getUint16(data[2:])
	count := int(data[4])
	if len(data) != 5+count {
		return 0, 0, nil, false
	}
	return address, quantity, data[5 : 5+count], true
}

// encodeWriteMultipleResponse builds the fixed 4-byte address+count
// response shape into buf (the caller's scratch area). buf must have
// length >= 4.
func encodeWriteMultipleResponse(buf []byte, address, quantity uint16) []byte {
	putUint16(buf, address)
	putUint16(buf[2:], quantity)
	return buf[:4]
}

// decodeWriteMultipleResponse parses the fixed 4-byte address+count
// response shape.
func decodeWriteMultipleResponse(data []byte) (address, quantity uint16, ok bool) {
	if len(data) < 4 {
		return 0, 0, false
	}
	return getUint16(data), getUint16(data[2:]), true
}

// --- mask-write (0x16): both directions share a shape ---

// encodeMaskWrite builds address+and-mask+or-mask into buf (the caller's
// scratch area), used for both request and echo response. buf must have
// length >= 6.
func encodeMaskWrite(buf []byte, address, andMask, orMask uint16) []byte {
	putUint16(buf, address)
	putUint16(buf[2:], andMask)
	putUint16(buf[4:], orMask)
	return buf[:6]
}

// decodeMaskWrite parses the shared mask-write shape (min length 6).
func decodeMaskWrite(data []byte) (address, andMask, orMask uint16, ok bool) {
	if len(data) < 6 {
		return 0, 0, 0, false
	}
	return getUint16(data), getUint16(data[2:]), getUint16(data[4:]), true
}

// --- read-write-multiple-registers (0x17) ---

// encodeReadWriteRequest builds read-addr+read-count+write-addr+
// write-count+write-byte-count+write-payload into buf (the caller's
// scratch area). buf must be large enough to hold 9+len(payload) bytes.
func encodeReadWriteRequest(buf []byte, readAddress, readQuantity, writeAddress, writeQuantity uint16, payload []byte) []byte {
	putUint16(buf, readAddress)
	putUint16(buf[2:], readQuantity)
	putUint16(buf[4:], writeAddress)
	putUint16(buf[6:], writeQuantity)
	buf[8] = byte(len(payload))
	copy(buf[9:], payload)
	return buf[:9+len(payload)]
}

// decodeReadWriteRequest parses the read-write-multiple-registers
// request: a 9-byte fixed header (two address/count pairs plus a
// byte-count) followed by the write payload.
func decodeReadWriteRequest(data []byte) (readAddress, readQuantity, writeAddress, writeQuantity uint16, payload []byte, ok bool) {
	if len(data) < 10 {
		return 0, 0, 0, 0, nil, false
	}
	readAddress = getUint16(data)
	readQuantity = getUint16(data[2:])
	writeAddress = getUint16(data[4:])
	writeQuantity = getUint16(data[6:])
	count := int(data[8])
	if len(data) != 9+count {
		return 0, 0, 0, 0, nil, false
	}
	return readAddress, readQuantity, writeAddress, writeQuantity, data[9 : 9+count], true
}

// --- exception (both directions, response only) ---

// encodeException builds a 1-byte exception PDU data payload into buf
// (the caller's scratch area): the exception code, with the request
// function code reported separately with its high bit set. buf must have
// length >= 1.
func encodeException(buf []byte, requestFunctionCode, exceptionCode byte) ProtocolDataUnit {
	buf[0] = exceptionCode
	return ProtocolDataUnit{
		FunctionCode: requestFunctionCode | exceptionFlag,
		Data:         buf[:1],
	}
}

// decodeException parses an exception PDU's data (min length 1; the
// function-code byte itself lives outside this codec's Data slice).
func decodeException(data []byte) (exceptionCode byte, ok bool) {
	if len(data) < 1 {
		return 0, false
	}
	return data[0], true
}

// --- count-limit validation ---

func validReadBitQuantity(q uint16) bool { return q >= minReadBitQuantity && q <= maxReadBitQuantity }
func validReadRegQuantity(q uint16) bool { return q >= minReadRegQuantity && q <= maxReadRegQuantity }
func validWriteBitQuantity(q uint16) bool {
	return q >= minWriteBitQuantity && q <= maxWriteBitQuantity
}
func validWriteRegQuantity(q uint16) bool {
	return q >= minWriteRegQuantity && q <= maxWriteRegQuantity
}
func validRWReadQuantity(q uint16) bool  { return q >= minRWReadQuantity && q <= maxRWReadQuantity }
func validRWWriteQuantity(q uint16) bool { return q >= minRWWriteQuantity && q <= maxRWWriteQuantity }
