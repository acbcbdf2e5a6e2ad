// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import "fmt"

// RTU framing constants.
const (
	rtuMinFrameSize = 4
	rtuMaxFrameSize = 256
)

// rtuPackager wraps and unwraps the RTU wire format: address (1) + PDU
// (N) + CRC-16 little-endian (2). One implementation shared by master and
// slave.
type rtuPackager struct {
	SlaveAddress byte
}

// Encode writes address + PDU + CRC-16 into a freshly allocated frame.
func (p *rtuPackager) Encode(pdu *ProtocolDataUnit) ([]byte, error) {
	length := len(pdu.Data) + 4
	if length > rtuMaxFrameSize {
		return nil, fmt.Errorf("%w: rtu frame length %d exceeds maximum %d", ErrInvalidArgument, length, rtuMaxFrameSize)
	}
	adu := make([]byte, length)
	adu[0] = p.SlaveAddress
	adu[1] = pdu.FunctionCode
	copy(adu[2:], pdu.Data)
	checksum := crc16(adu[:length-2])
	adu[length-2] = byte(checksum)
	adu[length-1] = byte(checksum >> 8)
	return adu, nil
}

// Verify checks that the response's slave address matches the request's.
func (p *rtuPackager) Verify(requestADU, responseADU []byte) error {
	if len(responseADU) < rtuMinFrameSize {
		return fmt.Errorf("%w: rtu response length %d below minimum %d", ErrFraming, len(responseADU), rtuMinFrameSize)
	}
	if responseADU[0] != requestADU[0] {
		return fmt.Errorf("%w: rtu response address %#x does not match request %#x", ErrFraming, responseADU[0], requestADU[0])
	}
	return nil
}

// Decode parses address + PDU + CRC-16 out of a received frame, validating
// the CRC over the whole frame by recomputing it and comparing against
// the trailing two bytes.
func (p *rtuPackager) Decode(adu []byte) (byte, *ProtocolDataUnit, error) {
	length := len(adu)
	if length < rtuMinFrameSize {
		return 0, nil, fmt.Errorf("%w: rtu frame length %d below minimum %d", ErrFraming, length, rtuMinFrameSize)
	}
	expected := crc16(adu[:length-2])
	actual := uint16(adu[length-2]) | uint16(adu[length-1])<<8
	if actual != expected {
		return 0, nil, fmt.Errorf("%w: rtu crc %#04x does not match computed %#04x", ErrFraming, actual, expected)
	}
	return adu[0], &ProtocolDataUnit{
		FunctionCode: adu[1],
		Data:         adu[2 : length-2],
	}, nil
}
