// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import "fmt"

// MBAP framing constants.
const (
	tcpHeaderSize        = 7
	tcpMaxFrameSize      = 260
	tcpProtocolIdentifier uint16 = 0x0000
)

// tcpPackager wraps and unwraps the TCP/MBAP wire format: transaction-id
// (u16 BE) + protocol-id (u16 BE, must be 0) + length (u16 BE, counts
// unit-id+PDU) + unit-id (u8) + PDU. One implementation shared by master
// and slave.
type tcpPackager struct {
	UnitID byte
}

// Encode writes transaction id (caller-supplied so the master can
// advance it per request) + protocol id 0 + length + unit id + PDU.
func (p *tcpPackager) Encode(transactionID uint16, pdu *ProtocolDataUnit) ([]byte, error) {
	length := len(pdu.Data) + 2 // unit id + function code + data
	if length+tcpHeaderSize-1 > tcpMaxFrameSize {
		return nil, fmt.Errorf("%w: tcp frame length exceeds maximum %d", ErrInvalidArgument, tcpMaxFrameSize)
	}
	adu := make([]byte, tcpHeaderSize+1+len(pdu.Data))
	putUint16(adu, transactionID)
	putUint16(adu[2:], tcpProtocolIdentifier)
	putUint16(adu[4:], uint16(1+1+len(pdu.Data)))
	adu[6] = p.UnitID
	adu[tcpHeaderSize] = pdu.FunctionCode
	copy(adu[tcpHeaderSize+1:], pdu.Data)
	return adu, nil
}

// Verify checks transaction-id correlation and unit-id agreement between
// a request and its response.
func (p *tcpPackager) Verify(requestADU, responseADU []byte) error {
	if len(responseADU) < tcpHeaderSize+1 {
		return fmt.Errorf("%w: tcp response length %d below minimum %d", ErrFraming, len(responseADU), tcpHeaderSize+1)
	}
	if getUint16(responseADU) != getUint16(requestADU) {
		return fmt.Errorf("%w: tcp response transaction id %#x does not match request %#x", ErrFraming, getUint16(responseADU), getUint16(requestADU))
	}
	if responseADU[6] != requestADU[6] {
		return fmt.Errorf("%w: tcp response unit id %#x does not match request %#x", ErrFraming, responseADU[6], requestADU[6])
	}
	return nil
}

// Decode parses the MBAP header and PDU out of a received frame,
// rejecting a non-zero protocol id or a length field that disagrees with
// the actual remaining bytes.
func (p *tcpPackager) Decode(adu []byte) (transactionID uint16, unitID byte, pdu *ProtocolDataUnit, err error) {
	if len(adu) < tcpHeaderSize+1 {
		return 0, 0, nil, fmt.Errorf("%w: tcp frame length %d below minimum %d", ErrFraming, len(adu), tcpHeaderSize+1)
	}
	transactionID = getUint16(adu)
	protocolID := getUint16(adu[2:])
	length := getUint16(adu[4:])
	unitID = adu[6]
	if protocolID != tcpProtocolIdentifier {
		return 0, 0, nil, fmt.Errorf("%w: tcp protocol id %d must be 0", ErrFraming, protocolID)
	}
	pduLength := len(adu) - tcpHeaderSize
	if pduLength < 1 || int(length) != 1+pduLength {
		return 0, 0, nil, fmt.Errorf("%w: tcp length field %d does not match pdu length %d", ErrFraming, length, pduLength)
	}
	return transactionID, unitID, &ProtocolDataUnit{
		FunctionCode: adu[tcpHeaderSize],
		Data:         adu[tcpHeaderSize+1:],
	}, nil
}
