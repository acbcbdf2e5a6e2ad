// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"errors"
	"testing"
)

func TestTCPPackagerEncodeDecodeRoundTrip(t *testing.T) {
	p := &tcpPackager{UnitID: 0x01}
	pdu := &ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: encodeReadRequest(scratchBuf(), 0x006B, 0x0003)}

	adu, err := p.Encode(0x0007, pdu)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if getUint16(adu) != 0x0007 {
		t.Errorf("transaction id = %#x, want 0x0007", getUint16(adu))
	}
	if getUint16(adu[2:]) != tcpProtocolIdentifier {
		t.Errorf("protocol id = %#x, want 0", getUint16(adu[2:]))
	}
	if wantLen := uint16(1 + 1 + len(pdu.Data)); getUint16(adu[4:]) != wantLen {
		t.Errorf("length field = %d, want %d", getUint16(adu[4:]), wantLen)
	}
	if adu[6] != 0x01 {
		t.Errorf("unit id = %#x, want 0x01", adu[6])
	}

	transactionID, unitID, decoded, err := p.Decode(adu)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if transactionID != 0x0007 || unitID != 0x01 || decoded.FunctionCode != pdu.FunctionCode || string(decoded.Data) != string(pdu.Data) {
		t.Errorf("Decode round trip mismatch: txn=%#x unit=%#x pdu=%+v", transactionID, unitID, decoded)
	}
}

func TestTCPPackagerDecodeRejectsNonZeroProtocolID(t *testing.T) {
	p := &tcpPackager{UnitID: 0x01}
	adu, err := p.Encode(1, &ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: encodeReadRequest(scratchBuf(), 0, 1)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	putUint16(adu[2:], 1)

	if _, _, _, err := p.Decode(adu); !errors.Is(err, ErrFraming) {
		t.Errorf("Decode with non-zero protocol id: err = %v, want ErrFraming", err)
	}
}

func TestTCPPackagerDecodeRejectsLengthMismatch(t *testing.T) {
	p := &tcpPackager{UnitID: 0x01}
	adu, err := p.Encode(1, &ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: encodeReadRequest(scratchBuf(), 0, 1)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	putUint16(adu[4:], 0xFFFF)

	if _, _, _, err := p.Decode(adu); !errors.Is(err, ErrFraming) {
		t.Errorf("Decode with mismatched length field: err = %v, want ErrFraming", err)
	}
}

func TestTCPPackagerVerifyTransactionIDMismatch(t *testing.T) {
	p := &tcpPackager{UnitID: 0x01}
	request := []byte{0x00, 0x07, 0x00, 0x00, 0x00, 0x02, 0x01, 0x03}
	response := []byte{0x00, 0x08, 0x00, 0x00, 0x00, 0x05, 0x01, 0x03, 0x02, 0x00, 0x01}
	if err := p.Verify(request, response); !errors.Is(err, ErrFraming) {
		t.Errorf("Verify with mismatched transaction id: err = %v, want ErrFraming", err)
	}
}

func TestTCPPackagerVerifyUnitIDMismatch(t *testing.T) {
	p := &tcpPackager{UnitID: 0x01}
	request := []byte{0x00, 0x07, 0x00, 0x00, 0x00, 0x02, 0x01, 0x03}
	response := []byte{0x00, 0x07, 0x00, 0x00, 0x00, 0x05, 0x02, 0x03, 0x02, 0x00, 0x01}
	if err := p.Verify(request, response); !errors.Is(err, ErrFraming) {
		t.Errorf("Verify with mismatched unit id: err = %v, want ErrFraming", err)
	}
}

func TestTCPPackagerEncodeRejectsOversizeFrame(t *testing.T) {
	p := &tcpPackager{UnitID: 0x01}
	pdu := &ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: make([]byte, tcpMaxFrameSize)}
	if _, err := p.Encode(1, pdu); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Encode with oversize data: err = %v, want ErrInvalidArgument", err)
	}
}
