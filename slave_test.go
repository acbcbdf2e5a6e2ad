// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"testing"
	"time"
)

func newTestSlave(protocol ProtocolKind, transport Transport, callbacks SlaveCallbacks) *Instance {
	inst := NewInstance(transport, TransportAdopted,
		WithProtocol(protocol),
		WithSlaveAddress(0x11),
		WithCallbacks(callbacks),
		WithTimeouts(20*pollInterval, 3*pollInterval),
	)
	inst.clk = &fakeClock{t: time.Unix(0, 0)}
	return inst
}

func registerStore(n int) ([]uint16, func(uint16) (uint16, int), func(uint16, uint16) int) {
	regs := make([]uint16, n)
	read := func(addr uint16) (uint16, int) {
		if int(addr) >= len(regs) {
			return 0, -2
		}
		return regs[addr], 0
	}
	write := func(addr uint16, v uint16) int {
		if int(addr) >= len(regs) {
			return -2
		}
		regs[addr] = v
		return 0
	}
	return regs, read, write
}

func TestDispatchReadHoldingRegisters(t *testing.T) {
	regs, read, _ := registerStore(4)
	regs[0], regs[1] = 0x1111, 0x2222
	inst := newTestSlave(ProtocolRTU, &loopbackTransport{}, SlaveCallbacks{ReadHolding: read})

	request := ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: encodeReadRequest(scratchBuf(), 0, 2)}
	response := inst.dispatch(request)
	if response.IsException() {
		t.Fatalf("unexpected exception response: %+v", response)
	}
	values, ok := decodeReadRegistersResponse(response.Data)
	if !ok || values[0] != 0x1111 || values[1] != 0x2222 {
		t.Errorf("values = %v, ok = %v", values, ok)
	}
}

func TestDispatchReadHoldingRegistersIllegalAddress(t *testing.T) {
	_, read, _ := registerStore(2)
	inst := newTestSlave(ProtocolRTU, &loopbackTransport{}, SlaveCallbacks{ReadHolding: read})

	request := ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: encodeReadRequest(scratchBuf(), 0, 4)}
	response := inst.dispatch(request)
	if !response.IsException() {
		t.Fatal("expected an exception response")
	}
	code, ok := decodeException(response.Data)
	if !ok || code != ExceptionIllegalDataAddress {
		t.Errorf("exception code = %#x, want %#x", code, ExceptionIllegalDataAddress)
	}
}

func TestDispatchUnknownFunctionCode(t *testing.T) {
	inst := newTestSlave(ProtocolRTU, &loopbackTransport{}, SlaveCallbacks{})

	request := ProtocolDataUnit{FunctionCode: 0x2B, Data: nil}
	response := inst.dispatch(request)
	if !response.IsException() {
		t.Fatal("expected an exception response")
	}
	code, _ := decodeException(response.Data)
	if code != ExceptionIllegalFunction {
		t.Errorf("exception code = %#x, want %#x", code, ExceptionIllegalFunction)
	}
}

func TestDispatchReadCoilsNoCallbackIsIllegalFunction(t *testing.T) {
	inst := newTestSlave(ProtocolRTU, &loopbackTransport{}, SlaveCallbacks{})

	request := ProtocolDataUnit{FunctionCode: FuncCodeReadCoils, Data: encodeReadRequest(scratchBuf(), 0, 1)}
	response := inst.dispatch(request)
	code, _ := decodeException(response.Data)
	if code != ExceptionIllegalFunction {
		t.Errorf("exception code = %#x, want %#x", code, ExceptionIllegalFunction)
	}
}

func TestDispatchWriteSingleCoilRejectsBadValue(t *testing.T) {
	coils := make(map[uint16]bool)
	writeCoil := func(addr uint16, bit bool) int { coils[addr] = bit; return 0 }
	inst := newTestSlave(ProtocolRTU, &loopbackTransport{}, SlaveCallbacks{WriteCoil: writeCoil})

	request := ProtocolDataUnit{FunctionCode: FuncCodeWriteSingleCoil, Data: encodeWriteSingle(scratchBuf(), 0, 0x1234)}
	response := inst.dispatch(request)
	if !response.IsException() {
		t.Fatal("expected an exception response for a non-canonical coil value")
	}
	code, _ := decodeException(response.Data)
	if code != ExceptionIllegalDataValue {
		t.Errorf("exception code = %#x, want %#x", code, ExceptionIllegalDataValue)
	}
	if len(coils) != 0 {
		t.Errorf("WriteCoil was called despite the bad request")
	}
}

func TestDispatchMaskWriteRegister(t *testing.T) {
	regs, read, write := registerStore(1)
	regs[0] = 0x0012
	inst := newTestSlave(ProtocolRTU, &loopbackTransport{}, SlaveCallbacks{ReadHolding: read, WriteHolding: write})

	request := ProtocolDataUnit{FunctionCode: FuncCodeMaskWriteRegister, Data: encodeMaskWrite(scratchBuf(), 0, 0x00F2, 0x0025)}
	response := inst.dispatch(request)
	if response.IsException() {
		t.Fatalf("unexpected exception: %+v", response)
	}
	if regs[0] != 0x0017 {
		t.Errorf("register = %#04x, want 0x0017", regs[0])
	}
}

func TestDispatchReadWriteMultipleRegisters(t *testing.T) {
	regs, read, write := registerStore(8)
	regs[0], regs[1] = 0x0001, 0x0002
	inst := newTestSlave(ProtocolRTU, &loopbackTransport{}, SlaveCallbacks{ReadHolding: read, WriteHolding: write})

	writePayload := registersBlock(0x00AA, 0x00BB)
	request := ProtocolDataUnit{
		FunctionCode: FuncCodeReadWriteMultipleRegisters,
		Data:         encodeReadWriteRequest(scratchBuf(), 0, 2, 4, 2, writePayload),
	}
	response := inst.dispatch(request)
	if response.IsException() {
		t.Fatalf("unexpected exception: %+v", response)
	}
	values, ok := decodeReadRegistersResponse(response.Data)
	if !ok || values[0] != 0x0001 || values[1] != 0x0002 {
		t.Errorf("read-back values = %v", values)
	}
	if regs[4] != 0x00AA || regs[5] != 0x00BB {
		t.Errorf("written registers = %v", regs[4:6])
	}
}

func TestTickRTURespondsToOwnAddress(t *testing.T) {
	regs, read, write := registerStore(2)
	regs[0] = 0x002A
	inst := newTestSlave(ProtocolRTU, &loopbackTransport{}, SlaveCallbacks{ReadHolding: read, WriteHolding: write})

	transport := inst.transport.(*loopbackTransport)
	requester := rtuPackager{SlaveAddress: 0x11}
	requestADU, err := requester.Encode(&ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: encodeReadRequest(scratchBuf(), 0, 1)})
	if err != nil {
		t.Fatalf("building request fixture: %v", err)
	}
	transport.response = requestADU

	handled, err := inst.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !handled {
		t.Fatal("handled = false, want true")
	}
	if len(transport.written) != 1 {
		t.Fatalf("wrote %d frames, want 1", len(transport.written))
	}

	_, respPDU, err := requester.Decode(transport.written[0])
	if err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	values, ok := decodeReadRegistersResponse(respPDU.Data)
	if !ok || values[0] != 0x002A {
		t.Errorf("response values = %v", values)
	}
}

func TestTickRTUIgnoresForeignAddress(t *testing.T) {
	inst := newTestSlave(ProtocolRTU, &loopbackTransport{}, SlaveCallbacks{})
	inst.strictUnitCheck = true
	transport := inst.transport.(*loopbackTransport)

	foreign := rtuPackager{SlaveAddress: 0x22}
	requestADU, err := foreign.Encode(&ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: encodeReadRequest(scratchBuf(), 0, 1)})
	if err != nil {
		t.Fatalf("building request fixture: %v", err)
	}
	transport.response = requestADU

	handled, err := inst.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !handled {
		t.Fatal("handled = false, want true (a frame was received even though it wasn't addressed here)")
	}
	if len(transport.written) != 0 {
		t.Errorf("wrote a response to a request addressed to another slave")
	}
}

func TestTickRTURespondsToForeignAddressByDefault(t *testing.T) {
	_, read, _ := registerStore(1)
	inst := newTestSlave(ProtocolRTU, &loopbackTransport{}, SlaveCallbacks{ReadHolding: read})
	transport := inst.transport.(*loopbackTransport)

	foreign := rtuPackager{SlaveAddress: 0x22}
	requestADU, err := foreign.Encode(&ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: encodeReadRequest(scratchBuf(), 0, 1)})
	if err != nil {
		t.Fatalf("building request fixture: %v", err)
	}
	transport.response = requestADU

	handled, err := inst.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !handled {
		t.Fatal("handled = false, want true")
	}
	if len(transport.written) != 1 {
		t.Errorf("wrote %d responses, want 1 (strict unit check is off by default)", len(transport.written))
	}
}

func TestTickTimesOutWithNoRequest(t *testing.T) {
	inst := newTestSlave(ProtocolRTU, &loopbackTransport{}, SlaveCallbacks{})

	handled, err := inst.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if handled {
		t.Error("handled = true, want false")
	}
}
