// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"fmt"
)

// ResultKind tags the outcome of a master transaction.
type ResultKind int

const (
	ResultOk ResultKind = iota
	ResultTimeout
	ResultFraming
	ResultTransport
	ResultException
)

func (k ResultKind) String() string {
	switch k {
	case ResultOk:
		return "ok"
	case ResultTimeout:
		return "timeout"
	case ResultFraming:
		return "framing"
	case ResultTransport:
		return "transport"
	case ResultException:
		return "exception"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Result is the sum-typed outcome of a master transaction, returned
// alongside an idiomatic error so callers that only care whether the call
// succeeded can test err == nil, while callers that need the fine-grained
// outcome (to decide whether to retry, say) can switch on Kind.
type Result struct {
	Kind          ResultKind
	ExceptionCode byte // valid when Kind == ResultException
}

// Code maps the Result to a single int: 0 for success, the negated
// exception code for a Modbus exception, -1 for a timeout, -2 for a
// framing error and -3 for a transport failure. The failure values
// coincide with the negated exception codes 1..3, so Code alone does not
// tell a failure from an exception; Kind does.
func (r Result) Code() int {
	switch r.Kind {
	case ResultOk:
		return 0
	case ResultException:
		return -int(r.ExceptionCode)
	case ResultTimeout:
		return -1
	case ResultFraming:
		return -2
	case ResultTransport:
		return -3
	default:
		return -128
	}
}

func okResult() Result { return Result{Kind: ResultOk} }

// transact sends a request PDU and returns the response PDU: it writes
// the wrapped frame, reads the wrapped response via framedRead, verifies
// it against the request, and unwraps it. Broadcast requests (RTU slave
// address 0) are written and never read back, per the standard's
// silent-drop contract for broadcast.
func (i *Instance) transact(request ProtocolDataUnit) (*ProtocolDataUnit, Result, error) {
	if err := i.transport.Open(); err != nil {
		return nil, Result{Kind: ResultTransport}, err
	}
	if err := i.transport.Flush(); err != nil {
		return nil, Result{Kind: ResultTransport}, err
	}

	switch i.protocol {
	case ProtocolTCP:
		return i.transactTCP(request)
	default:
		return i.transactRTU(request)
	}
}

func (i *Instance) transactRTU(request ProtocolDataUnit) (*ProtocolDataUnit, Result, error) {
	packager := rtuPackager{SlaveAddress: i.slaveAddress}
	requestADU, err := packager.Encode(&request)
	if err != nil {
		return nil, Result{Kind: ResultFraming}, err
	}
	if err := i.writeFull(requestADU); err != nil {
		return nil, Result{Kind: ResultTransport}, err
	}
	i.logf("modbus: rtu request % x", requestADU)

	if i.slaveAddress == 0 {
		// Broadcast: the standard specifies no response is ever sent.
		return nil, okResult(), nil
	}

	n, err := framedRead(i.transport, i.frame, i.responseTimeout, i.interByteTimeout, i.clk)
	if err != nil {
		closeErr := i.transport.Close()
		return nil, Result{Kind: ResultTransport}, joinTransportErr(err, closeErr)
	}
	if n == 0 {
		return nil, Result{Kind: ResultTimeout}, fmt.Errorf("%w: no rtu response within %s", ErrTimeout, i.responseTimeout)
	}
	responseADU := i.frame[:n]
	i.logf("modbus: rtu response % x", responseADU)

	if err := packager.Verify(requestADU, responseADU); err != nil {
		return nil, Result{Kind: ResultFraming}, err
	}
	_, pdu, err := packager.Decode(responseADU)
	if err != nil {
		return nil, Result{Kind: ResultFraming}, err
	}
	return i.finishResponse(request, pdu)
}

func (i *Instance) transactTCP(request ProtocolDataUnit) (*ProtocolDataUnit, Result, error) {
	packager := tcpPackager{UnitID: i.slaveAddress}
	transactionID := i.nextTransactionID()
	requestADU, err := packager.Encode(transactionID, &request)
	if err != nil {
		return nil, Result{Kind: ResultFraming}, err
	}
	if err := i.writeFull(requestADU); err != nil {
		return nil, Result{Kind: ResultTransport}, err
	}
	i.logf("modbus: tcp request % x", requestADU)

	n, err := framedRead(i.transport, i.frame, i.responseTimeout, i.interByteTimeout, i.clk)
	if err != nil {
		closeErr := i.transport.Close()
		return nil, Result{Kind: ResultTransport}, joinTransportErr(err, closeErr)
	}
	if n == 0 {
		return nil, Result{Kind: ResultTimeout}, fmt.Errorf("%w: no tcp response within %s", ErrTimeout, i.responseTimeout)
	}
	responseADU := i.frame[:n]
	i.logf("modbus: tcp response % x", responseADU)

	if err := packager.Verify(requestADU, responseADU); err != nil {
		return nil, Result{Kind: ResultFraming}, err
	}
	_, _, pdu, err := packager.Decode(responseADU)
	if err != nil {
		return nil, Result{Kind: ResultFraming}, err
	}
	return i.finishResponse(request, pdu)
}

// finishResponse turns a decoded response PDU into the (pdu, Result, err)
// triple, peeling off an exception response into ResultException.
func (i *Instance) finishResponse(request ProtocolDataUnit, pdu *ProtocolDataUnit) (*ProtocolDataUnit, Result, error) {
	if pdu.IsException() {
		code, ok := decodeException(pdu.Data)
		if !ok {
			return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: short exception response", ErrFraming)
		}
		return nil, Result{Kind: ResultException, ExceptionCode: code}, &ExceptionError{FunctionCode: request.FunctionCode, ExceptionCode: code}
	}
	if pdu.FunctionCode != request.FunctionCode {
		return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: response function code %#x does not match request %#x", ErrFraming, pdu.FunctionCode, request.FunctionCode)
	}
	return pdu, okResult(), nil
}

func (i *Instance) writeFull(frame []byte) error {
	written := 0
	for written < len(frame) {
		n, err := i.transport.Write(frame[written:])
		if err == nil && n == 0 {
			err = fmt.Errorf("%w: write made no progress", ErrTransport)
		}
		if err != nil {
			if closeErr := i.transport.Close(); closeErr != nil {
				return fmt.Errorf("%w (closing after write error: %v)", err, closeErr)
			}
			return err
		}
		written += n
	}
	return nil
}

func joinTransportErr(readErr, closeErr error) error {
	if closeErr != nil {
		return fmt.Errorf("%w (closing after read error: %v)", readErr, closeErr)
	}
	return readErr
}

// ReadCoils reads quantity coils starting at address.
func (i *Instance) ReadCoils(address, quantity uint16) ([]bool, Result, error) {
	if !validReadBitQuantity(quantity) {
		return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: read coils quantity %d out of range", ErrInvalidArgument, quantity)
	}
	request := ProtocolDataUnit{FunctionCode: FuncCodeReadCoils, Data: encodeReadRequest(i.scratch[:], address, quantity)}
	pdu, result, err := i.transact(request)
	if err != nil {
		return nil, result, err
	}
	bits, ok := decodeReadBitsResponse(pdu.Data, quantity)
	if !ok {
		return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: malformed read coils response", ErrFraming)
	}
	return bits, result, nil
}

// ReadDiscreteInputs reads quantity discrete inputs starting at address.
func (i *Instance) ReadDiscreteInputs(address, quantity uint16) ([]bool, Result, error) {
	if !validReadBitQuantity(quantity) {
		return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: read discrete inputs quantity %d out of range", ErrInvalidArgument, quantity)
	}
	request := ProtocolDataUnit{FunctionCode: FuncCodeReadDiscreteInputs, Data: encodeReadRequest(i.scratch[:], address, quantity)}
	pdu, result, err := i.transact(request)
	if err != nil {
		return nil, result, err
	}
	bits, ok := decodeReadBitsResponse(pdu.Data, quantity)
	if !ok {
		return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: malformed read discrete inputs response", ErrFraming)
	}
	return bits, result, nil
}

// ReadHoldingRegisters reads quantity holding registers starting at
// address.
func (i *Instance) ReadHoldingRegisters(address, quantity uint16) ([]uint16, Result, error) {
	if !validReadRegQuantity(quantity) {
		return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: read holding registers quantity %d out of range", ErrInvalidArgument, quantity)
	}
	request := ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: encodeReadRequest(i.scratch[:], address, quantity)}
	pdu, result, err := i.transact(request)
	if err != nil {
		return nil, result, err
	}
	values, ok := decodeReadRegistersResponse(pdu.Data)
	if !ok {
		return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: malformed read holding registers response", ErrFraming)
	}
	return values, result, nil
}

// ReadInputRegisters reads quantity input registers starting at address.
func (i *Instance) ReadInputRegisters(address, quantity uint16) ([]uint16, Result, error) {
	if !validReadRegQuantity(quantity) {
		return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: read input registers quantity %d out of range", ErrInvalidArgument, quantity)
	}
	request := ProtocolDataUnit{FunctionCode: FuncCodeReadInputRegisters, Data: encodeReadRequest(i.scratch[:], address, quantity)}
	pdu, result, err := i.transact(request)
	if err != nil {
		return nil, result, err
	}
	values, ok := decodeReadRegistersResponse(pdu.Data)
	if !ok {
		return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: malformed read input registers response", ErrFraming)
	}
	return values, result, nil
}

// WriteSingleCoil writes a single coil on/off.
func (i *Instance) WriteSingleCoil(address uint16, on bool) (Result, error) {
	request := ProtocolDataUnit{FunctionCode: FuncCodeWriteSingleCoil, Data: encodeWriteSingle(i.scratch[:], address, coilOnOff(on))}
	pdu, result, err := i.transact(request)
	if err != nil {
		return result, err
	}
	if i.slaveAddress == 0 {
		return result, nil
	}
	echoAddress, echoValue, ok := decodeWriteSingle(pdu.Data)
	if !ok || echoAddress != address || echoValue != coilOnOff(on) {
		return Result{Kind: ResultFraming}, fmt.Errorf("%w: write single coil echo mismatch", ErrFraming)
	}
	return result, nil
}

// WriteSingleRegister writes a single holding register.
func (i *Instance) WriteSingleRegister(address, value uint16) (Result, error) {
	request := ProtocolDataUnit{FunctionCode: FuncCodeWriteSingleRegister, Data: encodeWriteSingle(i.scratch[:], address, value)}
	pdu, result, err := i.transact(request)
	if err != nil {
		return result, err
	}
	if i.slaveAddress == 0 {
		return result, nil
	}
	echoAddress, echoValue, ok := decodeWriteSingle(pdu.Data)
	if !ok || echoAddress != address || echoValue != value {
		return Result{Kind: ResultFraming}, fmt.Errorf("%w: write single register echo mismatch", ErrFraming)
	}
	return result, nil
}

// WriteMultipleCoils writes a run of coils starting at address.
func (i *Instance) WriteMultipleCoils(address uint16, values []bool) (Result, error) {
	quantity := uint16(len(values))
	if !validWriteBitQuantity(quantity) {
		return Result{Kind: ResultFraming}, fmt.Errorf("%w: write multiple coils quantity %d out of range", ErrInvalidArgument, quantity)
	}
	request := ProtocolDataUnit{FunctionCode: FuncCodeWriteMultipleCoils, Data: encodeWriteMultipleRequest(i.scratch[:], address, quantity, packBits(values))}
	pdu, result, err := i.transact(request)
	if err != nil {
		return result, err
	}
	if i.slaveAddress == 0 {
		return result, nil
	}
	echoAddress, echoQuantity, ok := decodeWriteMultipleResponse(pdu.Data)
	if !ok || echoAddress != address || echoQuantity != quantity {
		return Result{Kind: ResultFraming}, fmt.Errorf("%w: write multiple coils echo mismatch", ErrFraming)
	}
	return result, nil
}

// WriteMultipleRegisters writes a run of holding registers starting at
// address.
func (i *Instance) WriteMultipleRegisters(address uint16, values []uint16) (Result, error) {
	quantity := uint16(len(values))
	if !validWriteRegQuantity(quantity) {
		return Result{Kind: ResultFraming}, fmt.Errorf("%w: write multiple registers quantity %d out of range", ErrInvalidArgument, quantity)
	}
	request := ProtocolDataUnit{FunctionCode: FuncCodeWriteMultipleRegisters, Data: encodeWriteMultipleRequest(i.scratch[:], address, quantity, registersBlock(values...))}
	pdu, result, err := i.transact(request)
	if err != nil {
		return result, err
	}
	if i.slaveAddress == 0 {
		return result, nil
	}
	echoAddress, echoQuantity, ok := decodeWriteMultipleResponse(pdu.Data)
	if !ok || echoAddress != address || echoQuantity != quantity {
		return Result{Kind: ResultFraming}, fmt.Errorf("%w: write multiple registers echo mismatch", ErrFraming)
	}
	return result, nil
}

// MaskWriteRegister performs a read-modify-write of a single holding
// register: result = (current & andMask) | (orMask & ^andMask).
func (i *Instance) MaskWriteRegister(address, andMask, orMask uint16) (Result, error) {
	request := ProtocolDataUnit{FunctionCode: FuncCodeMaskWriteRegister, Data: encodeMaskWrite(i.scratch[:], address, andMask, orMask)}
	pdu, result, err := i.transact(request)
	if err != nil {
		return result, err
	}
	if i.slaveAddress == 0 {
		return result, nil
	}
	echoAddress, echoAnd, echoOr, ok := decodeMaskWrite(pdu.Data)
	if !ok || echoAddress != address || echoAnd != andMask || echoOr != orMask {
		return Result{Kind: ResultFraming}, fmt.Errorf("%w: mask write register echo mismatch", ErrFraming)
	}
	return result, nil
}

// ReadWriteMultipleRegisters writes writeValues starting at writeAddress,
// then reads readQuantity registers starting at readAddress, in a single
// transaction.
func (i *Instance) ReadWriteMultipleRegisters(readAddress, readQuantity, writeAddress uint16, writeValues []uint16) ([]uint16, Result, error) {
	if !validRWReadQuantity(readQuantity) {
		return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: read-write read quantity %d out of range", ErrInvalidArgument, readQuantity)
	}
	writeQuantity := uint16(len(writeValues))
	if !validRWWriteQuantity(writeQuantity) {
		return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: read-write write quantity %d out of range", ErrInvalidArgument, writeQuantity)
	}
	request := ProtocolDataUnit{
		FunctionCode: FuncCodeReadWriteMultipleRegisters,
		Data:         encodeReadWriteRequest(i.scratch[:], readAddress, readQuantity, writeAddress, writeQuantity, registersBlock(writeValues...)),
	}
	pdu, result, err := i.transact(request)
	if err != nil {
		return nil, result, err
	}
	values, ok := decodeReadRegistersResponse(pdu.Data)
	if !ok {
		return nil, Result{Kind: ResultFraming}, fmt.Errorf("%w: malformed read-write response", ErrFraming)
	}
	return values, result, nil
}
