// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

// SlaveCallbacks is the single-address data-access table a slave Instance
// dispatches to. Each callback covers one data point; a multi-register or
// multi-coil request is served by calling the matching callback once per
// address in the requested range. status follows the historical
// negative-return convention: 0 is success, -2 is illegal data address,
// -3 is illegal data value, -4 is slave device failure. A nil callback
// for a requested function is treated as illegal function.
type SlaveCallbacks struct {
	ReadDiscrete func(addr uint16) (bit bool, status int)
	ReadCoil     func(addr uint16) (bit bool, status int)
	WriteCoil    func(addr uint16, bit bool) (status int)
	ReadInput    func(addr uint16) (value uint16, status int)
	ReadHolding  func(addr uint16) (value uint16, status int)
	WriteHolding func(addr uint16, value uint16) (status int)
}

// statusException maps a SlaveCallbacks status code to a Modbus exception
// code. status == 0 returns ok == true and the exception code is unused.
func statusException(status int) (code byte, ok bool) {
	switch status {
	case 0:
		return 0, true
	case -2:
		return ExceptionIllegalDataAddress, false
	case -3:
		return ExceptionIllegalDataValue, false
	case -4:
		return ExceptionServerDeviceFailure, false
	default:
		return ExceptionServerDeviceFailure, false
	}
}

// Tick runs one iteration of the slave state machine: it waits up to the
// configured response timeout for a request frame, and if one arrives,
// unwraps it, filters it by address, dispatches it to Callbacks, and
// writes back a response (or an exception). It reports handled == true
// when a request frame was received this call, regardless of whether
// dispatch succeeded; handled == false with err == nil means the timeout
// elapsed with nothing to do.
func (i *Instance) Tick() (handled bool, err error) {
	if err := i.transport.Open(); err != nil {
		return false, err
	}

	n, err := framedRead(i.transport, i.frame, i.responseTimeout, i.interByteTimeout, i.clk)
	if err != nil {
		closeErr := i.transport.Close()
		return false, joinTransportErr(err, closeErr)
	}
	if n == 0 {
		return false, nil
	}
	requestADU := i.frame[:n]

	switch i.protocol {
	case ProtocolTCP:
		return true, i.tickTCP(requestADU)
	default:
		return true, i.tickRTU(requestADU)
	}
}

func (i *Instance) tickRTU(requestADU []byte) error {
	packager := rtuPackager{SlaveAddress: i.slaveAddress}
	address, pdu, err := packager.Decode(requestADU)
	if err != nil {
		// A corrupt frame on the wire is not addressed to anyone in
		// particular; drop it silently, matching how a real slave ignores
		// noise rather than answering every malformed frame it hears.
		return nil
	}
	if i.strictUnitCheck && address != i.slaveAddress && address != 0 {
		return nil
	}
	broadcast := address == 0

	response := i.dispatch(*pdu)
	if broadcast {
		return nil
	}
	responseADU, err := packager.Encode(&response)
	if err != nil {
		return err
	}
	i.logf("modbus: rtu slave response % x", responseADU)
	return i.writeFull(responseADU)
}

func (i *Instance) tickTCP(requestADU []byte) error {
	packager := tcpPackager{UnitID: i.slaveAddress}
	transactionID, unitID, pdu, err := packager.Decode(requestADU)
	if err != nil {
		return nil
	}
	if i.strictUnitCheck && unitID != i.slaveAddress {
		return nil
	}

	response := i.dispatch(*pdu)
	responseADU, err := packager.Encode(transactionID, &response)
	if err != nil {
		return err
	}
	i.logf("modbus: tcp slave response % x", responseADU)
	return i.writeFull(responseADU)
}

// dispatch runs the request PDU against Callbacks and builds the response
// or exception PDU. It never returns a transport-level error: malformed
// requests and callback failures both turn into exception responses.
func (i *Instance) dispatch(request ProtocolDataUnit) ProtocolDataUnit {
	switch request.FunctionCode {
	case FuncCodeReadCoils:
		return i.dispatchReadBits(request, i.callbacks.ReadCoil)
	case FuncCodeReadDiscreteInputs:
		return i.dispatchReadBits(request, i.callbacks.ReadDiscrete)
	case FuncCodeReadHoldingRegisters:
		return i.dispatchReadRegisters(request, i.callbacks.ReadHolding)
	case FuncCodeReadInputRegisters:
		return i.dispatchReadRegisters(request, i.callbacks.ReadInput)
	case FuncCodeWriteSingleCoil:
		return i.dispatchWriteSingleCoil(request)
	case FuncCodeWriteSingleRegister:
		return i.dispatchWriteSingleRegister(request)
	case FuncCodeWriteMultipleCoils:
		return i.dispatchWriteMultipleCoils(request)
	case FuncCodeWriteMultipleRegisters:
		return i.dispatchWriteMultipleRegisters(request)
	case FuncCodeMaskWriteRegister:
		return i.dispatchMaskWriteRegister(request)
	case FuncCodeReadWriteMultipleRegisters:
		return i.dispatchReadWriteMultipleRegisters(request)
	default:
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalFunction)
	}
}

func (i *Instance) dispatchReadBits(request ProtocolDataUnit, read func(uint16) (bool, int)) ProtocolDataUnit {
	address, quantity, ok := decodeReadRequest(request.Data)
	if !ok || !validReadBitQuantity(quantity) {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalDataValue)
	}
	if read == nil {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalFunction)
	}
	bits := make([]bool, quantity)
	for n := uint16(0); n < quantity; n++ {
		bit, status := read(address + n)
		if code, ok := statusException(status); !ok {
			return encodeException(i.scratch[:], request.FunctionCode, code)
		}
		bits[n] = bit
	}
	return ProtocolDataUnit{FunctionCode: request.FunctionCode, Data: encodeReadBitsResponse(i.scratch[:], bits)}
}

func (i *Instance) dispatchReadRegisters(request ProtocolDataUnit, read func(uint16) (uint16, int)) ProtocolDataUnit {
	address, quantity, ok := decodeReadRequest(request.Data)
	if !ok || !validReadRegQuantity(quantity) {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalDataValue)
	}
	if read == nil {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalFunction)
	}
	values, exc, ok := i.readRegisterRun(read, address, quantity)
	if !ok {
		return encodeException(i.scratch[:], request.FunctionCode, exc)
	}
	return ProtocolDataUnit{FunctionCode: request.FunctionCode, Data: encodeReadRegistersResponse(i.scratch[:], values)}
}

// readRegisterRun calls read once per address in [address, address+quantity)
// and stops at the first failing address, reporting no partial result.
func (i *Instance) readRegisterRun(read func(uint16) (uint16, int), address, quantity uint16) (values []uint16, exceptionCode byte, ok bool) {
	values = make([]uint16, quantity)
	for n := uint16(0); n < quantity; n++ {
		value, status := read(address + n)
		if code, ok := statusException(status); !ok {
			return nil, code, false
		}
		values[n] = value
	}
	return values, 0, true
}

func (i *Instance) dispatchWriteSingleCoil(request ProtocolDataUnit) ProtocolDataUnit {
	address, value, ok := decodeWriteSingle(request.Data)
	if !ok || (value != 0xFF00 && value != 0x0000) {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalDataValue)
	}
	if i.callbacks.WriteCoil == nil {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalFunction)
	}
	if code, ok := statusException(i.callbacks.WriteCoil(address, value == 0xFF00)); !ok {
		return encodeException(i.scratch[:], request.FunctionCode, code)
	}
	return ProtocolDataUnit{FunctionCode: request.FunctionCode, Data: encodeWriteSingle(i.scratch[:], address, value)}
}

func (i *Instance) dispatchWriteSingleRegister(request ProtocolDataUnit) ProtocolDataUnit {
	address, value, ok := decodeWriteSingle(request.Data)
	if !ok {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalDataValue)
	}
	if i.callbacks.WriteHolding == nil {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalFunction)
	}
	if code, ok := statusException(i.callbacks.WriteHolding(address, value)); !ok {
		return encodeException(i.scratch[:], request.FunctionCode, code)
	}
	return ProtocolDataUnit{FunctionCode: request.FunctionCode, Data: encodeWriteSingle(i.scratch[:], address, value)}
}

func (i *Instance) dispatchWriteMultipleCoils(request ProtocolDataUnit) ProtocolDataUnit {
	address, quantity, payload, ok := decodeWriteMultipleRequest(request.Data)
	if !ok || !validWriteBitQuantity(quantity) || len(payload) != int(byteCount(quantity)) {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalDataValue)
	}
	if i.callbacks.WriteCoil == nil {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalFunction)
	}
	bits := unpackBits(payload, quantity)
	for n := uint16(0); n < quantity; n++ {
		if code, ok := statusException(i.callbacks.WriteCoil(address+n, bits[n])); !ok {
			return encodeException(i.scratch[:], request.FunctionCode, code)
		}
	}
	return ProtocolDataUnit{FunctionCode: request.FunctionCode, Data: encodeWriteMultipleResponse(i.scratch[:], address, quantity)}
}

func (i *Instance) dispatchWriteMultipleRegisters(request ProtocolDataUnit) ProtocolDataUnit {
	address, quantity, payload, ok := decodeWriteMultipleRequest(request.Data)
	if !ok || !validWriteRegQuantity(quantity) || len(payload) != int(quantity)*2 {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalDataValue)
	}
	if i.callbacks.WriteHolding == nil {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalFunction)
	}
	values := bytesToRegisters(payload)
	for n := uint16(0); n < quantity; n++ {
		if code, ok := statusException(i.callbacks.WriteHolding(address+n, values[n])); !ok {
			return encodeException(i.scratch[:], request.FunctionCode, code)
		}
	}
	return ProtocolDataUnit{FunctionCode: request.FunctionCode, Data: encodeWriteMultipleResponse(i.scratch[:], address, quantity)}
}

func (i *Instance) dispatchMaskWriteRegister(request ProtocolDataUnit) ProtocolDataUnit {
	address, andMask, orMask, ok := decodeMaskWrite(request.Data)
	if !ok {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalDataValue)
	}
	if i.callbacks.ReadHolding == nil || i.callbacks.WriteHolding == nil {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalFunction)
	}
	current, status := i.callbacks.ReadHolding(address)
	if code, ok := statusException(status); !ok {
		return encodeException(i.scratch[:], request.FunctionCode, code)
	}
	result := (current & andMask) | (orMask &^ andMask)
	if code, ok := statusException(i.callbacks.WriteHolding(address, result)); !ok {
		return encodeException(i.scratch[:], request.FunctionCode, code)
	}
	return ProtocolDataUnit{FunctionCode: request.FunctionCode, Data: encodeMaskWrite(i.scratch[:], address, andMask, orMask)}
}

func (i *Instance) dispatchReadWriteMultipleRegisters(request ProtocolDataUnit) ProtocolDataUnit {
	readAddress, readQuantity, writeAddress, writeQuantity, payload, ok := decodeReadWriteRequest(request.Data)
	if !ok || !validRWReadQuantity(readQuantity) || !validRWWriteQuantity(writeQuantity) || len(payload) != int(writeQuantity)*2 {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalDataValue)
	}
	if i.callbacks.WriteHolding == nil || i.callbacks.ReadHolding == nil {
		return encodeException(i.scratch[:], request.FunctionCode, ExceptionIllegalFunction)
	}
	writeValues := bytesToRegisters(payload)
	for n := uint16(0); n < writeQuantity; n++ {
		if code, ok := statusException(i.callbacks.WriteHolding(writeAddress+n, writeValues[n])); !ok {
			return encodeException(i.scratch[:], request.FunctionCode, code)
		}
	}
	readValues, exc, ok := i.readRegisterRun(i.callbacks.ReadHolding, readAddress, readQuantity)
	if !ok {
		return encodeException(i.scratch[:], request.FunctionCode, exc)
	}
	return ProtocolDataUnit{FunctionCode: request.FunctionCode, Data: encodeReadRegistersResponse(i.scratch[:], readValues)}
}
