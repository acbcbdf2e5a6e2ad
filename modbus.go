// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

// Package modbus implements the Modbus PDU codec, RTU and TCP frame
// wrappers, and the master/slave transaction engines on top of a pluggable
// Transport. It speaks the standard function-code set in both RTU (serial,
// CRC-16 framed) and TCP (MBAP framed) variants; Modbus ASCII is not
// implemented.
package modbus

import "fmt"

// Function codes for the standard Modbus function-code set.
const (
	FuncCodeReadCoils                  byte = 0x01
	FuncCodeReadDiscreteInputs         byte = 0x02
	FuncCodeReadHoldingRegisters       byte = 0x03
	FuncCodeReadInputRegisters         byte = 0x04
	FuncCodeWriteSingleCoil            byte = 0x05
	FuncCodeWriteSingleRegister        byte = 0x06
	FuncCodeWriteMultipleCoils         byte = 0x0F
	FuncCodeWriteMultipleRegisters     byte = 0x10
	FuncCodeMaskWriteRegister          byte = 0x16
	FuncCodeReadWriteMultipleRegisters byte = 0x17

	// exceptionFlag is ORed into the request function code to mark an
	// exception response.
	exceptionFlag byte = 0x80
)

// Modbus exception codes.
const (
	ExceptionIllegalFunction    byte = 0x01
	ExceptionIllegalDataAddress byte = 0x02
	ExceptionIllegalDataValue   byte = 0x03
	ExceptionServerDeviceFailure byte = 0x04
)

// Count limits for the quantity field of each function code.
const (
	minReadBitQuantity   = 1
	maxReadBitQuantity   = 2000
	minReadRegQuantity   = 1
	maxReadRegQuantity   = 125
	minWriteBitQuantity  = 1
	maxWriteBitQuantity  = 1968
	minWriteRegQuantity  = 1
	maxWriteRegQuantity  = 123
	minRWReadQuantity    = 1
	maxRWReadQuantity    = 125
	minRWWriteQuantity   = 1
	maxRWWriteQuantity   = 121
)

// ProtocolDataUnit is the transport-agnostic function-code + data pair.
// Data is a borrow into the buffer it was parsed from for shapes carrying
// a payload; callers must not use Data after writing into that buffer
// again.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// IsException reports whether the PDU's function code carries the
// exception flag.
func (pdu *ProtocolDataUnit) IsException() bool {
	return pdu.FunctionCode&exceptionFlag != 0
}

// RequestFunctionCode returns the function code with the exception flag
// cleared, i.e. the function code of the request this would be a response
// to.
func (pdu *ProtocolDataUnit) RequestFunctionCode() byte {
	return pdu.FunctionCode &^ exceptionFlag
}

// ProtocolKind selects the wire framing used to wrap a PDU.
type ProtocolKind int

const (
	// ProtocolRTU wraps PDUs in address + PDU + CRC-16.
	ProtocolRTU ProtocolKind = iota
	// ProtocolTCP wraps PDUs in an MBAP header.
	ProtocolTCP
)

func (p ProtocolKind) String() string {
	switch p {
	case ProtocolRTU:
		return "rtu"
	case ProtocolTCP:
		return "tcp"
	default:
		return fmt.Sprintf("ProtocolKind(%d)", int(p))
	}
}

// ExceptionError reports a Modbus exception response.
type ExceptionError struct {
	FunctionCode  byte // the original request function code
	ExceptionCode byte
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus: function %#x: exception %#x", e.FunctionCode, e.ExceptionCode)
}

// Code returns the exception code negated, matching the historical
// negative-return convention of C Modbus APIs; callers that want an
// idiomatic Go error should use errors.As instead.
func (e *ExceptionError) Code() int {
	return -int(e.ExceptionCode)
}
