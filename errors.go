// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import "errors"

// Sentinel errors covering the core's failure taxonomy. Wrap with
// fmt.Errorf and %w so callers can test with errors.Is.
var (
	// ErrInvalidArgument reports a null/out-of-range argument supplied by
	// the caller; no side effects occur.
	ErrInvalidArgument = errors.New("modbus: invalid argument")

	// ErrFraming reports a short frame, CRC mismatch, MBAP mismatch,
	// transaction-id mismatch, or unsupported function code. On the
	// master this is returned as Result{Kind: ResultFraming}; no
	// automatic transport close.
	ErrFraming = errors.New("modbus: framing error")

	// ErrTransport reports a read/write failure at the transport level.
	// The core closes the transport automatically after this error.
	ErrTransport = errors.New("modbus: transport error")

	// ErrTimeout reports that no response arrived within the configured
	// response-timeout.
	ErrTimeout = errors.New("modbus: response timeout")
)
