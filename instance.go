// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"log"
	"sync/atomic"
	"time"
)

// TransportKind tags which transport descriptor an Instance was built
// from.
type TransportKind int

const (
	TransportRTU TransportKind = iota
	TransportTCPClient
	TransportAdopted
)

func (k TransportKind) defaultProtocol() ProtocolKind {
	if k == TransportTCPClient {
		return ProtocolTCP
	}
	return ProtocolRTU
}

// scratchSize is the shared scratch area for a single PDU payload, sized
// to hold the largest payload any function code can carry.
const scratchSize = 256

// Instance owns exactly one Transport and runs either the master engine
// (client.go) or the slave engine (slave.go), or both, against it. An
// Instance is not safe for concurrent use: callers serialise their own
// calls.
type Instance struct {
	transport     Transport
	transportKind TransportKind
	protocol      ProtocolKind

	slaveAddress    byte
	strictUnitCheck bool
	txnID           uint32 // atomic, wraps mod 2^16

	callbacks SlaveCallbacks

	responseTimeout  time.Duration
	interByteTimeout time.Duration

	scratch [scratchSize]byte
	frame   []byte // sized to rtuMaxFrameSize or tcpMaxFrameSize

	logger *log.Logger
	clk    clock
}

// Option configures an Instance at construction time.
type Option func(*Instance)

// WithSlaveAddress sets the slave/unit address (default 1, legal range
// 1..247; 0 is broadcast).
func WithSlaveAddress(address byte) Option {
	return func(i *Instance) { i.slaveAddress = address }
}

// WithProtocol overrides the protocol kind independently of the transport
// kind's default.
func WithProtocol(p ProtocolKind) Option {
	return func(i *Instance) { i.protocol = p }
}

// WithStrictUnitCheck enables unit-address filtering on the slave side:
// with it on, tickRTU drops frames whose address is neither the
// configured slave address nor the broadcast address 0, and tickTCP
// drops frames whose unit id doesn't match the configured slave address.
// Off by default, so a freshly constructed Instance answers any unit
// address it receives.
func WithStrictUnitCheck(enabled bool) Option {
	return func(i *Instance) { i.strictUnitCheck = enabled }
}

// WithTimeouts overrides the response and inter-byte timeouts (defaults
// 300ms/32ms).
func WithTimeouts(response, interByte time.Duration) Option {
	return func(i *Instance) {
		i.responseTimeout = response
		i.interByteTimeout = interByte
	}
}

// WithCallbacks installs the slave-side callback table; only needed when
// the Instance is used as a slave.
func WithCallbacks(cb SlaveCallbacks) Option {
	return func(i *Instance) { i.callbacks = cb }
}

// WithLogger installs a logger used for raw-frame debug printing.
func WithLogger(l *log.Logger) Option {
	return func(i *Instance) { i.logger = l }
}

// NewInstance creates an Instance that owns transport. kind determines the
// default protocol and the frame buffer's maximum size; opts may override
// the protocol, slave address, timeouts, callbacks, and logger.
func NewInstance(transport Transport, kind TransportKind, opts ...Option) *Instance {
	i := &Instance{
		transport:        transport,
		transportKind:    kind,
		protocol:         kind.defaultProtocol(),
		slaveAddress:     1,
		responseTimeout:  DefaultResponseTimeout,
		interByteTimeout: DefaultInterByteTimeout,
		clk:              realClock{},
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.protocol == ProtocolTCP {
		i.frame = make([]byte, tcpMaxFrameSize)
	} else {
		i.frame = make([]byte, rtuMaxFrameSize)
	}
	return i
}

// Close tears down the Instance's transport.
func (i *Instance) Close() error {
	return i.transport.Close()
}

// nextTransactionID advances and returns the TCP transaction id,
// wrapping modulo 2^16.
func (i *Instance) nextTransactionID() uint16 {
	return uint16(atomic.AddUint32(&i.txnID, 1))
}

func (i *Instance) logf(format string, args ...interface{}) {
	if i.logger != nil {
		i.logger.Printf(format, args...)
	}
}
