// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

// Package testutil spins up a real RTU slave over a pseudo-terminal so
// package tests can exercise the wire protocol end to end instead of
// mocking the transport.
package testutil

import (
	"testing"
	"time"

	"github.com/fieldbus-go/modbus"
	"github.com/fieldbus-go/modbus/internal/ptypair"
	"github.com/fieldbus-go/modbus/memstore"
)

// rtuSimulatorConfig collects RTUSimulatorOption settings.
type rtuSimulatorConfig struct {
	slaveID byte
	store   *memstore.Store
}

// RTUSimulatorOption configures StartRTUSimulator.
type RTUSimulatorOption func(*rtuSimulatorConfig)

// WithSlaveID sets the slave ID the simulator answers to (default 1).
func WithSlaveID(id byte) RTUSimulatorOption {
	return func(c *rtuSimulatorConfig) { c.slaveID = id }
}

// WithStore supplies a pre-seeded backing store instead of an empty one.
func WithStore(store *memstore.Store) RTUSimulatorOption {
	return func(c *rtuSimulatorConfig) { c.store = store }
}

// StartRTUSimulator starts a slave Instance over a pseudo-terminal on a
// background goroutine and returns the slave-side device path a client
// should dial, plus a cleanup function the caller must defer.
//
// Example:
//
//	cleanup, devicePath := testutil.StartRTUSimulator(t, testutil.WithSlaveID(17))
//	defer cleanup()
//	transport := modbus.NewRTUTransport(modbus.SerialConfig{Device: devicePath, BaudRate: 19200})
func StartRTUSimulator(t *testing.T, opts ...RTUSimulatorOption) (cleanup func(), devicePath string) {
	t.Helper()

	config := &rtuSimulatorConfig{slaveID: 1}
	for _, opt := range opts {
		opt(config)
	}
	if config.store == nil {
		config.store = memstore.New()
	}

	pair, err := ptypair.Open()
	if err != nil {
		t.Fatalf("opening pty pair: %v", err)
	}

	inst := modbus.NewInstance(modbus.NewAdoptedTransport(pair), modbus.TransportAdopted,
		modbus.WithProtocol(modbus.ProtocolRTU),
		modbus.WithSlaveAddress(config.slaveID),
		modbus.WithStrictUnitCheck(true),
		modbus.WithCallbacks(config.store.Callbacks()),
		modbus.WithTimeouts(50*time.Millisecond, modbus.DefaultInterByteTimeout),
	)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := inst.Tick(); err != nil {
				return
			}
		}
	}()

	cleanup = func() {
		close(stop)
		<-done
		if err := pair.Close(); err != nil {
			t.Errorf("closing pty pair: %v", err)
		}
	}

	return cleanup, pair.SlavePath
}
