// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

// Package memstore is a reference in-memory backing store for a Modbus
// slave: four flat address spaces (coils, discrete inputs, holding
// registers, input registers), each independently addressable 0..65535.
// It is not part of the protocol core; CLI tooling and tests wire it
// under a modbus.SlaveCallbacks table.
package memstore

import (
	"sync"

	"github.com/fieldbus-go/modbus"
)

const addressSpace = 65536

// statusOK matches the success status code modbus.SlaveCallbacks expects
// from a data-access callback. Every address in 0..65535 is valid in this
// store, so it never returns the illegal-address status.
const statusOK = 0

// Store is a mutex-guarded set of the four Modbus register address
// spaces, with optional human-readable names recorded for coil and
// holding-register addresses.
type Store struct {
	mu sync.RWMutex

	coils          []bool
	discreteInputs []bool
	holdingRegs    []uint16
	inputRegs      []uint16

	coilNames       map[uint16]string
	holdingRegNames map[uint16]string
}

// New creates an empty Store with all four address spaces zeroed.
func New() *Store {
	return &Store{
		coils:           make([]bool, addressSpace),
		discreteInputs:  make([]bool, addressSpace),
		holdingRegs:     make([]uint16, addressSpace),
		inputRegs:       make([]uint16, addressSpace),
		coilNames:       make(map[uint16]string),
		holdingRegNames: make(map[uint16]string),
	}
}

// SetCoils seeds the coil address space from a map of address to value.
func (s *Store) SetCoils(values map[uint16]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, v := range values {
		s.coils[addr] = v
	}
}

// SetDiscreteInputs seeds the discrete-input address space.
func (s *Store) SetDiscreteInputs(values map[uint16]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, v := range values {
		s.discreteInputs[addr] = v
	}
}

// SetHoldingRegisters seeds the holding-register address space.
func (s *Store) SetHoldingRegisters(values map[uint16]uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, v := range values {
		s.holdingRegs[addr] = v
	}
}

// SetInputRegisters seeds the input-register address space.
func (s *Store) SetInputRegisters(values map[uint16]uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, v := range values {
		s.inputRegs[addr] = v
	}
}

// NameCoil attaches a display name to a coil address. The name has no
// effect on reads or writes, and Store has no method that returns it.
func (s *Store) NameCoil(addr uint16, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coilNames[addr] = name
}

// NameHoldingRegister attaches a display name to a holding-register
// address.
func (s *Store) NameHoldingRegister(addr uint16, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdingRegNames[addr] = name
}

// ReadCoil implements the modbus.SlaveCallbacks.ReadCoil shape.
func (s *Store) ReadCoil(addr uint16) (bool, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coils[addr], statusOK
}

// WriteCoil implements the modbus.SlaveCallbacks.WriteCoil shape.
func (s *Store) WriteCoil(addr uint16, bit bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coils[addr] = bit
	return statusOK
}

// ReadDiscrete implements the modbus.SlaveCallbacks.ReadDiscrete shape.
func (s *Store) ReadDiscrete(addr uint16) (bool, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discreteInputs[addr], statusOK
}

// ReadHolding implements the modbus.SlaveCallbacks.ReadHolding shape.
func (s *Store) ReadHolding(addr uint16) (uint16, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.holdingRegs[addr], statusOK
}

// WriteHolding implements the modbus.SlaveCallbacks.WriteHolding shape.
func (s *Store) WriteHolding(addr uint16, value uint16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdingRegs[addr] = value
	return statusOK
}

// ReadInput implements the modbus.SlaveCallbacks.ReadInput shape.
func (s *Store) ReadInput(addr uint16) (uint16, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inputRegs[addr], statusOK
}

// Callbacks builds a modbus.SlaveCallbacks table backed by this Store.
func (s *Store) Callbacks() modbus.SlaveCallbacks {
	return modbus.SlaveCallbacks{
		ReadDiscrete: s.ReadDiscrete,
		ReadCoil:     s.ReadCoil,
		WriteCoil:    s.WriteCoil,
		ReadInput:    s.ReadInput,
		ReadHolding:  s.ReadHolding,
		WriteHolding: s.WriteHolding,
	}
}
