// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package memstore

import "testing"

func TestSeedAndReadBack(t *testing.T) {
	s := New()
	s.SetCoils(map[uint16]bool{3: true})
	s.SetDiscreteInputs(map[uint16]bool{7: true})
	s.SetHoldingRegisters(map[uint16]uint16{10: 0x1234})
	s.SetInputRegisters(map[uint16]uint16{20: 0xBEEF})

	if bit, status := s.ReadCoil(3); !bit || status != 0 {
		t.Errorf("ReadCoil(3) = (%v, %d), want (true, 0)", bit, status)
	}
	if bit, status := s.ReadCoil(4); bit || status != 0 {
		t.Errorf("ReadCoil(4) = (%v, %d), want (false, 0)", bit, status)
	}
	if bit, _ := s.ReadDiscrete(7); !bit {
		t.Errorf("ReadDiscrete(7) = false, want true")
	}
	if v, _ := s.ReadHolding(10); v != 0x1234 {
		t.Errorf("ReadHolding(10) = %#04x, want 0x1234", v)
	}
	if v, _ := s.ReadInput(20); v != 0xBEEF {
		t.Errorf("ReadInput(20) = %#04x, want 0xBEEF", v)
	}
}

func TestWriteCoilAndHolding(t *testing.T) {
	s := New()
	if status := s.WriteCoil(1, true); status != 0 {
		t.Fatalf("WriteCoil status = %d, want 0", status)
	}
	if bit, _ := s.ReadCoil(1); !bit {
		t.Error("ReadCoil(1) after WriteCoil(1, true) = false")
	}

	if status := s.WriteHolding(2, 0x00FF); status != 0 {
		t.Fatalf("WriteHolding status = %d, want 0", status)
	}
	if v, _ := s.ReadHolding(2); v != 0x00FF {
		t.Errorf("ReadHolding(2) = %#04x, want 0x00FF", v)
	}
}

func TestCallbacksTableMatchesStoreMethods(t *testing.T) {
	s := New()
	cb := s.Callbacks()

	if status := cb.WriteHolding(0, 0x0042); status != 0 {
		t.Fatalf("cb.WriteHolding status = %d, want 0", status)
	}
	if v, _ := cb.ReadHolding(0); v != 0x0042 {
		t.Errorf("cb.ReadHolding(0) = %#04x, want 0x0042", v)
	}
	if status := cb.WriteCoil(0, true); status != 0 {
		t.Fatalf("cb.WriteCoil status = %d, want 0", status)
	}
	if bit, _ := cb.ReadCoil(0); !bit {
		t.Error("cb.ReadCoil(0) = false, want true")
	}
}
