// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"fmt"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Parity selects the serial line parity bit.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

// StopBits selects the number of serial stop bits.
type StopBits int

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// defaultSerialIdleTimeout auto-closes an idle serial port so a process
// holding many RTU transports open doesn't also hold their file
// descriptors open forever between polls.
const defaultSerialIdleTimeout = 60 * time.Second

// SerialConfig configures an RTU serial transport.
type SerialConfig struct {
	Device   string // owned device name, e.g. "/dev/ttyUSB0"
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
	Logger   *log.Logger

	// IdleTimeout closes the port after this long without a Read or
	// Write; the next Open reconnects it. Zero uses
	// defaultSerialIdleTimeout; negative disables idle close.
	IdleTimeout time.Duration
}

// RTUTransport is a Transport over a physical or pty serial device. Each
// Read call sets a short hardware read timeout so it returns promptly
// with whatever is ready, leaving the dual-timeout framing policy
// entirely to framedRead rather than duplicating it here.
//
// Direction control for RS-485 transceivers (asserting a GPIO line around
// Write) is a host-platform concern kept external to the core; it is not
// implemented by this reference transport.
type RTUTransport struct {
	config SerialConfig

	mu           sync.Mutex
	port         serial.Port
	lastActivity time.Time
	closeTimer   *time.Timer
}

// NewRTUTransport creates an RTU transport for the given serial
// configuration. The port is not opened until Open is called.
func NewRTUTransport(config SerialConfig) *RTUTransport {
	if config.DataBits == 0 {
		config.DataBits = 8
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaultSerialIdleTimeout
	}
	return &RTUTransport{config: config}
}

func toSerialParity(p Parity) serial.Parity {
	switch p {
	case OddParity:
		return serial.OddParity
	case EvenParity:
		return serial.EvenParity
	default:
		return serial.NoParity
	}
}

func toSerialStopBits(s StopBits) serial.StopBits {
	if s == TwoStopBits {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}

// Open connects to the configured serial device if not already connected.
func (t *RTUTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return nil
	}
	mode := &serial.Mode{
		BaudRate: t.config.BaudRate,
		DataBits: t.config.DataBits,
		Parity:   toSerialParity(t.config.Parity),
		StopBits: toSerialStopBits(t.config.StopBits),
	}
	port, err := serial.Open(t.config.Device, mode)
	if err != nil {
		return fmt.Errorf("%w: opening serial device %s: %v", ErrTransport, t.config.Device, err)
	}
	// A short hardware timeout turns Port.Read into the "return whatever
	// is ready now" poll that Transport.Read's contract requires.
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		port.Close()
		return fmt.Errorf("%w: setting read timeout: %v", ErrTransport, err)
	}
	t.port = port
	t.lastActivity = time.Now()
	t.startCloseTimerLocked()
	return nil
}

// Close disconnects the serial device.
func (t *RTUTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *RTUTransport) closeLocked() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

// Read polls for bytes already waiting on the device.
func (t *RTUTransport) Read(buf []byte) (int, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return 0, fmt.Errorf("%w: serial port not open", ErrTransport)
	}
	n, err := port.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if n > 0 {
		t.touch()
		t.logf("modbus: rtu read % x", buf[:n])
	}
	return n, nil
}

// Write sends buf to the device in full.
func (t *RTUTransport) Write(buf []byte) (int, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return 0, fmt.Errorf("%w: serial port not open", ErrTransport)
	}
	t.logf("modbus: rtu write % x", buf)
	n, err := port.Write(buf)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	t.touch()
	return n, nil
}

// touch records activity and resets the idle-close timer.
func (t *RTUTransport) touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActivity = time.Now()
	t.startCloseTimerLocked()
}

func (t *RTUTransport) startCloseTimerLocked() {
	if t.config.IdleTimeout <= 0 {
		return
	}
	if t.closeTimer == nil {
		t.closeTimer = time.AfterFunc(t.config.IdleTimeout, t.closeIdle)
	} else {
		t.closeTimer.Reset(t.config.IdleTimeout)
	}
}

// closeIdle closes the port if nothing has used it for IdleTimeout.
func (t *RTUTransport) closeIdle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.config.IdleTimeout <= 0 {
		return
	}
	if idle := time.Since(t.lastActivity); idle >= t.config.IdleTimeout {
		t.logf("modbus: closing rtu port due to idle timeout: %v", idle)
		t.closeLocked()
	}
}

// Flush discards any unread input buffered by the driver.
func (t *RTUTransport) Flush() error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.ResetInputBuffer()
}

func (t *RTUTransport) logf(format string, args ...interface{}) {
	if t.config.Logger != nil {
		t.config.Logger.Printf(format, args...)
	}
}
