// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import "time"

// Default timeouts.
const (
	DefaultResponseTimeout  = 300 * time.Millisecond
	DefaultInterByteTimeout = 32 * time.Millisecond

	// pollInterval is the sleep between non-blocking read polls inside
	// framedRead.
	pollInterval = 2 * time.Millisecond
)

// Transport is the uniform open/close/read/write/flush vtable consumed by
// the core. Read is a non-blocking poll: it returns immediately with
// whatever bytes are ready (possibly zero) rather than blocking until buf
// is full; framedRead builds the dual-timeout framing policy on top of
// it.
type Transport interface {
	// Open connects the transport if it is not already connected. A
	// transport whose kind has no natural open step (an adopted socket)
	// treats this as a no-op returning nil.
	Open() error

	// Close disconnects the transport. Safe to call when already closed.
	Close() error

	// Read polls for bytes already available without blocking. It
	// returns 0, nil when nothing is ready yet, n > 0 when data was
	// copied into buf, or a non-nil error on transport failure.
	Read(buf []byte) (int, error)

	// Write sends buf in full or returns a non-nil error.
	Write(buf []byte) (int, error)

	// Flush discards any unread input pending on the transport.
	Flush() error
}

// clock abstracts wall-clock time and sleeping so framedRead is a pure,
// mockable function: tests can drive it with a fake clock instead of
// sleeping in real time.
type clock interface {
	now() time.Time
	sleep(d time.Duration)
}

// realClock is the production clock backed by the standard library.
type realClock struct{}

func (realClock) now() time.Time        { return time.Now() }
func (realClock) sleep(d time.Duration) { time.Sleep(d) }

// framedRead implements the dual-timeout framing read loop: it polls
// t.Read until either an inter-byte gap signals the end of a frame
// already in progress, or a response-timeout elapses with nothing
// received at all. This is the single framing oracle shared by the
// master (waiting for a reply) and the slave (waiting for the next
// request): on a serial line the idle gap on the wire demarcates frames;
// on TCP the same logic is harmless since bytes arrive contiguously.
//
// Returns (n, nil) with n==0 for "nothing received before
// response-timeout", (n, nil) with n>0 for "a candidate frame of length n
// was read" (it may still fail CRC/length parsing upstream), or (0, err)
// on a transport-level read error.
func framedRead(t Transport, buf []byte, responseTimeout, interByteTimeout time.Duration, clk clock) (int, error) {
	cursor := 0
	lastProgress := clk.now()
	for cursor < len(buf) {
		n, err := t.Read(buf[cursor:])
		if err != nil {
			return 0, err
		}
		if n > 0 {
			cursor += n
			lastProgress = clk.now()
			continue
		}
		idle := clk.now().Sub(lastProgress)
		if cursor > 0 && idle > interByteTimeout {
			break
		}
		if cursor == 0 && idle > responseTimeout {
			break
		}
		clk.sleep(pollInterval)
	}
	return cursor, nil
}
