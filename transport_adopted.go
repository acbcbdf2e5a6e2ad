// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"fmt"
	"io"
	"time"
)

// deadlineReader is implemented by *os.File (and so by a pty's master
// side) and lets AdoptedTransport turn a blocking Read into the
// poll-and-return-what's-ready contract Transport.Read requires.
type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// AdoptedTransport wraps an externally supplied, already-connected
// io.ReadWriteCloser — a test pty's master side, or a socket a host
// process accepted and is handing off. Open is a no-op that always
// succeeds, since the handle is connected before it ever reaches this
// type.
type AdoptedTransport struct {
	handle io.ReadWriteCloser
}

// NewAdoptedTransport adopts an already-open connection, such as a test
// pty's master side or a server-accepted socket handed in by the host.
func NewAdoptedTransport(handle io.ReadWriteCloser) *AdoptedTransport {
	return &AdoptedTransport{handle: handle}
}

// Open is a no-op: the handle is already connected.
func (t *AdoptedTransport) Open() error { return nil }

// Close closes the adopted handle.
func (t *AdoptedTransport) Close() error {
	return t.handle.Close()
}

// Read polls the handle for bytes ready now, setting a short read deadline
// when the handle supports one.
func (t *AdoptedTransport) Read(buf []byte) (int, error) {
	if dr, ok := t.handle.(deadlineReader); ok {
		if err := dr.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}
	n, err := t.handle.Read(buf)
	if err != nil {
		if isTimeout(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return n, nil
}

// Write sends buf to the handle in full.
func (t *AdoptedTransport) Write(buf []byte) (int, error) {
	n, err := t.handle.Write(buf)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return n, nil
}

// Flush is a no-op: an adopted handle has no driver-level input buffer
// this transport can reach generically.
func (t *AdoptedTransport) Flush() error { return nil }

// isTimeout reports whether err is a deadline-exceeded style timeout.
func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
