// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build darwin dragonfly freebsd linux netbsd openbsd solaris

// Package ptypair creates a pseudo-terminal pair so tests and the
// bundled simulator can exercise the RTU transport without a real serial
// port: the simulator drives the master side through an AdoptedTransport
// while a client opens the slave side's device path as an ordinary
// RTUTransport.
package ptypair

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/creack/pty"
)

// Pair is a pseudo-terminal master/slave pair. Master is read and written
// through the mutex-guarded methods below so it can be handed to an
// AdoptedTransport safely; SlavePath is the device path a client process
// opens as if it were a physical serial port.
type Pair struct {
	mu        sync.Mutex
	master    *os.File
	slave     *os.File
	SlavePath string
}

// Open creates a new pseudo-terminal pair.
func Open() (*Pair, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("opening pty: %w", err)
	}
	return &Pair{master: master, slave: slave, SlavePath: slave.Name()}, nil
}

// Read implements io.Reader over the master side.
func (p *Pair) Read(b []byte) (int, error) {
	p.mu.Lock()
	master := p.master
	p.mu.Unlock()
	if master == nil {
		return 0, os.ErrClosed
	}
	return master.Read(b)
}

// Write implements io.Writer over the master side.
func (p *Pair) Write(b []byte) (int, error) {
	p.mu.Lock()
	master := p.master
	p.mu.Unlock()
	if master == nil {
		return 0, os.ErrClosed
	}
	return master.Write(b)
}

// SetReadDeadline lets AdoptedTransport poll the master side without
// blocking indefinitely.
func (p *Pair) SetReadDeadline(t time.Time) error {
	p.mu.Lock()
	master := p.master
	p.mu.Unlock()
	if master == nil {
		return os.ErrClosed
	}
	return master.SetReadDeadline(t)
}

// Close closes both the master and slave file descriptors.
func (p *Pair) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.master != nil {
		if e := p.master.Close(); e != nil && err == nil {
			err = e
		}
		p.master = nil
	}
	if p.slave != nil {
		if e := p.slave.Close(); e != nil && err == nil {
			err = e
		}
		p.slave = nil
	}
	return err
}
