// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// defaultTCPIdleTimeout auto-closes an idle TCP connection so a long-lived
// master doesn't hold sockets open against slaves it has stopped talking to.
const defaultTCPIdleTimeout = 60 * time.Second

// TCPConfig configures a TCP client transport.
type TCPConfig struct {
	Host   string
	Port   int
	Logger *log.Logger

	// IdleTimeout closes the connection after this long without a Read
	// or Write; the next Open redials. Zero uses defaultTCPIdleTimeout;
	// negative disables idle close.
	IdleTimeout time.Duration
}

// TCPClientTransport is a Transport over a dialed TCP connection, using a
// short read deadline per Read call to satisfy the non-blocking poll
// contract.
type TCPClientTransport struct {
	config TCPConfig

	mu           sync.Mutex
	conn         net.Conn
	lastActivity time.Time
	closeTimer   *time.Timer
}

// NewTCPClientTransport creates a TCP client transport for the given
// host/port. The connection is not dialed until Open is called.
func NewTCPClientTransport(config TCPConfig) *TCPClientTransport {
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaultTCPIdleTimeout
	}
	return &TCPClientTransport{config: config}
}

// Open dials the configured address if not already connected.
func (t *TCPClientTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", t.config.Host, t.config.Port)
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("%w: dialing %s: %v", ErrTransport, addr, err)
	}
	t.conn = conn
	t.lastActivity = time.Now()
	t.startCloseTimerLocked()
	return nil
}

// Close closes the connection.
func (t *TCPClientTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *TCPClientTransport) closeLocked() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// touch records activity and resets the idle-close timer.
func (t *TCPClientTransport) touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActivity = time.Now()
	t.startCloseTimerLocked()
}

func (t *TCPClientTransport) startCloseTimerLocked() {
	if t.config.IdleTimeout <= 0 {
		return
	}
	if t.closeTimer == nil {
		t.closeTimer = time.AfterFunc(t.config.IdleTimeout, t.closeIdle)
	} else {
		t.closeTimer.Reset(t.config.IdleTimeout)
	}
}

// closeIdle closes the connection if nothing has used it for IdleTimeout.
func (t *TCPClientTransport) closeIdle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.config.IdleTimeout <= 0 {
		return
	}
	if idle := time.Since(t.lastActivity); idle >= t.config.IdleTimeout {
		t.logf("modbus: closing tcp connection due to idle timeout: %v", idle)
		t.closeLocked()
	}
}

// Read polls for bytes already waiting on the socket.
func (t *TCPClientTransport) Read(buf []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, fmt.Errorf("%w: tcp connection not open", ErrTransport)
	}
	if err := conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	n, err := conn.Read(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if n > 0 {
		t.touch()
	}
	t.logf("modbus: tcp read % x", buf[:n])
	return n, nil
}

// Write sends buf to the socket in full.
func (t *TCPClientTransport) Write(buf []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, fmt.Errorf("%w: tcp connection not open", ErrTransport)
	}
	if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	t.logf("modbus: tcp write % x", buf)
	n, err := conn.Write(buf)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	t.touch()
	return n, nil
}

// Flush drains and discards any input currently buffered on the socket.
func (t *TCPClientTransport) Flush() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	if err := conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return err
	}
	var scratch [256]byte
	for {
		if _, err := conn.Read(scratch[:]); err != nil {
			break
		}
	}
	return nil
}

func (t *TCPClientTransport) logf(format string, args ...interface{}) {
	if t.config.Logger != nil {
		t.config.Logger.Printf(format, args...)
	}
}
