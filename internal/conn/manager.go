// Copyright 2025 LazySync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package conn owns the single persistent connection to a snapshot provider.
//
// The manager is the only component that touches the socket: Send serializes
// frame writes behind a mutex, and one receive-loop goroutine per live
// connection decodes responses and hands them to the Handler. A broken
// connection fails in-flight work via HandleDisconnect and is re-established
// with bounded exponential backoff; failed requests are never replayed.
package conn

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"

	"lazysync/internal/common"
	"lazysync/internal/metrics"
	"lazysync/internal/wire"
)

// Handler receives decoded responses and disconnect notifications. Both are
// called from the manager's receive loop, never concurrently with each other.
type Handler interface {
	HandleResponse(resp *wire.Response)
	HandleDisconnect(err error)
}

// Config configures the manager.
type Config struct {
	Addr           string
	DialTimeout    time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// ApplyDefaults fills zero-value fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.BackoffInitial == 0 {
		c.BackoffInitial = 200 * time.Millisecond
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = 30 * time.Second
	}
}

// Manager maintains one logical connection to the provider.
type Manager struct {
	cfg     Config
	handler Handler
	log     *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	conn net.Conn
	enc  *wire.Encoder

	// writeMu serializes frame writes separately from the state mutex, so a
	// stalled peer cannot block Connected or Close behind a pending write.
	writeMu sync.Mutex
}

// New creates a manager. Start must be called before Send.
func New(cfg Config, handler Handler) *Manager {
	cfg.ApplyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		handler: handler,
		log:     logrus.WithField("component", "conn"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start establishes the initial connection and launches the receive loop.
// Unlike mid-life reconnects it fails fast so callers can report a bad
// address immediately.
func (m *Manager) Start() error {
	return m.dial()
}

// Send writes one request frame for path. Safe for concurrent use; the
// underlying stream sees whole frames only. Returns ErrConnectionLost while
// the connection is down (reconnection runs in the background).
func (m *Manager) Send(path string) error {
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return common.ErrClosed
	}
	c, enc := m.conn, m.enc
	m.mu.Unlock()

	if enc == nil {
		return fmt.Errorf("send %s: %w", path, common.ErrConnectionLost)
	}

	m.writeMu.Lock()
	err := enc.Encode(&wire.Request{Path: path})
	m.writeMu.Unlock()
	if err != nil {
		// The receive loop will observe the same broken socket and run the
		// disconnect path; here we only stop using the writer.
		m.log.WithError(err).Warn("request write failed")
		m.mu.Lock()
		if m.conn == c {
			m.conn.Close()
			m.conn = nil
			m.enc = nil
		}
		m.mu.Unlock()
		return fmt.Errorf("send %s: %w", path, common.ErrConnectionLost)
	}
	metrics.WireRequest()
	return nil
}

// Connected reports whether a connection is currently established.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enc != nil
}

// Close stops the receive loop and any reconnection attempt. Safe to call
// more than once.
func (m *Manager) Close() error {
	m.cancel()
	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
		m.enc = nil
	}
	m.mu.Unlock()
	m.wg.Wait()
	return nil
}

func (m *Manager) dial() error {
	d := net.Dialer{Timeout: m.cfg.DialTimeout}
	c, err := d.DialContext(m.ctx, "tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", m.cfg.Addr, err)
	}
	if tc, ok := c.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}

	m.mu.Lock()
	m.conn = c
	m.enc = wire.NewEncoder(c)
	m.mu.Unlock()

	metrics.SetConnected(true)
	m.log.WithField("addr", m.cfg.Addr).Info("connected to provider")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.receiveLoop(c)
	}()
	return nil
}

// receiveLoop decodes response frames until the connection dies. Any decode
// error is connection-fatal: the stream cannot be resynced after a bad frame.
func (m *Manager) receiveLoop(c net.Conn) {
	dec := wire.NewDecoder(bufio.NewReader(c))
	for {
		var resp wire.Response
		if err := dec.Decode(&resp); err != nil {
			m.lost(c, err)
			return
		}
		m.handler.HandleResponse(&resp)
	}
}

func (m *Manager) lost(c net.Conn, cause error) {
	m.mu.Lock()
	if m.conn == c {
		m.conn = nil
		m.enc = nil
	}
	m.mu.Unlock()
	c.Close()

	if m.ctx.Err() != nil {
		return // shutting down
	}

	metrics.SetConnected(false)
	m.log.WithError(cause).Warn("provider connection lost")
	m.handler.HandleDisconnect(fmt.Errorf("%w: %v", common.ErrConnectionLost, cause))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.reconnect()
	}()
}

// reconnect retries the dial until it succeeds or the manager closes.
// Exponential backoff capped at BackoffMax; pending requests that failed
// with the disconnect are not replayed.
func (m *Manager) reconnect() {
	err := retry.Do(
		m.dial,
		retry.Context(m.ctx),
		retry.Attempts(0),
		retry.Delay(m.cfg.BackoffInitial),
		retry.MaxDelay(m.cfg.BackoffMax),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			m.log.WithError(err).WithField("attempt", n+1).Debug("reconnect failed")
		}),
	)
	if err != nil {
		if m.ctx.Err() == nil {
			m.log.WithError(err).Error("reconnect aborted")
		}
		return
	}
	metrics.Reconnected()
	m.log.Info("reconnected to provider")
}
