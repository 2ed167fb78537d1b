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

// Package fetch coordinates snapshot requests between callers, the snapshot
// cache, and the provider connection.
//
// Per path the coordinator keeps at most one pending request at any time.
// That invariant is what lets the wire layer correlate responses by path
// instead of a request id, so every operation that could issue a send goes
// through ensurePending.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"lazysync/internal/cache"
	"lazysync/internal/common"
	"lazysync/internal/metrics"
	"lazysync/internal/wire"
)

// Sender writes one request frame for a path. Implemented by conn.Manager.
type Sender interface {
	Send(path string) error
}

// Config configures the coordinator.
type Config struct {
	// RequestTimeout fails all waiters of a pending request with ErrTimedOut
	// when no response arrives in time.
	RequestTimeout time.Duration
}

// ApplyDefaults fills zero-value fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 5 * time.Second
	}
}

// pendingRequest tracks one in-flight wire request and the waiters blocked
// on its outcome. Waiters select on done; entries and err are published
// before done closes and never written afterwards.
type pendingRequest struct {
	path     string
	done     chan struct{}
	timer    *time.Timer
	started  time.Time
	resolved bool // guarded by Coordinator.mu

	entries []wire.Entry
	err     error
}

// Coordinator is the only caller-facing component of the client stack.
type Coordinator struct {
	cache  *cache.Cache
	sender Sender
	cfg    Config
	log    *logrus.Entry

	mu      sync.Mutex
	pending map[string]*pendingRequest
	recent  []string // most recently requested first, bounded
	closed  bool
}

// recentCap bounds the recent-path list; the refresher reads a prefix of it.
const recentCap = 32

// New creates a coordinator serving lookups from c and fetching misses
// through sender.
func New(c *cache.Cache, sender Sender, cfg Config) *Coordinator {
	cfg.ApplyDefaults()
	return &Coordinator{
		cache:   c,
		sender:  sender,
		cfg:     cfg,
		log:     logrus.WithField("component", "fetch"),
		pending: make(map[string]*pendingRequest),
	}
}

// SetSender installs the wire sender. The coordinator and the connection
// manager reference each other, so one of them is wired up after
// construction; call this before any request is issued.
func (c *Coordinator) SetSender(s Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = s
}

// Get returns the snapshot for path, from cache when possible. On a miss it
// joins the path's pending request (creating one, and sending exactly one
// wire request, if none exists) and blocks until the shared outcome is
// published. Every waiter of one pending request observes the same outcome.
//
// A caller whose ctx expires simply stops waiting; the in-flight request and
// its other waiters are unaffected. Get never retries: any terminal error is
// surfaced once, and a follow-up Get re-enters the request path because the
// cache still shows a miss.
func (c *Coordinator) Get(ctx context.Context, path string) ([]wire.Entry, error) {
	p := common.NormalizePath(path)
	if p == "" {
		return nil, common.ErrInvalidPath
	}

	c.noteRecent(p)

	if entries, ok := c.cache.Lookup(p); ok {
		metrics.CacheHit()
		return entries, nil
	}
	metrics.CacheMiss()

	pr, err := c.ensurePending(p)
	if err != nil {
		return nil, err
	}

	select {
	case <-pr.done:
		return pr.entries, pr.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Prefetch warms the cache for path without blocking. A cache hit or an
// already-pending request makes it a no-op; otherwise it issues the send and
// returns immediately. Completion updates the cache with no one to notify.
func (c *Coordinator) Prefetch(path string) {
	p := common.NormalizePath(path)
	if p == "" {
		return
	}
	if _, ok := c.cache.Lookup(p); ok {
		return
	}
	if _, err := c.ensurePending(p); err != nil {
		c.log.WithError(err).WithField("path", p).Debug("prefetch send failed")
	}
}

// Refresh re-requests path even when it is cached, still respecting the
// at-most-one-pending invariant. Used by the recent-path refresher to keep a
// browsed directory current; the response overwrites the cache on arrival.
func (c *Coordinator) Refresh(path string) {
	p := common.NormalizePath(path)
	if p == "" {
		return
	}
	if _, err := c.ensurePending(p); err != nil {
		c.log.WithError(err).WithField("path", p).Debug("refresh send failed")
	}
}

// Invalidate drops the cached snapshot for path so the next Get performs a
// fresh wire round-trip. Idempotent.
func (c *Coordinator) Invalidate(path string) error {
	p := common.NormalizePath(path)
	if p == "" {
		return common.ErrInvalidPath
	}
	return c.cache.Invalidate(p)
}

// Cached returns the cached snapshot for path without triggering a fetch.
func (c *Coordinator) Cached(path string) ([]wire.Entry, bool) {
	return c.cache.Lookup(common.NormalizePath(path))
}

// RecentPaths returns up to n of the most recently requested paths, newest
// first.
func (c *Coordinator) RecentPaths(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > len(c.recent) {
		n = len(c.recent)
	}
	return append([]string(nil), c.recent[:n]...)
}

// noteRecent moves p to the front of the recent-path list.
func (c *Coordinator) noteRecent(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.recent {
		if r == p {
			copy(c.recent[1:i+1], c.recent[:i])
			c.recent[0] = p
			return
		}
	}
	c.recent = append(c.recent, "")
	copy(c.recent[1:], c.recent)
	c.recent[0] = p
	if len(c.recent) > recentCap {
		c.recent = c.recent[:recentCap]
	}
}

// ensurePending returns the pending request for p, creating it and issuing
// the single wire send when none exists.
func (c *Coordinator) ensurePending(p string) (*pendingRequest, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, common.ErrClosed
	}
	if pr, ok := c.pending[p]; ok {
		c.mu.Unlock()
		return pr, nil
	}
	pr := &pendingRequest{
		path:    p,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	pr.timer = time.AfterFunc(c.cfg.RequestTimeout, func() {
		c.resolve(pr, nil, fmt.Errorf("%s: %w", p, common.ErrTimedOut))
	})
	c.pending[p] = pr
	sender := c.sender
	c.mu.Unlock()

	if sender == nil {
		err := fmt.Errorf("%s: %w", p, common.ErrConnectionLost)
		c.resolve(pr, nil, err)
		return nil, err
	}
	if err := sender.Send(p); err != nil {
		c.resolve(pr, nil, err)
		return nil, err
	}
	return pr, nil
}

// HandleResponse applies one decoded response. Called by the connection
// manager's receive loop.
//
// Successful responses always update the cache, pending request or not: a
// late response that outlived its timeout, or a refresh with no waiters, is
// still the most recently completed snapshot for its path. Error responses
// resolve waiters without touching the cache.
func (c *Coordinator) HandleResponse(resp *wire.Response) {
	p := common.NormalizePath(resp.Path)

	if err := resp.Failure(); err != nil {
		c.resolvePath(p, nil, err)
		return
	}

	entries := wire.NormalizeEntries(resp.Entries)
	if err := c.cache.Store(p, entries); err != nil {
		// The in-memory cache is updated regardless; a mirror write failure
		// must not fail the request.
		c.log.WithError(err).Warn("cache mirror update failed")
	}
	c.resolvePath(p, entries, nil)
}

// HandleDisconnect fails every pending request. The connection manager
// reconnects on its own; waiters see a terminal error and decide about
// retrying themselves.
func (c *Coordinator) HandleDisconnect(err error) {
	c.failAll(err)
}

// Close fails outstanding requests with ErrClosed and rejects new work.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.failAll(common.ErrClosed)
}

func (c *Coordinator) resolvePath(p string, entries []wire.Entry, err error) {
	c.mu.Lock()
	pr, ok := c.pending[p]
	c.mu.Unlock()
	if ok {
		c.resolve(pr, entries, err)
	}
}

// resolve publishes the outcome of a pending request exactly once and
// discards it. Safe to race between response dispatch, timeout, disconnect
// and shutdown; losers of the race are no-ops.
func (c *Coordinator) resolve(pr *pendingRequest, entries []wire.Entry, err error) {
	c.mu.Lock()
	if pr.resolved {
		c.mu.Unlock()
		return
	}
	pr.resolved = true
	if c.pending[pr.path] == pr {
		delete(c.pending, pr.path)
	}
	c.mu.Unlock()

	pr.timer.Stop()
	pr.entries = entries
	pr.err = err
	close(pr.done)

	metrics.RequestOutcome(outcomeLabel(err))
	metrics.ObserveRoundTrip(time.Since(pr.started))
}

func (c *Coordinator) failAll(err error) {
	c.mu.Lock()
	prs := make([]*pendingRequest, 0, len(c.pending))
	for _, pr := range c.pending {
		prs = append(prs, pr)
	}
	c.mu.Unlock()

	for _, pr := range prs {
		c.resolve(pr, nil, fmt.Errorf("%s: %w", pr.path, err))
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, common.ErrTimedOut):
		return "timed_out"
	case errors.Is(err, common.ErrConnectionLost):
		return "connection_lost"
	default:
		return "other"
	}
}
