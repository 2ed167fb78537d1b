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

package provider

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"lazysync/internal/wire"
)

// Server accepts client connections and serves listing requests over the
// framed wire protocol. Listings for one connection run concurrently; the
// write side is serialized so frames never interleave.
type Server struct {
	lister *Lister
	log    *logrus.Entry

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a server around lister.
func NewServer(lister *Lister) *Server {
	return &Server{
		lister: lister,
		log:    logrus.WithField("component", "provider-server"),
		conns:  make(map[net.Conn]struct{}),
	}
}

// Start binds addr and begins accepting connections in the background.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.WithField("addr", listener.Addr().String()).Info("provider listening")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(listener)
	}()
	return nil
}

// Addr returns the bound address, for tests that listen on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and all live connections, then waits for the
// connection goroutines to drain.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) acceptLoop(listener net.Listener) {
	for {
		c, err := listener.Accept()
		if err != nil {
			return // listener closed
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			c.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(c)
		}()
	}
}

func (s *Server) serveConn(c net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.Close()
	}()

	log := s.log.WithField("remote", c.RemoteAddr().String())
	log.Debug("client connected")

	dec := wire.NewDecoder(bufio.NewReader(c))
	enc := wire.NewEncoder(c)
	var writeMu sync.Mutex
	var pending sync.WaitGroup

	for {
		var req wire.Request
		if err := dec.Decode(&req); err != nil {
			// Clean EOF and broken sockets end the connection the same
			// way; in-flight listings are still allowed to finish.
			log.WithError(err).Debug("client disconnected")
			break
		}

		pending.Add(1)
		go func(path string) {
			defer pending.Done()
			resp := s.lister.List(path)
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := enc.Encode(resp); err != nil {
				log.WithError(err).Debug("response write failed")
			}
		}(req.Path)
	}
	pending.Wait()
}
