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

// Package httpapi exposes the browsing client over a local HTTP facade.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"lazysync/internal/common"
	"lazysync/internal/fetch"
	"lazysync/internal/metrics"
	"lazysync/internal/wire"
)

// Server is the HTTP facade over the request coordinator.
type Server struct {
	coord *fetch.Coordinator
	conn  interface{ Connected() bool }
	log   *logrus.Entry

	httpSrv  *http.Server
	listener net.Listener
}

// New creates a facade around coord. conn reports provider connectivity for
// the health endpoint and may be nil.
func New(coord *fetch.Coordinator, conn interface{ Connected() bool }) *Server {
	s := &Server{
		coord: coord,
		conn:  conn,
		log:   logrus.WithField("component", "httpapi"),
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/get", metrics.InstrumentHandler("/api/v1/get", http.HandlerFunc(s.handleGet)))
	mux.Handle("/api/v1/prefetch", metrics.InstrumentHandler("/api/v1/prefetch", http.HandlerFunc(s.handlePrefetch)))
	mux.Handle("/api/v1/invalidate", metrics.InstrumentHandler("/api/v1/invalidate", http.HandlerFunc(s.handleInvalidate)))
	mux.Handle("/health", metrics.InstrumentHandler("/health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("/metrics", metrics.Handler())

	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start binds addr and serves in the background.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = listener
	s.log.WithField("addr", listener.Addr().String()).Info("http facade listening")

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server failed")
		}
	}()
	return nil
}

// Addr returns the bound address, for tests that listen on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the routed handler, for tests driving the facade with
// httptest.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

type pathRequest struct {
	Path string `json:"path"`
}

type getResponse struct {
	Success   bool         `json:"success"`
	Path      string       `json:"path"`
	Entries   []wire.Entry `json:"entries,omitempty"`
	FromCache bool         `json:"from_cache"`
	Error     string       `json:"error,omitempty"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePathRequest(w, r)
	if !ok {
		return
	}

	p := common.NormalizePath(req.Path)
	_, fromCache := s.coord.Cached(p)

	entries, err := s.coord.Get(r.Context(), p)
	if err != nil {
		writeJSON(w, statusFor(err), getResponse{Path: p, Error: err.Error()})
		return
	}
	if entries == nil {
		entries = []wire.Entry{}
	}
	writeJSON(w, http.StatusOK, getResponse{
		Success:   true,
		Path:      p,
		Entries:   entries,
		FromCache: fromCache,
	})
}

func (s *Server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePathRequest(w, r)
	if !ok {
		return
	}
	p := common.NormalizePath(req.Path)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, statusResponse{Error: common.ErrInvalidPath.Error()})
		return
	}
	// Fire and forget: the response arrives into the cache whenever it does.
	s.coord.Prefetch(p)
	writeJSON(w, http.StatusAccepted, statusResponse{Success: true, Path: p})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePathRequest(w, r)
	if !ok {
		return
	}
	p := common.NormalizePath(req.Path)
	if err := s.coord.Invalidate(p); err != nil {
		writeJSON(w, statusFor(err), statusResponse{Path: p, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Path: p})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, statusResponse{Error: "method not allowed"})
		return
	}
	connected := s.conn != nil && s.conn.Connected()
	status := http.StatusOK
	if !connected {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"success":   connected,
		"connected": connected,
	})
}

func (s *Server) decodePathRequest(w http.ResponseWriter, r *http.Request) (pathRequest, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, statusResponse{Error: "method not allowed"})
		return pathRequest{}, false
	}
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Error: "invalid request body"})
		return pathRequest{}, false
	}
	return req, true
}

// statusFor maps coordinator errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, common.ErrTimedOut):
		return http.StatusGatewayTimeout
	case errors.Is(err, common.ErrConnectionLost), errors.Is(err, common.ErrClosed):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
