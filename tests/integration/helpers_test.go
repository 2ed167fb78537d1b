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

// Package integration exercises the full lazysync stack: a provider serving
// a real directory tree over TCP, a browsing client with an on-disk snapshot
// cache, and the HTTP facade in front of it.
//
// Each TestEnv is fully isolated: its own export directory, its own cache
// file, its own ports (all listeners bind :0). Tests run in parallel.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"

	"lazysync/internal/cache"
	"lazysync/internal/conn"
	"lazysync/internal/fetch"
	"lazysync/internal/httpapi"
	"lazysync/internal/provider"
	"lazysync/internal/util"
	"lazysync/internal/wire"
)

// TestEnv is one provider plus one browsing client, wired over loopback.
type TestEnv struct {
	t *testing.T

	ExportDir string
	CacheFile string

	Provider *provider.Server
	Manager  *conn.Manager
	Coord    *fetch.Coordinator
	API      *httpapi.Server

	cache *cache.Cache
}

// NewTestEnv builds the whole stack. The export directory starts with a
// small fixture tree.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	env := &TestEnv{
		t:         t,
		ExportDir: t.TempDir(),
		CacheFile: filepath.Join(t.TempDir(), "cache.json"),
	}
	env.writeFixtureTree()
	env.StartProvider()
	env.StartClient(env.Provider.Addr())
	return env
}

func (e *TestEnv) writeFixtureTree() {
	e.t.Helper()
	must := func(err error) {
		if err != nil {
			e.t.Fatalf("fixture setup: %v", err)
		}
	}
	must(os.MkdirAll(filepath.Join(e.ExportDir, "docs"), 0o755))
	must(os.MkdirAll(filepath.Join(e.ExportDir, "src"), 0o755))
	must(os.WriteFile(filepath.Join(e.ExportDir, "readme.md"), []byte("hello"), 0o644))
	must(os.WriteFile(filepath.Join(e.ExportDir, "docs", "guide.md"), []byte("guide"), 0o644))
	must(os.WriteFile(filepath.Join(e.ExportDir, "src", "main.go"), []byte("package main"), 0o644))
}

// StartProvider starts (or restarts) the provider over the export dir.
func (e *TestEnv) StartProvider() {
	e.t.Helper()
	srv := provider.NewServer(provider.NewLister(osfs.New(e.ExportDir), nil))
	if err := srv.Start("127.0.0.1:0"); err != nil {
		e.t.Fatalf("start provider: %v", err)
	}
	e.Provider = srv
}

// StartProviderAt restarts the provider on a fixed address, for reconnect
// tests where the client must find it again.
func (e *TestEnv) StartProviderAt(addr string) error {
	srv := provider.NewServer(provider.NewLister(osfs.New(e.ExportDir), nil))
	if err := srv.Start(addr); err != nil {
		return err
	}
	e.Provider = srv
	return nil
}

// StartClient assembles cache, connection manager, coordinator and HTTP
// facade against the provider at addr.
func (e *TestEnv) StartClient(addr string) {
	e.t.Helper()

	snapshots, err := cache.Open(e.CacheFile)
	if err != nil {
		e.t.Fatalf("open cache: %v", err)
	}
	e.cache = snapshots

	e.Coord = fetch.New(snapshots, nil, fetch.Config{RequestTimeout: 3 * time.Second})
	e.Manager = conn.New(conn.Config{
		Addr:           addr,
		DialTimeout:    2 * time.Second,
		BackoffInitial: 20 * time.Millisecond,
		BackoffMax:     200 * time.Millisecond,
	}, e.Coord)
	e.Coord.SetSender(e.Manager)

	if err := e.Manager.Start(); err != nil {
		e.t.Fatalf("connect to provider: %v", err)
	}

	e.API = httpapi.New(e.Coord, e.Manager)
	if err := e.API.Start("127.0.0.1:0"); err != nil {
		e.t.Fatalf("start http facade: %v", err)
	}
}

// StopClient tears the client stack down, leaving the cache file behind.
func (e *TestEnv) StopClient() {
	if e.API != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		e.API.Stop(ctx)
		cancel()
	}
	if e.Manager != nil {
		e.Manager.Close()
	}
	if e.Coord != nil {
		e.Coord.Close()
	}
	if e.cache != nil {
		e.cache.Close()
	}
}

// Cleanup stops everything.
func (e *TestEnv) Cleanup() {
	e.StopClient()
	if e.Provider != nil {
		e.Provider.Stop()
	}
}

// apiResult mirrors the facade's JSON reply.
type apiResult struct {
	Status    int
	Success   bool         `json:"success"`
	Path      string       `json:"path"`
	Entries   []wire.Entry `json:"entries"`
	FromCache bool         `json:"from_cache"`
	Error     string       `json:"error"`
}

// Call posts a path operation to the facade.
func (e *TestEnv) Call(route, path string) apiResult {
	e.t.Helper()

	payload, _ := json.Marshal(map[string]string{"path": path})
	url := fmt.Sprintf("http://%s%s", e.API.Addr(), route)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		e.t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	var out apiResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		e.t.Fatalf("decode %s response: %v", url, err)
	}
	out.Status = resp.StatusCode
	return out
}

// Get fetches a listing through the facade.
func (e *TestEnv) Get(path string) apiResult {
	return e.Call("/api/v1/get", path)
}

// WaitForConnected waits until the client's connection state matches want.
func (e *TestEnv) WaitForConnected(want bool) {
	e.t.Helper()
	err := util.PollUntil(context.Background(), util.PollConfig{
		Timeout:  5 * time.Second,
		Interval: 20 * time.Millisecond,
	}, func() bool {
		return e.Manager.Connected() == want
	})
	if err != nil {
		e.t.Fatalf("connection state never became connected=%v: %v", want, err)
	}
}

// WaitFor waits until condition holds, failing the test with desc on timeout.
func (e *TestEnv) WaitFor(desc string, condition func() bool) {
	e.t.Helper()
	if err := util.PollUntil(context.Background(), util.DefaultPollConfig(), condition); err != nil {
		e.t.Fatalf("timed out waiting for %s: %v", desc, err)
	}
}

// EntryNames extracts the names from a listing result.
func EntryNames(r apiResult) []string {
	names := make([]string, 0, len(r.Entries))
	for _, entry := range r.Entries {
		names = append(names, entry.Name)
	}
	return names
}
