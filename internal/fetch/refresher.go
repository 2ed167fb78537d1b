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

package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Refresher periodically re-requests the most recently browsed directories
// so their cached snapshots stay current while the user lingers.
type Refresher struct {
	coord    *Coordinator
	interval time.Duration
	depth    int
	log      *logrus.Entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefresher creates a refresher over coord. depth bounds how many recent
// paths each cycle refreshes.
func NewRefresher(coord *Coordinator, interval time.Duration, depth int) *Refresher {
	if depth <= 0 {
		depth = 5
	}
	return &Refresher{
		coord:    coord,
		interval: interval,
		depth:    depth,
		log:      logrus.WithField("component", "refresher"),
	}
}

// Start launches the refresh loop. A non-positive interval disables the
// refresher entirely.
func (r *Refresher) Start() {
	if r.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(ctx)
	}()
}

// Stop halts the refresh loop and waits for it to exit. Safe to call even
// when Start never ran.
func (r *Refresher) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
}

func (r *Refresher) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			paths := r.coord.RecentPaths(r.depth)
			if len(paths) == 0 {
				continue
			}
			r.log.WithField("count", len(paths)).Trace("refreshing recent paths")
			for _, p := range paths {
				r.coord.Refresh(p)
			}
		}
	}
}
