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

package integration

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func TestBrowseEndToEnd(t *testing.T) {
	t.Parallel()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	g := NewWithT(t)
	env := NewTestEnv(t)
	defer env.Cleanup()

	t.Run("FirstGetGoesToProvider", func(t *testing.T) {
		res := env.Get("/")
		g.Expect(res.Status).To(Equal(http.StatusOK))
		g.Expect(res.Success).To(BeTrue())
		g.Expect(res.FromCache).To(BeFalse())
		g.Expect(EntryNames(res)).To(ConsistOf("docs", "readme.md", "src"))
	})

	t.Run("SecondGetServedFromCache", func(t *testing.T) {
		res := env.Get("/")
		g.Expect(res.Status).To(Equal(http.StatusOK))
		g.Expect(res.FromCache).To(BeTrue())
	})

	t.Run("SubdirectoryListing", func(t *testing.T) {
		res := env.Get("/docs")
		g.Expect(res.Success).To(BeTrue())
		g.Expect(EntryNames(res)).To(ConsistOf("guide.md"))

		guide := res.Entries[0]
		g.Expect(guide.IsDir).To(BeFalse())
		g.Expect(guide.Size).To(BeEquivalentTo(5))
		g.Expect(guide.Permissions).NotTo(BeEmpty())
		g.Expect(guide.Modified).To(MatchRegexp(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`))
	})

	t.Run("MissingPathIs404", func(t *testing.T) {
		res := env.Get("/no/such/path")
		g.Expect(res.Status).To(Equal(http.StatusNotFound))
		g.Expect(res.Success).To(BeFalse())
		g.Expect(res.Error).NotTo(BeEmpty())
	})

	t.Run("StaleUntilInvalidated", func(t *testing.T) {
		g.Expect(os.WriteFile(filepath.Join(env.ExportDir, "docs", "new.md"), []byte("new"), 0o644)).To(Succeed())

		// The cached listing does not see the new file.
		res := env.Get("/docs")
		g.Expect(res.FromCache).To(BeTrue())
		g.Expect(EntryNames(res)).To(ConsistOf("guide.md"))

		inv := env.Call("/api/v1/invalidate", "/docs")
		g.Expect(inv.Status).To(Equal(http.StatusOK))

		res = env.Get("/docs")
		g.Expect(res.FromCache).To(BeFalse())
		g.Expect(EntryNames(res)).To(ConsistOf("guide.md", "new.md"))
	})

	t.Run("PrefetchWarmsCache", func(t *testing.T) {
		res := env.Call("/api/v1/prefetch", "/src")
		g.Expect(res.Status).To(Equal(http.StatusAccepted))

		g.Eventually(func() bool {
			return env.Get("/src").FromCache
		}).WithTimeout(3 * time.Second).WithPolling(50 * time.Millisecond).Should(BeTrue())
	})

	t.Run("HealthReportsConnected", func(t *testing.T) {
		resp, err := http.Get("http://" + env.API.Addr() + "/health")
		g.Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		g.Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
}

func TestCacheSurvivesClientRestart(t *testing.T) {
	t.Parallel()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	g := NewWithT(t)
	env := NewTestEnv(t)
	defer env.Cleanup()

	res := env.Get("/docs")
	g.Expect(res.Success).To(BeTrue())
	g.Expect(res.FromCache).To(BeFalse())

	// Restart the whole client stack; the mirror file carries the cache
	// across the restart.
	env.StopClient()
	env.StartClient(env.Provider.Addr())

	res = env.Get("/docs")
	g.Expect(res.Success).To(BeTrue())
	g.Expect(res.FromCache).To(BeTrue())
	g.Expect(EntryNames(res)).To(ConsistOf("guide.md"))
}

func TestProviderOutage(t *testing.T) {
	t.Parallel()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	g := NewWithT(t)
	env := NewTestEnv(t)
	defer env.Cleanup()

	addr := env.Provider.Addr()

	// Warm the cache, then take the provider away.
	g.Expect(env.Get("/docs").Success).To(BeTrue())
	env.Provider.Stop()

	env.WaitForConnected(false)

	// Cached listings keep working offline.
	res := env.Get("/docs")
	g.Expect(res.Success).To(BeTrue())
	g.Expect(res.FromCache).To(BeTrue())

	// Uncached listings fail with a gateway error while disconnected.
	res = env.Get("/src")
	g.Expect(res.Status).To(Equal(http.StatusBadGateway))

	// Health reflects the outage.
	resp, err := http.Get("http://" + env.API.Addr() + "/health")
	g.Expect(err).NotTo(HaveOccurred())
	resp.Body.Close()
	g.Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))

	// Bring the provider back on the same address; the client reconnects by
	// itself and uncached paths work again.
	g.Expect(env.StartProviderAt(addr)).To(Succeed())
	env.WaitForConnected(true)

	env.WaitFor("uncached listing after reconnect", func() bool {
		return env.Get("/src").Success
	})
}
