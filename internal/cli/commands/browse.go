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

package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lazysync/internal/cache"
	"lazysync/internal/config"
	"lazysync/internal/conn"
	"lazysync/internal/fetch"
	"lazysync/internal/httpapi"
	"lazysync/internal/util"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Run the browsing client",
	Long: `Connects to a snapshot provider and exposes the lazy browsing API over
local HTTP.

Listings already in the snapshot cache are served instantly, misses go to
the provider exactly once no matter how many callers ask, and the cache
survives restarts through an on-disk mirror. If the provider goes away the
client keeps serving cached listings and reconnects in the background.

Examples:
  # Connect using settings.yaml
  lazysync browse

  # Override the provider and HTTP addresses
  lazysync browse --server 10.0.0.5:7878 --http 127.0.0.1:8090

  # Start with an empty throwaway cache
  lazysync browse --ephemeral`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

var (
	browseServerAddr string
	browseHTTPAddr   string
	browseEphemeral  bool
)

func init() {
	browseCmd.Flags().StringVar(&browseServerAddr, "server", "", "Provider address (default from settings.yaml)")
	browseCmd.Flags().StringVar(&browseHTTPAddr, "http", "", "HTTP facade listen address (default from settings.yaml)")
	browseCmd.Flags().BoolVar(&browseEphemeral, "ephemeral", false, "Use a fresh single-run cache instead of the shared mirror")
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}
	if logLevelFlag == "" {
		applyLogLevel(settings.LogLevel)
	}

	serverAddr := browseServerAddr
	if serverAddr == "" {
		serverAddr = settings.ServerAddr
	}
	httpAddr := browseHTTPAddr
	if httpAddr == "" {
		httpAddr = settings.HTTPAddr
	}

	cacheFile := settings.CacheFile
	if browseEphemeral {
		cacheFile = cache.EphemeralFile(config.Dir())
	}
	snapshots, err := cache.Open(cacheFile)
	if err != nil {
		return err
	}
	defer snapshots.Close()
	if browseEphemeral {
		defer os.Remove(cacheFile)
	}
	logrus.WithFields(logrus.Fields{
		"file":  cacheFile,
		"paths": snapshots.Len(),
	}).Info("snapshot cache loaded")

	coord := fetch.New(snapshots, nil, fetch.Config{
		RequestTimeout: settings.RequestTimeout(),
	})
	manager := conn.New(conn.Config{
		Addr:           serverAddr,
		DialTimeout:    settings.DialTimeout(),
		BackoffInitial: settings.BackoffInitial(),
		BackoffMax:     settings.BackoffMax(),
	}, coord)
	coord.SetSender(manager)

	// A provider that is restarting at launch time is worth a few quick
	// retries; anything else (bad address, refused for good) still fails
	// within a second or so.
	if err := util.Retry(cmd.Context(), manager.Start, util.NetworkRetryOptions(cmd.Context())...); err != nil {
		return err
	}
	defer manager.Close()
	defer coord.Close()

	refresher := fetch.NewRefresher(coord, settings.RefreshInterval(), settings.RefreshDepth)
	refresher.Start()
	defer refresher.Stop()

	api := httpapi.New(coord, manager)
	if err := api.Start(httpAddr); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		api.Stop(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logrus.WithField("signal", sig.String()).Info("shutting down")
	return nil
}
