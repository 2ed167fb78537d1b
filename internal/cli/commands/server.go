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
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lazysync/internal/config"
	"lazysync/internal/provider"
)

var serverCmd = &cobra.Command{
	Use:   "server [root-dir]",
	Short: "Serve directory snapshots to lazysync clients",
	Long: `Exports a directory tree over the snapshot wire protocol.

Clients connect with 'lazysync browse' and request one directory listing at
a time. The server never pushes data and keeps no per-client state beyond
the open connection.

Examples:
  # Export the current directory on the default port
  lazysync server .

  # Export /srv/share on a specific address, hiding dotfiles
  lazysync server /srv/share --addr 0.0.0.0:7878 --hide-dotfiles`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServer,
}

var (
	serverAddr         string
	serverHideDotfiles bool
	serverIgnore       []string
)

func init() {
	serverCmd.Flags().StringVar(&serverAddr, "addr", "", "Listen address (default from settings.yaml)")
	serverCmd.Flags().BoolVar(&serverHideDotfiles, "hide-dotfiles", false, "Hide dotfiles in listings")
	serverCmd.Flags().StringArrayVar(&serverIgnore, "ignore", nil, "gitignore-style pattern to exclude (repeatable)")
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}
	if logLevelFlag == "" {
		applyLogLevel(settings.LogLevel)
	}

	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("root directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", absRoot)
	}

	addr := serverAddr
	if addr == "" {
		addr = settings.ServerAddr
	}

	filter := provider.NewFilter(provider.FilterConfig{
		HideDotfiles:   serverHideDotfiles || settings.HideDotfiles,
		IgnorePatterns: append(append([]string{}, settings.IgnorePatterns...), serverIgnore...),
	})

	srv := provider.NewServer(provider.NewLister(osfs.New(absRoot), filter))
	if err := srv.Start(addr); err != nil {
		return err
	}
	defer srv.Stop()

	logrus.WithFields(logrus.Fields{
		"root": absRoot,
		"addr": srv.Addr(),
	}).Info("serving snapshots")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logrus.WithField("signal", sig.String()).Info("shutting down")
	return nil
}
