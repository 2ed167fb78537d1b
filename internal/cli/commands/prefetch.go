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

	"github.com/spf13/cobra"
)

var prefetchCmd = &cobra.Command{
	Use:   "prefetch <path>...",
	Short: "Warm the snapshot cache for directories",
	Long: `Asks the running browse client to fetch listings in the background.

Prefetch returns immediately; the listings land in the snapshot cache when
the provider answers. Paths already cached or already being fetched are
skipped.

Examples:
  lazysync prefetch /home/user/projects
  lazysync prefetch /a /b /c`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrefetch,
}

func init() {
	prefetchCmd.Flags().StringVar(&apiAddrFlag, "api", "", "Browse client HTTP address (default from settings.yaml)")
	rootCmd.AddCommand(prefetchCmd)
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	addr, err := apiAddr()
	if err != nil {
		return err
	}
	for _, p := range args {
		resp, err := callAPI(cmd.Context(), addr, "/api/v1/prefetch", p)
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("prefetch %s: %s", p, resp.Error)
		}
		fmt.Printf("prefetching %s\n", resp.Path)
	}
	return nil
}
