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

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <path>...",
	Short: "Drop cached listings",
	Long: `Removes directories from the running browse client's snapshot cache.

The next get for a dropped path performs a fresh provider round-trip.
Invalidating a path that is not cached is a no-op.

Examples:
  lazysync invalidate /home/user
  lazysync invalidate /a /b`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInvalidate,
}

func init() {
	invalidateCmd.Flags().StringVar(&apiAddrFlag, "api", "", "Browse client HTTP address (default from settings.yaml)")
	rootCmd.AddCommand(invalidateCmd)
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	addr, err := apiAddr()
	if err != nil {
		return err
	}
	for _, p := range args {
		resp, err := callAPI(cmd.Context(), addr, "/api/v1/invalidate", p)
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("invalidate %s: %s", p, resp.Error)
		}
		fmt.Printf("invalidated %s\n", resp.Path)
	}
	return nil
}
