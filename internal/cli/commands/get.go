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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lazysync/internal/config"
	"lazysync/internal/wire"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "List a remote directory",
	Long: `Fetches one directory listing through a running browse client.

Cached listings return instantly; misses go to the provider. The output
marks whether the listing came from the snapshot cache.

Examples:
  lazysync get /home/user
  lazysync get /var/log --api 127.0.0.1:8090`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var apiAddrFlag string

func init() {
	getCmd.Flags().StringVar(&apiAddrFlag, "api", "", "Browse client HTTP address (default from settings.yaml)")
	rootCmd.AddCommand(getCmd)
}

func apiAddr() (string, error) {
	if apiAddrFlag != "" {
		return apiAddrFlag, nil
	}
	settings, err := config.Load()
	if err != nil {
		return "", err
	}
	return settings.HTTPAddr, nil
}

func runGet(cmd *cobra.Command, args []string) error {
	addr, err := apiAddr()
	if err != nil {
		return err
	}
	resp, err := callAPI(cmd.Context(), addr, "/api/v1/get", args[0])
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("get %s: %s", args[0], resp.Error)
	}

	source := "provider"
	if resp.FromCache {
		source = "cache"
	}
	fmt.Printf("%s (%d entries, from %s)\n", resp.Path, len(resp.Entries), source)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range resp.Entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		size := fmt.Sprintf("%d", e.Size)
		if e.Type != wire.TypeFile {
			size = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Permissions, size, e.Modified, name)
	}
	return w.Flush()
}
