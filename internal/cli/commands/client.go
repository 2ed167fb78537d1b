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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lazysync/internal/util"
	"lazysync/internal/wire"
)

// apiResponse is the facade's reply shape for all path operations.
type apiResponse struct {
	Success   bool         `json:"success"`
	Path      string       `json:"path"`
	Entries   []wire.Entry `json:"entries"`
	FromCache bool         `json:"from_cache"`
	Error     string       `json:"error"`
}

// callAPI posts a path operation to a running browse client's HTTP facade.
// Transient network errors are retried; a facade that is simply not running
// surfaces quickly with a connection-refused error.
func callAPI(ctx context.Context, addr, route, path string) (*apiResponse, error) {
	payload, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("http://%s%s", addr, route)
	client := &http.Client{Timeout: 30 * time.Second}

	return util.RetryWithResult(ctx, func() (*apiResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("is 'lazysync browse' running? %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var out apiResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("unexpected response from %s: %w", url, err)
		}
		return &out, nil
	}, util.NetworkRetryOptions(ctx)...)
}
