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

package common

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the provider reports that the requested
	// path does not exist on the remote machine.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned when the provider cannot read the
	// requested path.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConnectionLost is returned to callers whose request was in flight
	// when the provider connection broke. The connection manager reconnects
	// on its own; callers retry at the coordinator level if they want to.
	ErrConnectionLost = errors.New("connection lost")

	// ErrTimedOut is returned when no response arrived within the
	// configured request timeout.
	ErrTimedOut = errors.New("request timed out")

	// ErrMalformed indicates an undecodable wire frame. Always
	// connection-fatal: the connection manager tears the link down rather
	// than trying to resync the stream.
	ErrMalformed = errors.New("malformed frame")

	// ErrClosed is returned for operations on a closed coordinator or
	// connection manager.
	ErrClosed = errors.New("closed")

	// ErrInvalidPath is returned for requests whose path normalizes to
	// nothing.
	ErrInvalidPath = errors.New("invalid path")
)

// RemoteError carries a provider-supplied message verbatim for failures that
// fit no specific category.
type RemoteError struct {
	Path    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error for %s: %s", e.Path, e.Message)
}
