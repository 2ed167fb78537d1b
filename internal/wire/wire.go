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

// Package wire defines the messages exchanged with a snapshot provider and
// the framing used to carry them over an ordered byte stream.
//
// Responses are correlated to requests by the path they carry, not by a
// request id. This works only because the coordinator guarantees at most one
// in-flight request per path; if that invariant is ever relaxed, a
// monotonically increasing request id must be added to both frames.
package wire

import (
	"fmt"

	"lazysync/internal/common"
)

// Error codes carried in response frames.
const (
	CodeNotFound         = "not_found"
	CodePermissionDenied = "permission_denied"
	CodeOther            = "other"
)

// Entry type strings.
const (
	TypeFile    = "file"
	TypeDir     = "dir"
	TypeSymlink = "symlink"
	TypeOther   = "other"
)

// Entry is one item of a directory snapshot. Immutable once constructed.
type Entry struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	IsDir       bool   `json:"is_dir"`
	Size        int64  `json:"size"`
	Permissions string `json:"permissions"`
	Modified    string `json:"modified"`
}

// Request asks the provider for the snapshot of one path.
type Request struct {
	Path string `json:"path"`
}

// Error is the error half of a response frame.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Response answers a request for Path with either a full entry list or an
// error tag. Exactly one of Entries / Err is meaningful.
type Response struct {
	Path    string  `json:"path"`
	Entries []Entry `json:"entries"`
	Err     *Error  `json:"error,omitempty"`
}

// ErrorResponse builds an error response for a path.
func ErrorResponse(path, code, message string) *Response {
	return &Response{Path: path, Err: &Error{Code: code, Message: message}}
}

// Failure maps an error response to the caller-facing error value, or nil
// for a successful response.
func (r *Response) Failure() error {
	if r.Err == nil {
		return nil
	}
	switch r.Err.Code {
	case CodeNotFound:
		return fmt.Errorf("%s: %w", r.Path, common.ErrNotFound)
	case CodePermissionDenied:
		return fmt.Errorf("%s: %w", r.Path, common.ErrPermissionDenied)
	default:
		return &common.RemoteError{Path: r.Path, Message: r.Err.Message}
	}
}
