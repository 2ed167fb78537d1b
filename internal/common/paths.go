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
	"path"
	"strings"
)

// NormalizePath canonicalizes a remote path for use as a cache key.
// Whitespace is trimmed, "." segments and repeated slashes collapse, and
// trailing slashes are dropped except for the root "/". Remote paths keep
// their leading slash: they name locations on the provider's machine, not
// inside a local tree.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// ParentPath returns the parent directory of a normalized remote path.
// The parent of "/" is "/"; the parent of an empty path is empty.
func ParentPath(p string) string {
	p = NormalizePath(p)
	if p == "" || p == "/" {
		return p
	}
	return path.Dir(p)
}

// BaseName returns the last element of a normalized remote path.
func BaseName(p string) string {
	p = NormalizePath(p)
	if p == "" || p == "/" {
		return p
	}
	return path.Base(p)
}
