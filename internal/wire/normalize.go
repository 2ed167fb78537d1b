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

package wire

import "strings"

// InferType derives the entry type when the provider left it blank. The
// first rune of an ls-style permission string is authoritative: 'l' for
// symlinks, 'd' for directories.
func InferType(fileType, permissions string, isDir bool) string {
	if fileType != "" {
		return fileType
	}
	switch {
	case strings.HasPrefix(permissions, "l"):
		return TypeSymlink
	case strings.HasPrefix(permissions, "d"):
		return TypeDir
	case isDir:
		return TypeDir
	default:
		return TypeFile
	}
}

// normalizePermissions rewrites the mode rune for symlinks so a symlink
// always renders with an 'l' prefix regardless of how the provider stat'd it.
func normalizePermissions(permissions, fileType string) string {
	if fileType != TypeSymlink || permissions == "" {
		return permissions
	}
	return "l" + permissions[1:]
}

// NormalizeEntry fills the derived fields of an entry so that cached and
// freshly received entries compare equal: Type inferred when missing, symlink
// permission strings rewritten, IsDir recomputed from the type.
func NormalizeEntry(e Entry) Entry {
	e.Type = InferType(e.Type, e.Permissions, e.IsDir)
	e.Permissions = normalizePermissions(e.Permissions, e.Type)
	e.IsDir = e.Type == TypeDir || strings.HasPrefix(e.Permissions, "d")
	return e
}

// NormalizeEntries normalizes a snapshot in place, preserving provider order.
func NormalizeEntries(entries []Entry) []Entry {
	for i := range entries {
		entries[i] = NormalizeEntry(entries[i])
	}
	return entries
}
