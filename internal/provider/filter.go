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

package provider

import (
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Filter decides which directory entries a listing exposes.
//
// Precedence: excludes win over includes, includes win over ignore patterns
// and dotfile hiding.
type Filter struct {
	hideDotfiles bool
	includes     []string
	excludes     []string
	ignorer      *ignore.GitIgnore
}

// FilterConfig configures a Filter.
type FilterConfig struct {
	HideDotfiles   bool
	Includes       []string
	Excludes       []string
	IgnorePatterns []string // gitignore syntax
}

// NewFilter compiles cfg into a Filter.
func NewFilter(cfg FilterConfig) *Filter {
	f := &Filter{
		hideDotfiles: cfg.HideDotfiles,
		includes:     cfg.Includes,
		excludes:     cfg.Excludes,
	}
	if len(cfg.IgnorePatterns) > 0 {
		f.ignorer = ignore.CompileIgnoreLines(cfg.IgnorePatterns...)
	}
	return f
}

// Allow reports whether an entry with the given name should appear in
// listings.
func (f *Filter) Allow(name string, isDir bool) bool {
	for _, exc := range f.excludes {
		if name == exc {
			return false
		}
	}
	for _, inc := range f.includes {
		if name == inc {
			return true
		}
	}
	if f.ignorer != nil {
		match := name
		if isDir {
			match += "/"
		}
		if f.ignorer.MatchesPath(match) {
			return false
		}
	}
	if f.hideDotfiles && strings.HasPrefix(name, ".") {
		return false
	}
	return true
}
