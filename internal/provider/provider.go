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

// Package provider serves directory snapshots over the wire protocol.
//
// The lister walks a billy filesystem so tests can run against an in-memory
// tree while the server command exports a real OS directory.
package provider

import (
	"os"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"

	"lazysync/internal/common"
	"lazysync/internal/wire"
)

// Lister produces wire responses for directory listing requests.
type Lister struct {
	fs     billy.Filesystem
	filter *Filter
	log    *logrus.Entry
}

// NewLister creates a lister over fs. filter may be nil (no filtering).
func NewLister(fs billy.Filesystem, filter *Filter) *Lister {
	return &Lister{
		fs:     fs,
		filter: filter,
		log:    logrus.WithField("component", "provider"),
	}
}

// List reads one directory and returns the response to put on the wire.
// Failures are encoded as error responses, never as a dropped request: the
// client correlates by path and must always hear back.
func (l *Lister) List(reqPath string) *wire.Response {
	p := common.NormalizePath(reqPath)
	if p == "" {
		return wire.ErrorResponse(reqPath, wire.CodeOther, "empty path")
	}

	info, err := l.fs.Lstat(p)
	if err != nil {
		l.log.WithError(err).WithField("path", p).Debug("stat failed")
		return errorFor(p, err)
	}
	if !info.IsDir() {
		return wire.ErrorResponse(p, wire.CodeOther, "not a directory")
	}

	infos, err := l.fs.ReadDir(p)
	if err != nil {
		l.log.WithError(err).WithField("path", p).Debug("listing failed")
		return errorFor(p, err)
	}

	entries := make([]wire.Entry, 0, len(infos))
	for _, info := range infos {
		if l.filter != nil && !l.filter.Allow(info.Name(), info.IsDir()) {
			continue
		}
		entries = append(entries, entryFor(info))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	wire.NormalizeEntries(entries)
	return &wire.Response{Path: p, Entries: entries}
}

func entryFor(info os.FileInfo) wire.Entry {
	mode := info.Mode()
	typ := wire.TypeFile
	switch {
	case mode&os.ModeSymlink != 0:
		typ = wire.TypeSymlink
	case mode.IsDir():
		typ = wire.TypeDir
	case !mode.IsRegular():
		typ = wire.TypeOther
	}
	return wire.Entry{
		Name:        info.Name(),
		Type:        typ,
		IsDir:       mode.IsDir(),
		Size:        info.Size(),
		Permissions: mode.String(),
		Modified:    info.ModTime().Format("2006-01-02 15:04:05"),
	}
}

func errorFor(path string, err error) *wire.Response {
	switch {
	case os.IsNotExist(err):
		return wire.ErrorResponse(path, wire.CodeNotFound, "")
	case os.IsPermission(err):
		return wire.ErrorResponse(path, wire.CodePermissionDenied, "")
	default:
		return wire.ErrorResponse(path, wire.CodeOther, err.Error())
	}
}
