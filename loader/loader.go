// Copyright 2025 Poiesic Systems
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


// Package loader stores uploaded source files under collision-free names
// before they are ingested.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/docqa/core"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

var ErrDirRequired = errors.New("upload directory required")

// File describes a stored upload.
type File struct {
	// Path is where the upload now lives.
	Path string
	// Filename is the name supplied by the client.
	Filename string
	// Ext is the normalized extension without a dot.
	Ext string
}

// Loader writes uploads into a directory through an afs.Service, so the
// upload area may be local disk or any afs-supported location.
type Loader struct {
	fs     afs.Service
	dir    string
	logger *slog.Logger
}

type Option func(*Loader) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger.With("component", "loader")
		return nil
	}
}

// WithFS replaces the default afs service.
func WithFS(fs afs.Service) Option {
	return func(l *Loader) error {
		if fs == nil {
			return errors.New("afs service required")
		}
		l.fs = fs
		return nil
	}
}

// New creates a loader storing files under dir.
func New(dir string, opts ...Option) (*Loader, error) {
	if dir == "" {
		return nil, ErrDirRequired
	}
	l := &Loader{
		fs:     afs.New(),
		dir:    dir,
		logger: slog.Default().With("component", "loader"),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Dir returns the upload directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Save validates filename's extension and copies r into the upload
// directory under a random hex name with the same extension.
func (l *Loader) Save(ctx context.Context, filename string, r io.Reader) (*File, error) {
	ext := core.NormalizeExt(filepath.Ext(filename))
	if !core.IsSupportedFormat(ext) {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, filepath.Ext(filename))
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext
	target := filepath.Join(l.dir, name)
	if err := l.fs.Upload(ctx, target, file.DefaultFileOsMode, r); err != nil {
		return nil, fmt.Errorf("store upload %s: %w", filename, err)
	}

	l.logger.Debug("stored upload", "filename", filename, "path", target)
	return &File{Path: target, Filename: filepath.Base(filename), Ext: ext}, nil
}

// Remove deletes a stored upload. A missing file is not an error.
func (l *Loader) Remove(ctx context.Context, path string) error {
	exists, err := l.fs.Exists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return l.fs.Delete(ctx, path)
}
