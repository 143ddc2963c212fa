// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package source resolves input paths to text for the agents.
package source

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
)

// Source reads input files and discovers files under a root.
type Source interface {
	// Read returns the whole text of path. It fails with InputNotFound or
	// InputReadError.
	Read(ctx context.Context, path string) (string, error)
	// Discover lists files under root (or root itself when it is a file),
	// in lexical walk order. include holds extensions (".py" or "py"); an
	// empty include matches every file. exclude holds base names; a matching
	// directory is not descended into.
	Discover(ctx context.Context, root string, include, exclude []string) ([]string, error)
}

// DefaultMaxBytes bounds a single read.
const DefaultMaxBytes = 4 << 20

// Files is the filesystem-backed Source.
type Files struct {
	MaxBytes int64
}

var _ Source = (*Files)(nil)

// NewFiles returns a Files source with the default read bound.
func NewFiles() *Files {
	return &Files{MaxBytes: DefaultMaxBytes}
}

func (f *Files) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if path == "" {
		return "", pipeline.Errorf(pipeline.KindInputNotFound, "empty path")
	}
	fh, err := os.Open(path)
	if err != nil {
		return "", classify(err, path)
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return "", classify(err, path)
	}
	if info.IsDir() {
		return "", pipeline.Errorf(pipeline.KindInputReadError, "%s is a directory", path)
	}
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if info.Size() > limit {
		return "", pipeline.Errorf(pipeline.KindInputReadError, "%s is %d bytes, limit is %d", path, info.Size(), limit)
	}
	data, err := io.ReadAll(io.LimitReader(fh, limit))
	if err != nil {
		return "", classify(err, path)
	}
	return string(data), nil
}

func (f *Files) Discover(ctx context.Context, root string, include, exclude []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, classify(err, root)
	}
	exts := NormalizeExts(include)
	skip := toSet(exclude)

	if !info.IsDir() {
		if matchExt(root, exts) {
			return []string{root}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if skip[d.Name()] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if matchExt(path, exts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classify(err, root)
	}
	return files, nil
}

// NormalizeExts lower-cases extensions and gives each a leading dot.
func NormalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func matchExt(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	lower := strings.ToLower(path)
	for _, e := range exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

func toSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out[n] = true
		}
	}
	return out
}

func classify(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return pipeline.NewError(pipeline.KindInputNotFound, errors.Wrapf(err, "input %s", path))
	}
	return pipeline.NewError(pipeline.KindInputReadError, errors.Wrapf(err, "read %s", path))
}
