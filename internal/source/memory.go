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

package source

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
)

// Memory is an in-memory Source keyed by slash-separated path. Paths listed
// in Broken fail to read with InputReadError. It also counts reads.
type Memory struct {
	Files  map[string]string
	Broken map[string]bool

	mu    sync.Mutex
	reads []string
}

var _ Source = (*Memory)(nil)

func (m *Memory) Read(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.reads = append(m.reads, p)
	m.mu.Unlock()
	if m.Broken[p] {
		return "", pipeline.Errorf(pipeline.KindInputReadError, "read %s: permission denied", p)
	}
	text, ok := m.Files[p]
	if !ok {
		return "", pipeline.Errorf(pipeline.KindInputNotFound, "input %s: file does not exist", p)
	}
	return text, nil
}

func (m *Memory) Discover(ctx context.Context, root string, include, exclude []string) ([]string, error) {
	exts := NormalizeExts(include)
	skip := toSet(exclude)
	if _, ok := m.Files[root]; ok || m.Broken[root] {
		if matchExt(root, exts) {
			return []string{root}, nil
		}
		return nil, nil
	}
	prefix := strings.TrimSuffix(root, "/") + "/"
	var out []string
	for p := range m.all() {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		if excluded(strings.TrimPrefix(p, prefix), skip) || !matchExt(p, exts) {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 && !m.hasDir(prefix) {
		return nil, pipeline.Errorf(pipeline.KindInputNotFound, "input %s: no such file or directory", root)
	}
	sort.Strings(out)
	return out, nil
}

// Reads returns the paths read so far, in order.
func (m *Memory) Reads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reads...)
}

func (m *Memory) all() map[string]bool {
	out := make(map[string]bool, len(m.Files)+len(m.Broken))
	for p := range m.Files {
		out[p] = true
	}
	for p := range m.Broken {
		out[p] = true
	}
	return out
}

func (m *Memory) hasDir(prefix string) bool {
	for p := range m.all() {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func excluded(rel string, skip map[string]bool) bool {
	for _, part := range strings.Split(path.Clean(rel), "/") {
		if skip[part] {
			return true
		}
	}
	return false
}
