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

// Package watch reports source files that settle after a change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/source"
)

// DefaultDebounce is how long a file must stay quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

type Options struct {
	// Exts filters reported files by extension; empty reports all.
	Exts []string
	// Ignore holds base names of files and directories to skip.
	Ignore []string
	// SkipDirs holds directories whose contents are never reported, such
	// as the directory reports are written to.
	SkipDirs []string
	// SkipSuffixes drops files whose names end with any of these.
	SkipSuffixes []string
	Debounce     time.Duration
}

// Handler receives each settled path. Calls are sequential.
type Handler func(ctx context.Context, path string)

// Watcher watches a directory tree, adding new subdirectories as they
// appear.
type Watcher struct {
	root     string
	exts     []string
	ignore   map[string]bool
	skipDirs []string
	suffixes []string
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
}

func New(root string, opts Options) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "watch root")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("watch root %s is not a directory", root)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	w := &Watcher{
		root:     root,
		exts:     source.NormalizeExts(opts.Exts),
		ignore:   make(map[string]bool, len(opts.Ignore)),
		suffixes: opts.SkipSuffixes,
		debounce: opts.Debounce,
		watcher:  fw,
		pending:  make(map[string]time.Time),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	for _, n := range opts.Ignore {
		w.ignore[n] = true
	}
	for _, d := range opts.SkipDirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "skip dir %s", d)
		}
		w.skipDirs = append(w.skipDirs, abs)
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (w.ignore[d.Name()] || w.inSkipDir(path)) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Wrapf(err, "watch %s", path)
		}
		log.Debug("watch: added %s", path)
		return nil
	})
}

// Run delivers settled changes to handle until ctx is done, then releases
// the watcher.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	defer w.watcher.Close()
	tick := time.NewTicker(w.debounce / 4)
	defer tick.Stop()
	log.Info("watching %s", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watch: %v", err)
		case <-tick.C:
			for _, p := range w.settled() {
				if ctx.Err() != nil {
					return nil
				}
				handle(ctx, p)
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if w.skipped(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				log.Error("watch: %v", err)
			}
			return
		}
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !w.matches(ev.Name) {
		return
	}
	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

// settled returns pending paths quiet for the debounce period, sorted.
func (w *Watcher) settled() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	var out []string
	for p, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			out = append(out, p)
			delete(w.pending, p)
		}
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) skipped(path string) bool {
	if w.inSkipDir(path) {
		return true
	}
	for _, suf := range w.suffixes {
		if suf != "" && strings.HasSuffix(path, suf) {
			return true
		}
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.ignore[part] {
			return true
		}
	}
	return false
}

func (w *Watcher) inSkipDir(path string) bool {
	if len(w.skipDirs) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, d := range w.skipDirs {
		if abs == d || strings.HasPrefix(abs, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) matches(path string) bool {
	if len(w.exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.exts {
		if ext == e {
			return true
		}
	}
	return false
}
