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

// Package output saves reports as markdown files.
package output

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
)

const (
	ReviewSuffix = "-code-analysis.md"
	BugFixSuffix = "-bug-fix.md"
)

// Dir writes files under one output directory, creating it on first use.
type Dir string

// Write stores text as name and returns the absolute path.
func (d Dir) Write(name, text string) (string, error) {
	if err := os.MkdirAll(string(d), 0o755); err != nil {
		return "", errors.Wrap(err, "create output dir")
	}
	p := filepath.Join(string(d), name)
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p, nil
	}
	return abs, nil
}

// WriteReviews stores each entry of a review report as
// <base name>-code-analysis.md, in report order. Files with the same base
// name overwrite each other.
func (d Dir) WriteReviews(r *pipeline.Report) ([]string, error) {
	var out []string
	for _, file := range r.Keys() {
		text, _ := r.Get(file)
		p, err := d.Write(filepath.Base(file)+ReviewSuffix, text)
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}
