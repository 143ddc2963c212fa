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

package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
)

func TestWriteReviews(t *testing.T) {
	dir := Dir(filepath.Join(t.TempDir(), "outputs"))
	r := pipeline.NewReport()
	r.Set("/src/app.py", "No issues found.")
	r.Set("/src/lib/util.js", "Use const.")

	paths, err := dir.WriteReviews(r)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "app.py-code-analysis.md", filepath.Base(paths[0]))
	assert.True(t, filepath.IsAbs(paths[1]))

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "Use const.", string(data))
}

func TestWrite_BadDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err := Dir(f).Write("x.md", "x")
	assert.Error(t, err)
}
