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

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/config"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/output"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/source"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/watch"
	"github.com/danula-rathnayaka/CodePulse-AI/llm"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/agent"
	"github.com/danula-rathnayaka/CodePulse-AI/version"
)

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// fakeModel replaces the configured models with reply for the test.
func fakeModel(t *testing.T, reply string) {
	t.Helper()
	inv := llm.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		return reply, nil
	})
	prev := newService
	newService = func(ctx context.Context, c *config.Config) (*agent.Service, error) {
		invokers := make(map[agent.Kind]llm.Invoker, len(agent.Kinds))
		for _, k := range agent.Kinds {
			invokers[k] = inv
		}
		return agent.NewService(source.NewFiles(), invokers, agent.Options{}), nil
	}
	t.Cleanup(func() { newService = prev })
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "codepulse.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestVersionCommand(t *testing.T) {
	version.Version = "test-version"
	out, err := executeCommand("version")
	require.NoError(t, err)
	assert.Contains(t, out, "test-version")
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	require.NoError(t, err)
	for _, sub := range []string{"serve", "review", "fix", "cases", "plan", "mcp", "watch", "config", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestConfigShowMasksKeys(t *testing.T) {
	path := writeConfig(t, `
models:
  - name: remote
    type: openai
    model_name: gpt-4o-mini
    api_key: sk-secret
`)
	out, err := executeCommand("config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-4o-mini")
	assert.NotContains(t, out, "sk-secret")
	assert.Equal(t, "sk-secret", cfg.Models[0].APIKey)
}

func TestConfigValidate(t *testing.T) {
	out, err := executeCommand("config", "validate", "--config", writeConfig(t, "log:\n  level: info\n"))
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid.")

	out, err = executeCommand("config", "validate", "--config", writeConfig(t, `
models:
  - name: m
    type: bogus
`))
	require.Error(t, err)
	assert.Contains(t, out, "models[0].type")
}

func TestReviewCommand(t *testing.T) {
	fakeModel(t, "No issues found.")
	dir := t.TempDir()
	writeFile(t, dir, "proj/app.py", "print(1)\n")
	writeFile(t, dir, "proj/node_modules/dep.py", "x = 1\n")
	writeFile(t, dir, "proj/README.md", "# proj\n")
	outDir := filepath.Join(dir, "outputs")
	path := writeConfig(t, "log:\n  level: error\n")

	out, err := executeCommand("review", filepath.Join(dir, "proj"), "--config", path,
		"--ext", ".py", "--ignore", "node_modules", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Code analysis report for file app.py saved at:")
	assert.NotContains(t, out, "dep.py")

	data, err := os.ReadFile(filepath.Join(outDir, "app.py-code-analysis.md"))
	require.NoError(t, err)
	assert.Equal(t, "No issues found.", string(data))

	_, err = executeCommand("review", filepath.Join(dir, "missing"), "--config", path, "--out", outDir)
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))
}

func TestFixCommand(t *testing.T) {
	fakeModel(t, "add the missing parenthesis")
	dir := t.TempDir()
	file := writeFile(t, dir, "bad.py", "print(1\n")

	out, err := executeCommand("fix", file, "--config", writeConfig(t, "log:\n  level: error\n"),
		"--error", "SyntaxError: unexpected EOF", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Bug Fix Report")
	assert.Contains(t, out, "SyntaxError: unexpected EOF")
	_, err = os.Stat(filepath.Join(dir, "bad.py-bug-fix.md"))
	assert.NoError(t, err)
}

func TestCasesWithPlan(t *testing.T) {
	fakeModel(t, "1. build checkout")
	dir := t.TempDir()
	study := writeFile(t, dir, "study.txt", "The shop loses orders at checkout.")

	prev := consoleIn
	consoleIn = strings.NewReader("be specific\n/yes\n/YES\n")
	t.Cleanup(func() { consoleIn = prev })

	out, err := executeCommand("cases", study, "--config", writeConfig(t, "log:\n  level: error\n"), "--plan", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "Draft (revision 1)")
	assert.Contains(t, out, "Approved task list:")
	assert.Contains(t, out, "Approved project plan:")
}

func TestWatchSkipsOwnReports(t *testing.T) {
	root := t.TempDir()
	outDir := filepath.Join(root, "outputs")
	var calls atomic.Int32
	inv := llm.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "looks fine", nil
	})
	invokers := make(map[agent.Kind]llm.Invoker, len(agent.Kinds))
	for _, k := range agent.Kinds {
		invokers[k] = inv
	}
	svc := agent.NewService(source.NewFiles(), invokers, agent.Options{})

	opts := watchOptions(nil, config.Default().Review.Ignore, outDir)
	opts.Debounce = 20 * time.Millisecond
	w, err := watch.New(root, opts)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, reviewOnChange(svc, output.Dir(outDir), io.Discard)) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	src := filepath.Join(root, "a.py")
	require.NoError(t, os.WriteFile(src, []byte("x = 1\n"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(src, []byte("x = 2\n"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 3*time.Second, 10*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.py"+output.ReviewSuffix, entries[0].Name())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 2, exitCode(pipeline.Errorf(pipeline.KindInvalidRequest, "bad")))
	assert.Equal(t, 4, exitCode(pipeline.Errorf(pipeline.KindModelTimeout, "slow")))
	assert.Equal(t, 5, exitCode(pipeline.Errorf(pipeline.KindUnboundedApprovalLoop, "cap")))
}
