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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danula-rathnayaka/CodePulse-AI/llm"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/agent"
)

const sampleYAML = `
server:
  addr: ":9000"
log:
  level: debug
models:
  - name: local
    type: ollama
    model_name: llama3.2
    timeout: 90s
  - name: fixer
    type: openai
    base_url: https://api.example.com/v1
    model_name: gpt-4o-mini
    retries: 2
agents:
  bug_fix:
    with_model: fixer
  code_review:
    with_model: local
    sys_prompt: You are a strict reviewer.
review:
  concurrency: 4
  extensions: [".py", "go"]
approval:
  max_revisions: 10
  idle_timeout: 5m
`

func noEnv(string) string { return "" }

func mustParse(t *testing.T, data string) *Config {
	t.Helper()
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)
	return cfg
}

func TestParse(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := mustParse(t, sampleYAML)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Models, 2)
	assert.Equal(t, llm.ModelTypeOllama, cfg.Models[0].APIType)
	assert.Equal(t, 90*time.Second, cfg.Models[0].Timeout)
	assert.Equal(t, llm.DefaultOllamaURL, cfg.Models[0].BaseURL)
	assert.Equal(t, "sk-test", cfg.Models[1].APIKey)
	assert.Equal(t, 2, cfg.Models[1].Retries)

	assert.Equal(t, "fixer", cfg.Agents["bug_fix"].WithModel)
	assert.Equal(t, "You are a strict reviewer.", cfg.Agents["code_review"].SysPrompt)
	// unset agents fall back to the first model
	assert.Equal(t, "local", cfg.Agents["project_plan"].WithModel)

	assert.Equal(t, 4, cfg.Review.Concurrency)
	assert.Equal(t, DefaultIgnore, cfg.Review.Ignore)
	assert.Equal(t, 10, cfg.Approval.MaxRevisions)
	assert.Equal(t, "/yes", cfg.Approval.ApproveToken)
	assert.Equal(t, 5*time.Minute, cfg.Approval.IdleTimeout)
	assert.Empty(t, Validate(cfg))
}

func TestDefault(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg, noEnv)

	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	require.Len(t, cfg.Models, 2)
	assert.Equal(t, "coder", cfg.Agents["bug_fix"].WithModel)
	assert.Equal(t, "chat", cfg.Agents["code_review"].WithModel)
	assert.Equal(t, "chat", cfg.Agents["case_analysis"].WithModel)
	assert.Equal(t, 50, cfg.Approval.MaxRevisions)
	assert.Empty(t, Validate(cfg))

	m, a, err := cfg.AgentModel("bug_fix")
	require.NoError(t, err)
	assert.Equal(t, DefaultCoderModel, m.ModelName)
	assert.Equal(t, "coder", a.WithModel)
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	env := map[string]string{
		"CODEPULSE_ADDR":  ":7000",
		"OLLAMA_HOST":     "gpu-box:11434",
		"CODEPULSE_MODEL": "qwen2.5-coder",
	}
	applyEnv(cfg, func(k string) string { return env[k] })

	assert.Equal(t, ":7000", cfg.Server.Addr)
	for _, m := range cfg.Models {
		assert.Equal(t, "http://gpu-box:11434", m.BaseURL)
		assert.Equal(t, "qwen2.5-coder", m.ModelName)
	}
}

func TestValidate(t *testing.T) {
	cfg := mustParse(t, `
models:
  - name: a
    type: bogus
  - name: a
    type: ollama
    model_name: x
agents:
  code_review:
    with_model: missing
  reviewer:
    with_model: a
prompts:
  nope: /tmp/nope.md
`)
	errs := Validate(cfg)
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	assert.Contains(t, fields, "models[0].type")
	assert.Contains(t, fields, "models[0].model_name")
	assert.Contains(t, fields, "models[1].name")
	assert.Contains(t, fields, "agents.code_review.with_model")
	assert.Contains(t, fields, "agents.reviewer")
	assert.Contains(t, fields, "prompts.nope")
	assert.Error(t, Check(cfg))
}

func TestLoadDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codepulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := LoadDefault(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestInvokersShareModel(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg, noEnv)

	invs, err := cfg.Invokers(context.Background())
	require.NoError(t, err)
	require.Len(t, invs, len(agent.Kinds))
	assert.Same(t, invs[agent.KindCodeReview], invs[agent.KindProjectPlan])
	assert.NotSame(t, invs[agent.KindCodeReview], invs[agent.KindBugFix])
}

func TestPromptOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "review.md")
	require.NoError(t, os.WriteFile(path, []byte("Review {{.file_name}}"), 0o644))

	cfg := &Config{Prompts: map[string]string{"review": path}}
	applyDefaults(cfg)
	opts, err := cfg.AgentOptions()
	require.NoError(t, err)
	out, err := opts.Prompts["review"].Render(context.Background(), map[string]any{"file_name": "a.py"})
	require.NoError(t, err)
	assert.Equal(t, "Review a.py", out)

	cfg.Prompts["review"] = filepath.Join(dir, "absent.md")
	_, err = cfg.AgentOptions()
	assert.Error(t, err)
}
