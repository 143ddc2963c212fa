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
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/approval"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/source"
	"github.com/danula-rathnayaka/CodePulse-AI/llm"
)

// Load reads and parses a configuration from the given YAML file path, then
// applies defaults and environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}
	return Parse(data)
}

// Parse decodes YAML configuration data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config YAML")
	}
	applyDefaults(&cfg)
	applyEnv(&cfg, os.Getenv)
	return &cfg, nil
}

// Default returns the built-in configuration: two local Ollama models, the
// coder model for bug fixing and the chat model for everything else.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	applyEnv(&cfg, os.Getenv)
	return &cfg
}

// Candidates lists the default search paths in order.
func Candidates() []string {
	candidates := []string{"codepulse.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".codepulse", "config.yaml"))
	}
	return candidates
}

// LoadDefault loads path when set, otherwise the first existing file among
// Candidates, otherwise the built-in defaults.
func LoadDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	for _, p := range Candidates() {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return Default(), nil
}

func applyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.Addr == "" {
		s.Addr = DefaultAddr
	}
	if len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"*"}
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if len(cfg.Models) == 0 {
		cfg.Models = []llm.ModelConfig{
			{Name: "chat", APIType: llm.ModelTypeOllama, ModelName: DefaultChatModel},
			{Name: "coder", APIType: llm.ModelTypeOllama, ModelName: DefaultCoderModel},
		}
	}
	for i := range cfg.Models {
		m := &cfg.Models[i]
		if m.APIType == llm.ModelTypeOllama && m.BaseURL == "" {
			m.BaseURL = llm.DefaultOllamaURL
		}
		if m.Timeout == 0 {
			m.Timeout = llm.DefaultTimeout
		}
	}
	if cfg.Agents == nil {
		cfg.Agents = make(map[string]llm.AgentConfig)
	}
	fallback := cfg.Models[0].Name
	for _, kind := range []string{"bug_fix", "code_review", "case_analysis", "project_plan"} {
		a := cfg.Agents[kind]
		if a.WithModel == "" {
			a.WithModel = fallback
			if kind == "bug_fix" && hasModel(cfg, "coder") {
				a.WithModel = "coder"
			}
		}
		cfg.Agents[kind] = a
	}

	r := &cfg.Review
	if r.Concurrency <= 0 {
		r.Concurrency = 1
	}
	if r.Ignore == nil {
		r.Ignore = append([]string(nil), DefaultIgnore...)
	}
	if r.OutputDir == "" {
		r.OutputDir = DefaultOutputDir
	}
	if r.MaxBytes <= 0 {
		r.MaxBytes = source.DefaultMaxBytes
	}

	a := &cfg.Approval
	if a.ApproveToken == "" {
		a.ApproveToken = pipeline.DefaultApproveToken
	}
	if a.MaxRevisions == 0 {
		a.MaxRevisions = pipeline.DefaultMaxRevisions
	}
	if a.IdleTimeout == 0 {
		a.IdleTimeout = approval.DefaultIdleTimeout
	}
}

// apiKeyEnv names the environment variable holding each provider's key.
var apiKeyEnv = map[llm.ModelType]string{
	llm.ModelTypeOpenAI:    "OPENAI_API_KEY",
	llm.ModelTypeClaude:    "ANTHROPIC_API_KEY",
	llm.ModelTypeDeepSeek:  "DEEPSEEK_API_KEY",
	llm.ModelTypeDashScope: "DASHSCOPE_API_KEY",
	llm.ModelTypeARK:       "ARK_API_KEY",
	llm.ModelTypeGemini:    "GEMINI_API_KEY",
}

// applyEnv overrides file values with the environment.
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("CODEPULSE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := getenv("CODEPULSE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	host := getenv("OLLAMA_HOST")
	if host != "" && !strings.Contains(host, "://") {
		host = "http://" + host
	}
	model := getenv("CODEPULSE_MODEL")
	for i := range cfg.Models {
		m := &cfg.Models[i]
		if m.APIType == llm.ModelTypeOllama {
			if host != "" {
				m.BaseURL = host
			}
			if model != "" {
				m.ModelName = model
			}
		}
		if m.APIKey == "" {
			if env, ok := apiKeyEnv[m.APIType]; ok {
				m.APIKey = getenv(env)
			}
		}
	}
}

func hasModel(cfg *Config, name string) bool {
	_, ok := cfg.Model(name)
	return ok
}

// Model returns the model named name.
func (c *Config) Model(name string) (llm.ModelConfig, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return llm.ModelConfig{}, false
}

// AgentModel returns the model bound to an agent kind.
func (c *Config) AgentModel(kind string) (llm.ModelConfig, llm.AgentConfig, error) {
	a, ok := c.Agents[kind]
	if !ok {
		return llm.ModelConfig{}, a, errors.Errorf("no agent %q configured", kind)
	}
	m, ok := c.Model(a.WithModel)
	if !ok {
		return llm.ModelConfig{}, a, errors.Errorf("agent %q uses unknown model %q", kind, a.WithModel)
	}
	return m, a, nil
}
