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

// Package config loads codepulse.yaml.
package config

import (
	"time"

	"github.com/danula-rathnayaka/CodePulse-AI/llm"
)

// Config is the top-level configuration.
type Config struct {
	Server   ServerConfig               `yaml:"server"`
	Log      LogConfig                  `yaml:"log"`
	Models   []llm.ModelConfig          `yaml:"models"`
	Agents   map[string]llm.AgentConfig `yaml:"agents"`
	Review   ReviewConfig               `yaml:"review"`
	Approval ApprovalConfig             `yaml:"approval"`
	// Prompts maps a prompt name (review, analyze_error, suggest_fix,
	// validate_fix, case_analysis, project_plan) to a template file.
	Prompts map[string]string `yaml:"prompts"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RequestTimeout bounds one synchronous pipeline request.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ReviewConfig struct {
	Concurrency int      `yaml:"concurrency"`
	Extensions  []string `yaml:"extensions"`
	Ignore      []string `yaml:"ignore"`
	OutputDir   string   `yaml:"output_dir"`
	MaxBytes    int64    `yaml:"max_bytes"`
}

type ApprovalConfig struct {
	ApproveToken string        `yaml:"approve_token"`
	MaxRevisions int           `yaml:"max_revisions"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

const (
	DefaultAddr            = ":8000"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRequestTimeout  = 30 * time.Minute
	DefaultOutputDir       = "outputs"
	DefaultChatModel       = "llama3.2"
	DefaultCoderModel      = "deepseek-coder:1.3b"
)

// DefaultIgnore are names skipped by folder review when none are configured.
var DefaultIgnore = []string{".git", "node_modules", "venv", ".venv", "__pycache__", "dist", "build"}
