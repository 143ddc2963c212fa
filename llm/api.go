/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package llm

import (
	"context"
	"strings"
	"time"
)

type ModelConfig struct {
	Name        string    `json:"name" yaml:"name"` // alias of the config, not endpoint!
	APIType     ModelType `json:"type" yaml:"type"`
	BaseURL     string    `json:"base_url" yaml:"base_url"`
	APIKey      string    `json:"api_key" yaml:"api_key"`
	ModelName   string    `json:"model_name" yaml:"model_name"` // the endpoint of the model, like `llama3.2`
	Temperature *float32  `json:"temperature" yaml:"temperature"`
	MaxTokens   int       `json:"max_tokens" yaml:"max_tokens"`
	// Timeout bounds one model call, default: 600s
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// Retries is the number of extra attempts on transport failure, default: 0
	Retries int `json:"retries" yaml:"retries"`
}

const (
	DefaultTimeout   = 600 * time.Second
	DefaultMaxTokens = 16 * 1024
)

func (m *ModelConfig) applyDefaults() {
	if m.MaxTokens == 0 {
		m.MaxTokens = DefaultMaxTokens
	}
	if m.Timeout == 0 {
		m.Timeout = DefaultTimeout
	}
	if m.Retries < 0 {
		m.Retries = 0
	}
}

type ModelType string

func NewModelType(t string) ModelType {
	switch strings.ToLower(t) {
	case "ollama":
		return ModelTypeOllama
	case "ark", "doubao":
		return ModelTypeARK
	case "openai", "gpt":
		return ModelTypeOpenAI
	case "claude", "anthropic":
		return ModelTypeClaude
	case "dashscope", "qwen", "tongyi":
		return ModelTypeDashScope
	case "deepseek":
		return ModelTypeDeepSeek
	case "gemini", "google":
		return ModelTypeGemini
	}
	return ModelTypeUnknown
}

const (
	ModelTypeUnknown   ModelType = ""
	ModelTypeOllama    ModelType = "ollama"
	ModelTypeARK       ModelType = "ark"
	ModelTypeOpenAI    ModelType = "openai"
	ModelTypeClaude    ModelType = "claude"
	ModelTypeDashScope ModelType = "dashscope"
	ModelTypeDeepSeek  ModelType = "deepseek"
	ModelTypeGemini    ModelType = "gemini"
)

// UnmarshalText accepts any alias known to NewModelType.
func (t *ModelType) UnmarshalText(b []byte) error {
	*t = NewModelType(string(b))
	if *t == ModelTypeUnknown && len(b) > 0 {
		*t = ModelType(strings.ToLower(string(b)))
	}
	return nil
}

// AgentConfig binds an agent kind to a named model.
type AgentConfig struct {
	WithModel string `json:"with_model" yaml:"with_model"`
	// SysPrompt is sent as the system message before every prompt.
	SysPrompt string `json:"sys_prompt" yaml:"sys_prompt"`
}

// Invoker is the model collaborator of every agent: one prompt in, one
// response out. Failures carry pipeline.KindModelUnavailable or
// pipeline.KindModelTimeout.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, prompt string) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
