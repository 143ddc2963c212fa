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

	"github.com/pkg/errors"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/source"
	"github.com/danula-rathnayaka/CodePulse-AI/llm"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/agent"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/prompt"
)

// Invokers builds one model invoker per agent kind. Agents that share a
// model and a system prompt share the invoker.
func (c *Config) Invokers(ctx context.Context) (map[agent.Kind]llm.Invoker, error) {
	type key struct{ model, sys string }
	built := make(map[key]llm.Invoker)
	out := make(map[agent.Kind]llm.Invoker, len(agent.Kinds))
	for _, kind := range agent.Kinds {
		m, a, err := c.AgentModel(string(kind))
		if err != nil {
			return nil, err
		}
		k := key{m.Name, a.SysPrompt}
		inv, ok := built[k]
		if !ok {
			inv, err = llm.NewInvoker(ctx, m, a.SysPrompt)
			if err != nil {
				return nil, errors.Wrapf(err, "agent %s", kind)
			}
			built[k] = inv
		}
		log.Debug("agent %s uses model %s (%s %s)", kind, m.Name, m.APIType, m.ModelName)
		out[kind] = inv
	}
	return out, nil
}

// PromptOverrides loads the prompt files named in the config.
func (c *Config) PromptOverrides() (map[string]*prompt.Template, error) {
	out := make(map[string]*prompt.Template, len(c.Prompts))
	for name, path := range c.Prompts {
		t, err := prompt.LoadTemplate(name, path)
		if err != nil {
			return nil, errors.Wrapf(err, "prompt %s", name)
		}
		out[name] = t
	}
	return out, nil
}

// AgentOptions returns service options from the config.
func (c *Config) AgentOptions() (agent.Options, error) {
	prompts, err := c.PromptOverrides()
	if err != nil {
		return agent.Options{}, err
	}
	return agent.Options{
		Concurrency:  c.Review.Concurrency,
		MaxRevisions: c.Approval.MaxRevisions,
		ApproveToken: c.Approval.ApproveToken,
		Prompts:      prompts,
	}, nil
}

// NewService validates the config and wires the agent service to the local
// filesystem and the configured models.
func NewService(ctx context.Context, c *Config) (*agent.Service, error) {
	if err := Check(c); err != nil {
		return nil, err
	}
	invokers, err := c.Invokers(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := c.AgentOptions()
	if err != nil {
		return nil, err
	}
	return agent.NewService(&source.Files{MaxBytes: c.Review.MaxBytes}, invokers, opts), nil
}
