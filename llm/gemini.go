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
	"time"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
)

var _ Invoker = (*GeminiInvoker)(nil)

// GeminiInvoker calls the Gemini API through the genai SDK.
type GeminiInvoker struct {
	cfg     ModelConfig
	client  *genai.Client
	gen     *genai.GenerateContentConfig
	backoff func(attempt int) time.Duration
}

func NewGeminiInvoker(ctx context.Context, m ModelConfig, sysPrompt string) (*GeminiInvoker, error) {
	m.applyDefaults()
	if m.ModelName == "" {
		m.ModelName = "gemini-2.0-flash"
	}
	cc := &genai.ClientConfig{
		APIKey:  m.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if m.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: m.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GenAI client")
	}
	gen := &genai.GenerateContentConfig{
		Temperature:     m.Temperature,
		MaxOutputTokens: int32(m.MaxTokens),
	}
	if sysPrompt != "" {
		gen.SystemInstruction = genai.NewContentFromText(sysPrompt, genai.RoleUser)
	}
	return &GeminiInvoker{cfg: m, client: client, gen: gen, backoff: expBackoff}, nil
}

// Invoke retries transport failures like ChatInvoker does.
func (g *GeminiInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	log.Debug("[User] %s", prompt)
	return retryCall(ctx, "gemini "+g.cfg.ModelName, g.cfg.Retries, g.backoff, func(ctx context.Context) (string, error) {
		return g.generate(ctx, prompt)
	})
}

func (g *GeminiInvoker) generate(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(attemptCtx, g.cfg.ModelName, genai.Text(prompt), g.gen)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", errors.Wrapf(context.DeadlineExceeded, "gemini %s: no response within %s", g.cfg.ModelName, g.cfg.Timeout)
		}
		return "", errors.Wrapf(err, "gemini %s", g.cfg.ModelName)
	}
	return resp.Text(), nil
}
