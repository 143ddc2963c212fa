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

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
)

var _ Invoker = (*ChatInvoker)(nil)

// ChatInvoker sends a prompt as a single user message to an eino chat model.
type ChatInvoker struct {
	name    string
	model   ChatModel
	opts    ChatInvokerOptions
	backoff func(attempt int) time.Duration
}

type ChatInvokerOptions struct {
	SysPrompt string        `json:"-"`
	Retries   int           `json:"retries"` // Number of extra attempts, default: 0
	Timeout   time.Duration `json:"timeout"` // Per-attempt timeout, default: 600s
}

func NewChatInvoker(name string, m ChatModel, opts ChatInvokerOptions) *ChatInvoker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &ChatInvoker{
		name:    name,
		model:   m,
		opts:    opts,
		backoff: expBackoff,
	}
}

// Exponential backoff: wait 1s, 2s, 4s... capped at 10s
func expBackoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt-1)) * time.Second
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

func (p *ChatInvoker) messages(input string) []*schema.Message {
	msgs := make([]*schema.Message, 0, 2)
	if p.opts.SysPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(p.opts.SysPrompt))
	}
	return append(msgs, schema.UserMessage(input))
}

func (p *ChatInvoker) Invoke(ctx context.Context, input string) (string, error) {
	log.Debug("[User] %s", input)
	msgs := p.messages(input)
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      p.name,
		Component: components.ComponentOfChatModel,
	}, CallbackHandler{})

	return retryCall(ctx, p.name, p.opts.Retries, p.backoff, func(ctx context.Context) (string, error) {
		return p.generate(ctx, msgs)
	})
}

// retryCall runs call up to retries+1 times, waiting backoff between
// attempts that failed with a transport error.
func retryCall(ctx context.Context, name string, retries int, backoff func(int) time.Duration, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			log.Info("retrying model %s (attempt %d/%d)", name, attempt+1, retries+1)
			select {
			case <-ctx.Done():
				return "", classifyModelError(ctx, lastErr)
			case <-time.After(backoff(attempt)):
			}
		}

		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			break
		}
		log.Warn("retryable model error (attempt %d/%d): %v", attempt+1, retries+1, err)
	}
	log.Error("model %s failed: %v", name, lastErr)
	return "", classifyModelError(ctx, lastErr)
}

func (p *ChatInvoker) generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()
	out, err := p.model.Generate(attemptCtx, msgs)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", errors.Wrapf(context.DeadlineExceeded, "model %s: no response within %s", p.name, p.opts.Timeout)
		}
		return "", errors.Wrapf(err, "model %s", p.name)
	}
	if out == nil {
		return "", errors.Errorf("model %s returned no message", p.name)
	}
	return out.Content, nil
}

// Check if error is retryable (timeout, connection reset, etc.)
func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	s := err.Error()
	for _, frag := range []string{
		"timeout",
		"connection reset",
		"connection refused",
		"operation timed out",
		"read tcp",
		"write tcp",
		"EOF",
	} {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}

// classifyModelError tags a model failure with its pipeline kind.
func classifyModelError(ctx context.Context, err error) error {
	if err == nil {
		err = ctx.Err()
	}
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return pe
	}
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return pipeline.NewError(pipeline.KindCanceled, err)
	case errors.Is(err, context.DeadlineExceeded),
		strings.Contains(err.Error(), "timeout"),
		strings.Contains(err.Error(), "timed out"):
		return pipeline.NewError(pipeline.KindModelTimeout, err)
	}
	return pipeline.NewError(pipeline.KindModelUnavailable, err)
}
