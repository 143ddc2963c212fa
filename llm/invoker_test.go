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
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
)

type fakeModel struct {
	calls atomic.Int32
	seen  [][]*schema.Message
	fn    func(ctx context.Context, n int) (*schema.Message, error)
}

func (f *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	n := int(f.calls.Add(1))
	f.seen = append(f.seen, input)
	return f.fn(ctx, n)
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func noBackoff(int) time.Duration { return 0 }

func TestChatInvoker_Invoke(t *testing.T) {
	m := &fakeModel{fn: func(ctx context.Context, n int) (*schema.Message, error) {
		return schema.AssistantMessage("No issues found.", nil), nil
	}}
	inv := NewChatInvoker("review", m, ChatInvokerOptions{SysPrompt: "be brief"})
	out, err := inv.Invoke(context.Background(), "review this")
	require.NoError(t, err)
	assert.Equal(t, "No issues found.", out)
	require.Len(t, m.seen, 1)
	require.Len(t, m.seen[0], 2)
	assert.Equal(t, schema.System, m.seen[0][0].Role)
	assert.Equal(t, "review this", m.seen[0][1].Content)
}

func TestChatInvoker_Timeout(t *testing.T) {
	m := &fakeModel{fn: func(ctx context.Context, n int) (*schema.Message, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	inv := NewChatInvoker("slow", m, ChatInvokerOptions{Timeout: 20 * time.Millisecond})
	_, err := inv.Invoke(context.Background(), "p")
	assert.Equal(t, pipeline.KindModelTimeout, pipeline.KindOf(err))
	assert.EqualValues(t, 1, m.calls.Load())
}

func TestChatInvoker_Unavailable(t *testing.T) {
	m := &fakeModel{fn: func(ctx context.Context, n int) (*schema.Message, error) {
		return nil, errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")
	}}
	inv := NewChatInvoker("down", m, ChatInvokerOptions{})
	_, err := inv.Invoke(context.Background(), "p")
	assert.Equal(t, pipeline.KindModelUnavailable, pipeline.KindOf(err))
	assert.EqualValues(t, 1, m.calls.Load(), "no retries by default")
}

func TestChatInvoker_Retries(t *testing.T) {
	m := &fakeModel{fn: func(ctx context.Context, n int) (*schema.Message, error) {
		if n < 3 {
			return nil, errors.New("read tcp: connection reset by peer")
		}
		return schema.AssistantMessage("ok", nil), nil
	}}
	inv := NewChatInvoker("flaky", m, ChatInvokerOptions{Retries: 2})
	inv.backoff = noBackoff
	out, err := inv.Invoke(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 3, m.calls.Load())
}

func TestChatInvoker_NonRetryable(t *testing.T) {
	m := &fakeModel{fn: func(ctx context.Context, n int) (*schema.Message, error) {
		return nil, errors.New("model \"llama9\" not found")
	}}
	inv := NewChatInvoker("bad", m, ChatInvokerOptions{Retries: 3})
	inv.backoff = noBackoff
	_, err := inv.Invoke(context.Background(), "p")
	assert.Equal(t, pipeline.KindModelUnavailable, pipeline.KindOf(err))
	assert.EqualValues(t, 1, m.calls.Load())
}

func TestChatInvoker_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &fakeModel{fn: func(ctx context.Context, n int) (*schema.Message, error) {
		cancel()
		return nil, context.Canceled
	}}
	inv := NewChatInvoker("c", m, ChatInvokerOptions{Retries: 2})
	_, err := inv.Invoke(ctx, "p")
	assert.Equal(t, pipeline.KindCanceled, pipeline.KindOf(err))
	assert.EqualValues(t, 1, m.calls.Load())
}

func TestNewModelType(t *testing.T) {
	cases := map[string]ModelType{
		"Ollama":    ModelTypeOllama,
		"gpt":       ModelTypeOpenAI,
		"anthropic": ModelTypeClaude,
		"qwen":      ModelTypeDashScope,
		"deepseek":  ModelTypeDeepSeek,
		"google":    ModelTypeGemini,
		"doubao":    ModelTypeARK,
		"llamacpp":  ModelTypeUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, NewModelType(in), in)
	}
}

func TestNewChatModel_Unsupported(t *testing.T) {
	_, err := NewChatModel(context.Background(), ModelConfig{Name: "x", APIType: "llamacpp"})
	assert.ErrorContains(t, err, "unsupported model type")
}

func TestNewChatModel_Ollama(t *testing.T) {
	cm, err := NewChatModel(context.Background(), ModelConfig{Name: "local", APIType: ModelTypeOllama, ModelName: "llama3.2"})
	require.NoError(t, err)
	assert.NotNil(t, cm)
}

// flakyGemini drops the first fails connections, then answers.
func flakyGemini(t *testing.T, fails int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= fails {
			if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
				conn.Close()
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"No issues found."}]}}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGeminiInvoker_Retries(t *testing.T) {
	srv, calls := flakyGemini(t, 1)
	inv, err := NewGeminiInvoker(context.Background(), ModelConfig{
		Name: "g", APIType: ModelTypeGemini, APIKey: "test", BaseURL: srv.URL, Retries: 1,
	}, "")
	require.NoError(t, err)
	inv.backoff = noBackoff

	out, err := inv.Invoke(context.Background(), "review this")
	require.NoError(t, err)
	assert.Equal(t, "No issues found.", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGeminiInvoker_NoRetries(t *testing.T) {
	srv, calls := flakyGemini(t, 1)
	inv, err := NewGeminiInvoker(context.Background(), ModelConfig{
		Name: "g", APIType: ModelTypeGemini, APIKey: "test", BaseURL: srv.URL,
	}, "")
	require.NoError(t, err)

	_, err = inv.Invoke(context.Background(), "review this")
	assert.Equal(t, pipeline.KindModelUnavailable, pipeline.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}
