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

package pipeline

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
)

// DefaultApproveToken is the reply that accepts a draft.
const DefaultApproveToken = "/yes"

// DefaultMaxRevisions caps the number of generations per session.
const DefaultMaxRevisions = 50

// Phase is the approval loop state.
type Phase string

const (
	PhaseGenerating       Phase = "GENERATING"
	PhaseAwaitingApproval Phase = "AWAITING_APPROVAL"
	PhaseFinalized        Phase = "FINALIZED"
)

// Revision is one rejected draft and the feedback that rejected it.
type Revision struct {
	Draft    string `json:"draft"`
	Feedback string `json:"feedback"`
}

// Session is the state of one approval loop. Revision always equals
// len(History).
type Session struct {
	ID       string     `json:"id"`
	Draft    string     `json:"draft"`
	Revision int        `json:"revision"`
	History  []Revision `json:"history"`
	Phase    Phase      `json:"phase"`
}

// Copy returns a copy that shares nothing with s.
func (s *Session) Copy() Session {
	out := *s
	out.History = append([]Revision(nil), s.History...)
	return out
}

// Generator produces a draft from the seed text and every earlier revision.
type Generator interface {
	Generate(ctx context.Context, seed string, history []Revision) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, seed string, history []Revision) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, seed string, history []Revision) (string, error) {
	return f(ctx, seed, history)
}

// Signal is the external approver. Next presents the session's current draft
// and blocks for one line of input.
type Signal interface {
	Next(ctx context.Context, s Session) (string, error)
}

// SignalFunc adapts a function to Signal.
type SignalFunc func(ctx context.Context, s Session) (string, error)

func (f SignalFunc) Next(ctx context.Context, s Session) (string, error) { return f(ctx, s) }

// IsApproval reports whether input accepts a draft: surrounding whitespace
// is ignored and the comparison with token is case-insensitive. Anything else,
// including a slash-less "yes", is feedback.
func IsApproval(input, token string) bool {
	if token == "" {
		token = DefaultApproveToken
	}
	return strings.EqualFold(strings.TrimSpace(input), token)
}

// ApprovalLoop regenerates a draft until the signal approves it.
type ApprovalLoop struct {
	Name         string
	Generator    Generator
	ApproveToken string
	// MaxRevisions bounds the number of generations. Zero means
	// DefaultMaxRevisions; a negative value removes the bound.
	MaxRevisions int
}

func (l *ApprovalLoop) limit() int {
	if l.MaxRevisions == 0 {
		return DefaultMaxRevisions
	}
	return l.MaxRevisions
}

// Run drives the loop for seed and returns the approved draft.
func (l *ApprovalLoop) Run(ctx context.Context, seed string, sig Signal) (string, error) {
	if l.Generator == nil || sig == nil {
		return "", Errorf(KindInvalidRequest, "approval loop %s: generator and signal are required", l.Name)
	}
	genStep := l.Name + "/generate"
	reviewStep := l.Name + "/review"
	limit := l.limit()

	s := &Session{ID: uuid.NewString(), Phase: PhaseGenerating}
	for {
		if err := ctx.Err(); err != nil {
			return "", tag(genStep, err)
		}
		if limit > 0 && s.Revision >= limit {
			return "", &Error{
				Kind:  KindUnboundedApprovalLoop,
				Step:  reviewStep,
				Cause: errors.Errorf("no approval after %d generations", limit),
			}
		}

		draft, err := l.Generator.Generate(ctx, seed, append([]Revision(nil), s.History...))
		if err != nil {
			return "", tag(genStep, err)
		}
		s.Draft = draft
		s.Phase = PhaseAwaitingApproval
		log.Debug("approval %s: session %s revision %d awaiting approval", l.Name, s.ID, s.Revision)

		input, err := sig.Next(ctx, s.Copy())
		if err != nil {
			return "", tag(reviewStep, err)
		}
		if IsApproval(input, l.ApproveToken) {
			s.Phase = PhaseFinalized
			log.Info("approval %s: session %s approved at revision %d", l.Name, s.ID, s.Revision)
			return s.Draft, nil
		}

		s.History = append(s.History, Revision{Draft: s.Draft, Feedback: input})
		s.Revision++
		s.Phase = PhaseGenerating
	}
}
