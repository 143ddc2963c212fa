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
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure so the embedding service can render it
// (HTTP status, exit code) without parsing messages.
type Kind string

const (
	KindInputNotFound         Kind = "InputNotFound"
	KindInputReadError        Kind = "InputReadError"
	KindModelUnavailable      Kind = "ModelUnavailable"
	KindModelTimeout          Kind = "ModelTimeout"
	KindStepContractViolation Kind = "StepContractViolation"
	KindUnboundedApprovalLoop Kind = "UnboundedApprovalLoop"
	KindCanceled              Kind = "Canceled"
	KindInvalidRequest        Kind = "InvalidRequest"
	KindInternal              Kind = "Internal"
)

// Error is the tagged failure surfaced by the engines. Collaborators create
// it without a Step; the engine fills Step in when it propagates.
type Error struct {
	Kind  Kind
	Step  string
	Cause error
}

func (e *Error) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("step %q: %s: %v", e.Step, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError tags cause with kind.
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Errorf tags a formatted message with kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: errors.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" when
// err is nil or untagged.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// StepOf returns the failing step recorded in err, if any.
func StepOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Step
	}
	return ""
}

// Tag attaches step to err unless it already names one. Collaborator
// failures outside a pipeline run use it to report where they happened.
func Tag(step string, err error) *Error { return tag(step, err) }

// tag attaches step to err. Untagged errors are classified: context errors
// become Canceled (or ModelTimeout for deadlines), the rest Internal.
func tag(step string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		if pe.Step != "" {
			return pe
		}
		return &Error{Kind: pe.Kind, Step: step, Cause: pe.Cause}
	}
	kind := KindInternal
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindModelTimeout
	case errors.Is(err, context.Canceled):
		kind = KindCanceled
	}
	return &Error{Kind: kind, Step: step, Cause: err}
}

func contractViolation(step string, format string, args ...any) *Error {
	return &Error{
		Kind:  KindStepContractViolation,
		Step:  step,
		Cause: errors.Errorf(format, args...),
	}
}
