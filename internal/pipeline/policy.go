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
)

// Policy decides what to do when a step fails. It only schedules; a retried
// step starts again from the state it received, so a failed attempt leaves
// nothing behind.
type Policy interface {
	OnStepFailure(
		ctx context.Context,
		step Step,
		st *State,
		err error,
		attempt int,
	) Decision
}

// Decision is the action to take after a step failure.
type Decision string

const (
	DecisionRetry Decision = "retry"
	DecisionAbort Decision = "abort"
)

// AbortPolicy aborts on the first failure. It is the default.
type AbortPolicy struct{}

// OnStepFailure implements Policy.
func (AbortPolicy) OnStepFailure(context.Context, Step, *State, error, int) Decision {
	return DecisionAbort
}

// RetryPolicy retries model failures up to MaxRetry extra attempts. Input
// errors, contract violations and cancellation always abort.
type RetryPolicy struct {
	MaxRetry int
}

// OnStepFailure implements Policy.
func (p RetryPolicy) OnStepFailure(
	ctx context.Context,
	step Step,
	st *State,
	err error,
	attempt int,
) Decision {
	if ctx.Err() != nil || !retryable(err) {
		return DecisionAbort
	}
	if attempt > p.MaxRetry {
		return DecisionAbort
	}
	return DecisionRetry
}

func retryable(err error) bool {
	switch KindOf(err) {
	case KindModelUnavailable, KindModelTimeout:
		return true
	}
	return false
}
