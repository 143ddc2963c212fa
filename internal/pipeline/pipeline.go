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
	"time"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
)

// Pipeline runs a fixed, ordered list of steps. The first failure aborts the
// run unless Policy asks for a retry.
type Pipeline struct {
	Name   string
	Steps  []Step
	Policy Policy
}

// New returns a pipeline with the default AbortPolicy.
func New(name string, steps ...Step) *Pipeline {
	return &Pipeline{Name: name, Steps: steps}
}

// Validate checks the step list against the inputs of st: every step must be
// non-nil with a unique name, and everything a step requires must be an input
// or a field produced by an earlier step.
func (p *Pipeline) Validate(st *State) error {
	available := make(map[string]bool)
	for k := range st.inputs {
		available[k] = true
	}
	for k := range st.fields {
		available[k] = true
	}
	seen := make(map[string]bool, len(p.Steps))
	for i, step := range p.Steps {
		if step == nil {
			return Errorf(KindStepContractViolation, "pipeline %s: step %d is nil", p.Name, i)
		}
		name := step.Name()
		if seen[name] {
			return contractViolation(name, "pipeline %s: duplicate step name", p.Name)
		}
		seen[name] = true
		c := step.Contract()
		for _, req := range c.Requires {
			if !available[req] {
				return contractViolation(name, "requires %q which no earlier step produces", req)
			}
		}
		for _, prod := range c.Produces {
			available[prod] = true
		}
	}
	return nil
}

// Run executes all steps starting from st and returns the terminal state.
// On failure it returns a *Error naming the failing step and no state.
func (p *Pipeline) Run(ctx context.Context, st *State) (*State, error) {
	if st == nil {
		return nil, Errorf(KindInvalidRequest, "pipeline %s: initial state is nil", p.Name)
	}
	if err := p.Validate(st); err != nil {
		return nil, err
	}
	policy := p.Policy
	if policy == nil {
		policy = AbortPolicy{}
	}
	log.Debug("pipeline %s: run %s started with %d steps", p.Name, st.RunID, len(p.Steps))
	current := st
	for _, step := range p.Steps {
		next, err := p.runStep(ctx, policy, step, current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	log.Debug("pipeline %s: run %s finished", p.Name, st.RunID)
	return current, nil
}

func (p *Pipeline) runStep(ctx context.Context, policy Policy, step Step, st *State) (*State, error) {
	before := TakeSnapshot(st)
	records := append([]StepRecord(nil), st.History...)

	attempt := 0
	for {
		attempt++
		if err := ctx.Err(); err != nil {
			return nil, tag(step.Name(), err)
		}
		start := time.Now()
		next, err := step.Run(ctx, st)
		if err == nil {
			err = checkOutput(step, st, next, before)
		}
		rec := StepRecord{
			StepName: step.Name(),
			Attempt:  attempt,
			Time:     start,
			Duration: time.Since(start),
		}
		if err == nil {
			rec.Status = StepOK
			out := next.Clone()
			out.History = append(records, rec)
			log.Debug("pipeline %s: step %s ok (attempt %d, %s)", p.Name, step.Name(), attempt, rec.Duration)
			return out, nil
		}

		perr := tag(step.Name(), err)
		rec.Status = StepFailed
		rec.Error = perr.Error()
		records = append(records, rec)

		if perr.Kind == KindStepContractViolation {
			log.Error("pipeline %s: %v", p.Name, perr)
			return nil, perr
		}
		if policy.OnStepFailure(ctx, step, st, perr, attempt) != DecisionRetry {
			log.Error("pipeline %s: aborted at step %s (attempt %d): %v", p.Name, step.Name(), attempt, perr.Cause)
			return nil, perr
		}
		records[len(records)-1].Status = StepRetry
		log.Info("pipeline %s: retrying step %s after: %v", p.Name, step.Name(), perr.Cause)
	}
}

// checkOutput enforces the pass-through discipline on a step's result.
func checkOutput(step Step, in, out *State, before Snapshot) error {
	name := step.Name()
	if out == nil {
		return contractViolation(name, "step returned a nil state")
	}
	if out == in {
		if len(step.Contract().Produces) > 0 {
			return contractViolation(name, "step returned its input state without producing %v", step.Contract().Produces)
		}
		return nil
	}
	if out.RunID != in.RunID || out.Kind != in.Kind {
		return contractViolation(name, "run identity changed")
	}
	c := step.Contract()
	if err := verifyPassThrough(name, c, before, TakeSnapshot(out)); err != nil {
		return err
	}
	for _, prod := range c.Produces {
		if _, ok := out.fields[prod]; !ok {
			return contractViolation(name, "declared field %q was not produced", prod)
		}
	}
	return nil
}
