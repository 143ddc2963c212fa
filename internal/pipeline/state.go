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
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"
)

// State is the record a pipeline run threads through its steps. Inputs are
// fixed at creation; fields accumulate one step at a time. A State is never
// modified in place: With and WithFields return a copy, so the value a step
// received is still intact when the engine checks what the step changed.
type State struct {
	RunID string
	Kind  string

	inputs map[string]string
	fields map[string]string

	History []StepRecord
}

// StepRecord is an immutable log entry for one step execution.
type StepRecord struct {
	StepName string
	Attempt  int
	Status   StepStatus
	Error    string
	Time     time.Time
	Duration time.Duration
}

// StepStatus is the outcome of a step run.
type StepStatus string

const (
	StepOK     StepStatus = "ok"
	StepFailed StepStatus = "failed"
	StepRetry  StepStatus = "retry"
)

// NewState returns an initial state for kind with the given inputs and no
// fields.
func NewState(kind string, inputs map[string]string) *State {
	return &State{
		RunID:  uuid.NewString(),
		Kind:   kind,
		inputs: maps.Clone(nonNil(inputs)),
		fields: map[string]string{},
	}
}

// Input returns an input ref set at creation.
func (s *State) Input(name string) (string, bool) {
	v, ok := s.inputs[name]
	return v, ok
}

// Field returns a field produced by an earlier step.
func (s *State) Field(name string) (string, bool) {
	v, ok := s.fields[name]
	return v, ok
}

// Lookup resolves name against fields first, then inputs.
func (s *State) Lookup(name string) (string, bool) {
	if v, ok := s.fields[name]; ok {
		return v, true
	}
	v, ok := s.inputs[name]
	return v, ok
}

// Require is Lookup for values a step cannot run without. A miss means the
// pipeline was wired wrong, which is a contract violation rather than a user
// error.
func (s *State) Require(step, name string) (string, error) {
	v, ok := s.Lookup(name)
	if !ok {
		return "", contractViolation(step, "required value %q is neither an input nor a produced field", name)
	}
	return v, nil
}

// Fields returns a copy of the accumulated fields.
func (s *State) Fields() map[string]string { return maps.Clone(s.fields) }

// Inputs returns a copy of the input refs.
func (s *State) Inputs() map[string]string { return maps.Clone(s.inputs) }

// FieldNames returns the produced field names in sorted order.
func (s *State) FieldNames() []string {
	names := make([]string, 0, len(s.fields))
	for k := range s.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// With returns a copy of s with field name set to value. Every other field
// is carried forward unchanged.
func (s *State) With(name, value string) *State {
	return s.WithFields(map[string]string{name: value})
}

// WithFields is With for several fields at once.
func (s *State) WithFields(kv map[string]string) *State {
	next := s.Clone()
	for k, v := range kv {
		next.fields[k] = v
	}
	return next
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.inputs = maps.Clone(nonNil(s.inputs))
	out.fields = maps.Clone(nonNil(s.fields))
	out.History = append([]StepRecord(nil), s.History...)
	return &out
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
