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

// Step is one unit of work in the pipeline. It takes the current state and
// returns a new state carrying exactly the fields listed in Contract().Produces
// added or overwritten, and everything else passed through.
type Step interface {
	Name() string
	Contract() Contract
	Run(ctx context.Context, st *State) (*State, error)
}

// Contract declares what a step reads and writes. Requires may name inputs or
// fields produced by earlier steps.
type Contract struct {
	Requires []string
	Produces []string
}

func (c Contract) produces(name string) bool {
	for _, p := range c.Produces {
		if p == name {
			return true
		}
	}
	return false
}

// StepFunc is the body of a step built with NewStep.
type StepFunc func(ctx context.Context, st *State) (*State, error)

type funcStep struct {
	name     string
	contract Contract
	fn       StepFunc
}

// NewStep builds a Step from a function.
func NewStep(name string, contract Contract, fn StepFunc) Step {
	return &funcStep{name: name, contract: contract, fn: fn}
}

func (s *funcStep) Name() string       { return s.name }
func (s *funcStep) Contract() Contract { return s.contract }

func (s *funcStep) Run(ctx context.Context, st *State) (*State, error) {
	return s.fn(ctx, st)
}
