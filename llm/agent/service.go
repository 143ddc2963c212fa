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

package agent

import (
	"context"
	"strings"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/source"
	"github.com/danula-rathnayaka/CodePulse-AI/llm"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/prompt"
)

// Options tunes how a Service runs its agents.
type Options struct {
	// Concurrency bounds parallel files in a batch. Zero or one runs
	// files one after another.
	Concurrency int
	// Policy decides on step failures. Nil aborts at once.
	Policy pipeline.Policy
	// MaxRevisions caps approval loops; see pipeline.ApprovalLoop.
	MaxRevisions int
	ApproveToken string
	// Prompts overrides embedded templates by name (review, analyze_error,
	// suggest_fix, validate_fix, case_analysis, project_plan).
	Prompts map[string]*prompt.Template
}

// Service runs the agents. It is safe for concurrent use; every run owns
// its own state.
type Service struct {
	src      source.Source
	invokers map[Kind]llm.Invoker
	opts     Options
}

// NewService binds agents to a text source and a model per kind.
func NewService(src source.Source, invokers map[Kind]llm.Invoker, opts Options) *Service {
	return &Service{src: src, invokers: invokers, opts: opts}
}

func (s *Service) Source() source.Source { return s.src }

func (s *Service) invoker(kind Kind) (llm.Invoker, error) {
	if !kind.Valid() {
		return nil, pipeline.Errorf(pipeline.KindInvalidRequest, "unknown agent kind %q", kind)
	}
	inv, ok := s.invokers[kind]
	if !ok || inv == nil {
		return nil, pipeline.Errorf(pipeline.KindInvalidRequest, "no model configured for agent %s", kind)
	}
	return inv, nil
}

func (s *Service) prompt(name string) *prompt.Template {
	if t, ok := s.opts.Prompts[name]; ok && t != nil {
		return t
	}
	t, _ := prompt.Builtin(name)
	return t
}

// Pipeline returns the linear pipeline of kind.
func (s *Service) Pipeline(kind Kind) (*pipeline.Pipeline, error) {
	if !kind.Linear() {
		return nil, pipeline.Errorf(pipeline.KindInvalidRequest, "agent %s is not a linear pipeline", kind)
	}
	inv, err := s.invoker(kind)
	if err != nil {
		return nil, err
	}
	var p *pipeline.Pipeline
	if kind == KindBugFix {
		p = NewBugFixPipeline(s.src, inv, BugFixPrompts{
			AnalyzeError: s.prompt("analyze_error"),
			SuggestFix:   s.prompt("suggest_fix"),
			ValidateFix:  s.prompt("validate_fix"),
		})
	} else {
		p = NewCodeReviewPipeline(s.src, inv, s.prompt("review"))
	}
	p.Policy = s.opts.Policy
	return p, nil
}

func newState(kind Kind, refs Refs) (*pipeline.State, error) {
	names := refNames[kind]
	if len(refs) != len(names) {
		return nil, pipeline.Errorf(pipeline.KindInvalidRequest,
			"agent %s takes %d input ref(s) (%s), got %d", kind, len(names), strings.Join(names, ", "), len(refs))
	}
	inputs := make(map[string]string, len(names))
	for i, n := range names {
		inputs[n] = refs[i]
	}
	if inputs[InputFilePath] == "" {
		return nil, pipeline.Errorf(pipeline.KindInvalidRequest, "agent %s: %s is required", kind, InputFilePath)
	}
	return pipeline.NewState(string(kind), inputs), nil
}

// RunSingle runs one linear pipeline. A code review report is keyed by the
// file path; a bug fix report has the fixed keys error_analysis,
// fix_suggestion, validation_result and final_report.
func (s *Service) RunSingle(ctx context.Context, kind Kind, refs Refs) (*pipeline.Report, error) {
	p, err := s.Pipeline(kind)
	if err != nil {
		return nil, err
	}
	st, err := newState(kind, refs)
	if err != nil {
		return nil, err
	}
	log.Info("agent %s: run %s on %s", kind, st.RunID, refs[0])
	out, err := p.Run(ctx, st)
	if err != nil {
		return nil, err
	}
	if kind == KindBugFix {
		return pipeline.Assemble(out, bugFixLabels...)
	}
	return pipeline.Assemble(out, pipeline.Label{Label: refs[0], Field: FieldFeedback})
}

// batchField is the field reported per file in batch mode.
func batchField(kind Kind) string {
	if kind == KindBugFix {
		return FieldFinalReport
	}
	return FieldFeedback
}

// RunBatch runs one pipeline per input and reports each file's result keyed
// by its path, in input order. The first failure aborts the batch.
func (s *Service) RunBatch(ctx context.Context, kind Kind, inputs []Refs) (*pipeline.Report, error) {
	p, err := s.Pipeline(kind)
	if err != nil {
		return nil, err
	}
	states := make([]*pipeline.State, len(inputs))
	for i, refs := range inputs {
		if states[i], err = newState(kind, refs); err != nil {
			return nil, err
		}
	}
	log.Info("agent %s: batch of %d file(s), concurrency %d", kind, len(states), s.opts.Concurrency)
	out, err := pipeline.RunBatch(ctx, p, states, s.opts.Concurrency)
	if err != nil {
		return nil, err
	}
	return pipeline.AssembleBatch(out, InputFilePath, batchField(kind))
}

// RunApproval drives a plan-then-approve agent until sig approves a draft.
// For case_analysis seed is the path of the case study; for project_plan it
// is the task list text.
func (s *Service) RunApproval(ctx context.Context, kind Kind, seed string, sig pipeline.Signal) (string, error) {
	inv, err := s.invoker(kind)
	if err != nil {
		return "", err
	}
	var gen pipeline.Generator
	switch kind {
	case KindCaseAnalysis:
		if strings.TrimSpace(seed) == "" {
			return "", pipeline.Errorf(pipeline.KindInvalidRequest, "case_analysis: case study path is required")
		}
		text, err := s.src.Read(ctx, seed)
		if err != nil {
			return "", pipeline.Tag(string(kind)+"/read_file", err)
		}
		seed = text
		gen = NewCaseAnalysisGenerator(inv, s.prompt("case_analysis"))
	case KindProjectPlan:
		if strings.TrimSpace(seed) == "" {
			return "", pipeline.Errorf(pipeline.KindInvalidRequest, "project_plan: task list is required")
		}
		gen = NewProjectPlanGenerator(inv, s.prompt("project_plan"))
	default:
		return "", pipeline.Errorf(pipeline.KindInvalidRequest, "agent %s has no approval loop", kind)
	}
	loop := &pipeline.ApprovalLoop{
		Name:         string(kind),
		Generator:    gen,
		ApproveToken: s.opts.ApproveToken,
		MaxRevisions: s.opts.MaxRevisions,
	}
	return loop.Run(ctx, seed, sig)
}

// ProjectRequest selects files for a folder review. Exts filters by
// extension (".py" or "py"); Ignore prunes files and directories by name.
type ProjectRequest struct {
	Root   string   `json:"project_path" jsonschema:"description=file or directory to review"`
	Exts   []string `json:"file_extensions,omitempty" jsonschema:"description=extensions to include such as .py; empty means all"`
	Ignore []string `json:"ignore_files,omitempty" jsonschema:"description=file or directory names to skip"`
}

// ReviewProject discovers files under Root and reviews each. A root with no
// matching files yields an empty report.
func (s *Service) ReviewProject(ctx context.Context, req ProjectRequest) (*pipeline.Report, error) {
	if strings.TrimSpace(req.Root) == "" {
		return nil, pipeline.Errorf(pipeline.KindInvalidRequest, "project path is required")
	}
	files, err := s.src.Discover(ctx, req.Root, req.Exts, req.Ignore)
	if err != nil {
		return nil, pipeline.Tag("find_files", err)
	}
	log.Info("review %s: %d file(s) found", req.Root, len(files))
	if len(files) == 0 {
		return pipeline.NewReport(), nil
	}
	inputs := make([]Refs, len(files))
	for i, f := range files {
		inputs[i] = Refs{f}
	}
	return s.RunBatch(ctx, KindCodeReview, inputs)
}

// ReviewPrompt renders the code review prompt for path without calling a
// model, for clients that bring their own.
func (s *Service) ReviewPrompt(ctx context.Context, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", pipeline.Errorf(pipeline.KindInvalidRequest, "file path is required")
	}
	code, err := s.src.Read(ctx, path)
	if err != nil {
		return "", pipeline.Tag("read_file", err)
	}
	vars := map[string]any{FieldCode: code}
	withFileVars(pipeline.NewState(string(KindCodeReview), map[string]string{InputFilePath: path}), vars)
	return s.prompt("review").Render(ctx, vars)
}
