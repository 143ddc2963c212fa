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
	"text/template"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/source"
	"github.com/danula-rathnayaka/CodePulse-AI/lang/syntax"
	"github.com/danula-rathnayaka/CodePulse-AI/llm"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/prompt"
)

var bugReportTpl = template.Must(template.New("bug_report").Option("missingkey=error").Parse(prompt.BugReportText))

// BugFixPrompts overrides the prompts of the bug fixer. Nil entries use
// the embedded templates.
type BugFixPrompts struct {
	AnalyzeError *prompt.Template
	SuggestFix   *prompt.Template
	ValidateFix  *prompt.Template
}

func (p BugFixPrompts) withDefaults() BugFixPrompts {
	if p.AnalyzeError == nil {
		p.AnalyzeError = prompt.AnalyzeError
	}
	if p.SuggestFix == nil {
		p.SuggestFix = prompt.SuggestFix
	}
	if p.ValidateFix == nil {
		p.ValidateFix = prompt.ValidateFix
	}
	return p
}

// NewBugFixPipeline builds read_file -> analyze_error -> suggest_fix ->
// apply_fix -> validate_fix -> generate_report.
func NewBugFixPipeline(src source.Source, inv llm.Invoker, prompts BugFixPrompts) *pipeline.Pipeline {
	prompts = prompts.withDefaults()
	return pipeline.New(string(KindBugFix),
		readFileStep(src),
		promptStep("analyze_error", inv, prompts.AnalyzeError,
			[]string{InputErrorMessage}, FieldErrorAnalysis, nil),
		promptStep("suggest_fix", inv, prompts.SuggestFix,
			[]string{InputFilePath, FieldErrorAnalysis, FieldCode}, FieldFixSuggestion, withFileVars),
		applyFixStep(),
		syntaxCheckStep(),
		promptStep("validate_fix", inv, prompts.ValidateFix,
			[]string{InputFilePath, FieldFixedCode, FieldSyntaxCheck}, FieldValidationResult, withFileVars),
		generateReportStep(),
	)
}

// applyFixStep appends the suggestion to the code as comment lines.
func applyFixStep() pipeline.Step {
	return pipeline.NewStep("apply_fix", pipeline.Contract{
		Requires: []string{InputFilePath, FieldCode, FieldFixSuggestion},
		Produces: []string{FieldFixedCode},
	}, func(ctx context.Context, st *pipeline.State) (*pipeline.State, error) {
		code, err := st.Require("apply_fix", FieldCode)
		if err != nil {
			return nil, err
		}
		fix, err := st.Require("apply_fix", FieldFixSuggestion)
		if err != nil {
			return nil, err
		}
		path, _ := st.Input(InputFilePath)
		return st.With(FieldFixedCode, ApplyFix(code, fix, commentPrefix(path))), nil
	})
}

// ApplyFix returns code followed by the fix suggestion, one comment line
// per suggestion line.
func ApplyFix(code, fix, comment string) string {
	var sb strings.Builder
	sb.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		sb.WriteByte('\n')
	}
	for i, line := range strings.Split(strings.TrimRight(fix, "\n"), "\n") {
		sb.WriteString(comment)
		if i == 0 {
			sb.WriteString(" Applied fix: ")
		} else if line != "" {
			sb.WriteByte(' ')
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func commentPrefix(path string) string {
	switch syntax.Detect(path) {
	case syntax.Go, syntax.JavaScript, syntax.Java, syntax.Rust:
		return "//"
	}
	return "#"
}

// syntaxCheckStep parses the fixed code with tree-sitter before the model
// validates it.
func syntaxCheckStep() pipeline.Step {
	return pipeline.NewStep("syntax_check", pipeline.Contract{
		Requires: []string{InputFilePath, FieldFixedCode},
		Produces: []string{FieldSyntaxCheck},
	}, func(ctx context.Context, st *pipeline.State) (*pipeline.State, error) {
		fixed, err := st.Require("syntax_check", FieldFixedCode)
		if err != nil {
			return nil, err
		}
		path, _ := st.Input(InputFilePath)
		res, err := syntax.Check(ctx, path, []byte(fixed))
		if err != nil {
			return nil, pipeline.NewError(pipeline.KindInternal, err)
		}
		return st.With(FieldSyntaxCheck, res.Summary()), nil
	})
}

func generateReportStep() pipeline.Step {
	requires := []string{
		InputFilePath, InputErrorMessage, FieldErrorAnalysis,
		FieldFixSuggestion, FieldFixedCode, FieldValidationResult,
	}
	return pipeline.NewStep("generate_report", pipeline.Contract{
		Requires: requires,
		Produces: []string{FieldFinalReport},
	}, func(ctx context.Context, st *pipeline.State) (*pipeline.State, error) {
		data := make(map[string]string, len(requires))
		for _, r := range requires {
			v, err := st.Require("generate_report", r)
			if err != nil {
				return nil, err
			}
			data[r] = v
		}
		out, err := pipeline.RenderBlock(bugReportTpl, data)
		if err != nil {
			return nil, err
		}
		return st.With(FieldFinalReport, out), nil
	})
}

// bugFixLabels are the fixed report keys of a bug fix run.
var bugFixLabels = []pipeline.Label{
	{Label: FieldErrorAnalysis, Field: FieldErrorAnalysis},
	{Label: FieldFixSuggestion, Field: FieldFixSuggestion},
	{Label: FieldValidationResult, Field: FieldValidationResult},
	{Label: FieldFinalReport, Field: FieldFinalReport},
}
