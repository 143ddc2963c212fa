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

package prompt

import (
	"context"
	_ "embed"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
)

// Template renders one user prompt from named variables. Variables are
// substituted as data, so code containing braces is safe to pass.
type Template struct {
	name string
	tpl  prompt.ChatTemplate
}

func NewTemplate(name, text string) *Template {
	return &Template{
		name: name,
		tpl:  prompt.FromMessages(schema.GoTemplate, schema.UserMessage(text)),
	}
}

// LoadTemplate reads a template body from path.
func LoadTemplate(name, path string) (*Template, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load prompt %s", name)
	}
	return NewTemplate(name, string(bs)), nil
}

func (t *Template) Name() string { return t.name }

func (t *Template) Render(ctx context.Context, vars map[string]any) (string, error) {
	msgs, err := t.tpl.Format(ctx, vars)
	if err != nil {
		return "", errors.Wrapf(err, "render prompt %s", t.name)
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Content)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n")), nil
}

//go:embed review.md
var textReview string

//go:embed analyze_error.md
var textAnalyzeError string

//go:embed suggest_fix.md
var textSuggestFix string

//go:embed validate_fix.md
var textValidateFix string

// BugReportText is the text/template body of the bug fix final report.
//
//go:embed bug_report.md
var BugReportText string

//go:embed case_analysis.md
var textCaseAnalysis string

//go:embed project_plan.md
var textProjectPlan string

var (
	Review       = NewTemplate("review", textReview)
	AnalyzeError = NewTemplate("analyze_error", textAnalyzeError)
	SuggestFix   = NewTemplate("suggest_fix", textSuggestFix)
	ValidateFix  = NewTemplate("validate_fix", textValidateFix)
	CaseAnalysis = NewTemplate("case_analysis", textCaseAnalysis)
	ProjectPlan  = NewTemplate("project_plan", textProjectPlan)
)

// Builtin returns the embedded template with the given name.
func Builtin(name string) (*Template, bool) {
	for _, t := range []*Template{Review, AnalyzeError, SuggestFix, ValidateFix, CaseAnalysis, ProjectPlan} {
		if t.name == name {
			return t, true
		}
	}
	return nil, false
}
