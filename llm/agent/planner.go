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
	"fmt"
	"strings"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
	"github.com/danula-rathnayaka/CodePulse-AI/llm"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/prompt"
)

// draftGenerator renders tpl with the seed under seedVar and the rendered
// history, then asks the model for a new draft.
type draftGenerator struct {
	inv     llm.Invoker
	tpl     *prompt.Template
	seedVar string
}

func (g *draftGenerator) Generate(ctx context.Context, seed string, history []pipeline.Revision) (string, error) {
	text, err := g.tpl.Render(ctx, map[string]any{
		g.seedVar: seed,
		"history": FormatHistory(history),
	})
	if err != nil {
		return "", err
	}
	return g.inv.Invoke(ctx, text)
}

// NewCaseAnalysisGenerator extracts a task list from a case study.
func NewCaseAnalysisGenerator(inv llm.Invoker, tpl *prompt.Template) pipeline.Generator {
	if tpl == nil {
		tpl = prompt.CaseAnalysis
	}
	return &draftGenerator{inv: inv, tpl: tpl, seedVar: "case_study"}
}

// NewProjectPlanGenerator turns an approved task list into a roadmap.
func NewProjectPlanGenerator(inv llm.Invoker, tpl *prompt.Template) pipeline.Generator {
	if tpl == nil {
		tpl = prompt.ProjectPlan
	}
	return &draftGenerator{inv: inv, tpl: tpl, seedVar: "task_list"}
}

// FormatHistory renders prior drafts and the feedback each received, oldest
// first.
func FormatHistory(history []pipeline.Revision) string {
	if len(history) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for i, r := range history {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Draft %d:\n%s\n\nFeedback on draft %d:\n%s", i+1, r.Draft, i+1, r.Feedback)
	}
	return sb.String()
}
