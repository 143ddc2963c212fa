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
	"path/filepath"
	"strings"
)

// Kind names an agent.
type Kind string

const (
	KindBugFix       Kind = "bug_fix"
	KindCodeReview   Kind = "code_review"
	KindCaseAnalysis Kind = "case_analysis"
	KindProjectPlan  Kind = "project_plan"
)

// Kinds lists every agent kind.
var Kinds = []Kind{KindBugFix, KindCodeReview, KindCaseAnalysis, KindProjectPlan}

func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// Linear reports whether k runs as a linear pipeline.
func (k Kind) Linear() bool { return k == KindBugFix || k == KindCodeReview }

// Input names.
const (
	InputFilePath     = "file_path"
	InputErrorMessage = "error_message"
)

// Field names produced by the steps.
const (
	FieldCode             = "code"
	FieldFeedback         = "feedback"
	FieldErrorAnalysis    = "error_analysis"
	FieldFixSuggestion    = "fix_suggestion"
	FieldFixedCode        = "fixed_code"
	FieldSyntaxCheck      = "syntax_check"
	FieldValidationResult = "validation_result"
	FieldFinalReport      = "final_report"
)

// Refs are the positional input refs of one linear run.
type Refs []string

// refNames maps positional refs to input names per kind.
var refNames = map[Kind][]string{
	KindBugFix:     {InputFilePath, InputErrorMessage},
	KindCodeReview: {InputFilePath},
}

// fenceLang returns the extension of path without the dot, used as the
// code fence language in prompts.
func fenceLang(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
