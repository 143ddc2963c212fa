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
	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/source"
	"github.com/danula-rathnayaka/CodePulse-AI/llm"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/prompt"
)

// NewCodeReviewPipeline reads one file and asks the model for review
// feedback: read_file -> review_code.
func NewCodeReviewPipeline(src source.Source, inv llm.Invoker, tpl *prompt.Template) *pipeline.Pipeline {
	if tpl == nil {
		tpl = prompt.Review
	}
	return pipeline.New(string(KindCodeReview),
		readFileStep(src),
		promptStep("review_code", inv, tpl,
			[]string{InputFilePath, FieldCode}, FieldFeedback, withFileVars),
	)
}
