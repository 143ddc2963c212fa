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
	"path/filepath"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/source"
	"github.com/danula-rathnayaka/CodePulse-AI/llm"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/prompt"
)

// readFileStep loads the file_path input into the code field.
func readFileStep(src source.Source) pipeline.Step {
	return pipeline.NewStep("read_file", pipeline.Contract{
		Requires: []string{InputFilePath},
		Produces: []string{FieldCode},
	}, func(ctx context.Context, st *pipeline.State) (*pipeline.State, error) {
		path, err := st.Require("read_file", InputFilePath)
		if err != nil {
			return nil, err
		}
		code, err := src.Read(ctx, path)
		if err != nil {
			return nil, err
		}
		return st.With(FieldCode, code), nil
	})
}

// promptStep renders tpl from the required values and stores the model
// answer in produce. extra adds derived variables.
func promptStep(name string, inv llm.Invoker, tpl *prompt.Template, requires []string, produce string,
	extra func(st *pipeline.State, vars map[string]any)) pipeline.Step {
	return pipeline.NewStep(name, pipeline.Contract{
		Requires: requires,
		Produces: []string{produce},
	}, func(ctx context.Context, st *pipeline.State) (*pipeline.State, error) {
		vars := make(map[string]any, len(requires)+2)
		for _, r := range requires {
			v, err := st.Require(name, r)
			if err != nil {
				return nil, err
			}
			vars[r] = v
		}
		if extra != nil {
			extra(st, vars)
		}
		text, err := tpl.Render(ctx, vars)
		if err != nil {
			return nil, err
		}
		log.Debug("step %s: invoking model with %d byte prompt", name, len(text))
		out, err := inv.Invoke(ctx, text)
		if err != nil {
			return nil, err
		}
		return st.With(produce, out), nil
	})
}

// withFileVars adds file_name and lang derived from file_path.
func withFileVars(st *pipeline.State, vars map[string]any) {
	path, _ := st.Input(InputFilePath)
	vars["file_name"] = filepath.Base(path)
	vars["lang"] = fenceLang(path)
}
