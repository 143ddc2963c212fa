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

package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/danula-rathnayaka/CodePulse-AI/llm"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var knownAgents = map[string]bool{
	"bug_fix":       true,
	"code_review":   true,
	"case_analysis": true,
	"project_plan":  true,
}

var knownPrompts = map[string]bool{
	"review":        true,
	"analyze_error": true,
	"suggest_fix":   true,
	"validate_fix":  true,
	"case_analysis": true,
	"project_plan":  true,
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool, len(cfg.Models))
	for i, m := range cfg.Models {
		field := fmt.Sprintf("models[%d]", i)
		if m.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "is required"})
		} else if names[m.Name] {
			errs = append(errs, ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate model name %q", m.Name)})
		}
		names[m.Name] = true
		if llm.NewModelType(string(m.APIType)) == llm.ModelTypeUnknown {
			errs = append(errs, ValidationError{Field: field + ".type", Message: fmt.Sprintf("unsupported model type %q", m.APIType)})
		}
		if m.ModelName == "" {
			errs = append(errs, ValidationError{Field: field + ".model_name", Message: "is required"})
		}
		if m.Timeout < 0 {
			errs = append(errs, ValidationError{Field: field + ".timeout", Message: "must not be negative"})
		}
		if m.Retries < 0 {
			errs = append(errs, ValidationError{Field: field + ".retries", Message: "must not be negative"})
		}
	}

	for kind, a := range cfg.Agents {
		field := "agents." + kind
		if !knownAgents[kind] {
			errs = append(errs, ValidationError{Field: field, Message: "unknown agent kind"})
			continue
		}
		if !names[a.WithModel] {
			errs = append(errs, ValidationError{Field: field + ".with_model", Message: fmt.Sprintf("references undefined model %q", a.WithModel)})
		}
	}

	for name := range cfg.Prompts {
		if !knownPrompts[name] {
			errs = append(errs, ValidationError{Field: "prompts." + name, Message: "unknown prompt name"})
		}
	}

	if cfg.Review.Concurrency < 1 {
		errs = append(errs, ValidationError{Field: "review.concurrency", Message: "must be at least 1"})
	}
	if strings.TrimSpace(cfg.Approval.ApproveToken) == "" {
		errs = append(errs, ValidationError{Field: "approval.approve_token", Message: "is required"})
	}
	if cfg.Server.Addr == "" {
		errs = append(errs, ValidationError{Field: "server.addr", Message: "is required"})
	}
	return errs
}

// Check runs Validate and joins the findings into one error.
func Check(cfg *Config) error {
	errs := Validate(cfg)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return errors.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
