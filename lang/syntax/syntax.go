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

// Package syntax runs a tree-sitter parse over source text and reports
// syntax errors. It backs the validation step of the bug fixer.
package syntax

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
)

type Language string

const (
	Unknown    Language = ""
	Python     Language = "python"
	Go         Language = "go"
	JavaScript Language = "javascript"
	Java       Language = "java"
	Rust       Language = "rust"
)

var extLanguages = map[string]Language{
	".py":   Python,
	".pyw":  Python,
	".go":   Go,
	".js":   JavaScript,
	".jsx":  JavaScript,
	".mjs":  JavaScript,
	".cjs":  JavaScript,
	".java": Java,
	".rs":   Rust,
}

// Detect maps a file name to a language by extension.
func Detect(filename string) Language {
	return extLanguages[strings.ToLower(filepath.Ext(filename))]
}

func (l Language) grammar() *sitter.Language {
	switch l {
	case Python:
		return python.GetLanguage()
	case Go:
		return golang.GetLanguage()
	case JavaScript:
		return javascript.GetLanguage()
	case Java:
		return java.GetLanguage()
	case Rust:
		return rust.GetLanguage()
	}
	return nil
}

// Issue is a single error or missing node. Line and Column are 1-based.
type Issue struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Missing bool   `json:"missing"`
	Node    string `json:"node"`
	Snippet string `json:"snippet,omitempty"`
}

func (i Issue) String() string {
	if i.Missing {
		return fmt.Sprintf("%d:%d: missing %s", i.Line, i.Column, i.Node)
	}
	if i.Snippet != "" {
		return fmt.Sprintf("%d:%d: unexpected %q", i.Line, i.Column, i.Snippet)
	}
	return fmt.Sprintf("%d:%d: syntax error", i.Line, i.Column)
}

type Result struct {
	Language  Language `json:"language"`
	Supported bool     `json:"supported"`
	Issues    []Issue  `json:"issues,omitempty"`
}

// OK reports whether the parse found no issues. Unsupported languages are OK.
func (r *Result) OK() bool { return len(r.Issues) == 0 }

// Summary renders the result as a short line-oriented text.
func (r *Result) Summary() string {
	if !r.Supported {
		return "syntax check skipped: unsupported language"
	}
	if r.OK() {
		return fmt.Sprintf("syntax check passed (%s)", r.Language)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "syntax check found %d issue(s) (%s):", len(r.Issues), r.Language)
	for _, is := range r.Issues {
		sb.WriteString("\n  ")
		sb.WriteString(is.String())
	}
	return sb.String()
}

// MaxIssues bounds the issues collected from one parse.
const MaxIssues = 20

// Check parses src with the grammar chosen by filename.
func Check(ctx context.Context, filename string, src []byte) (*Result, error) {
	lang := Detect(filename)
	res := &Result{Language: lang}
	g := lang.grammar()
	if g == nil {
		return res, nil
	}
	res.Supported = true

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return res, nil
	}
	collect(root, src, &res.Issues)
	return res, nil
}

func collect(n *sitter.Node, src []byte, out *[]Issue) {
	if n == nil || len(*out) >= MaxIssues {
		return
	}
	if n.IsMissing() || n.IsError() {
		p := n.StartPoint()
		is := Issue{
			Line:    int(p.Row) + 1,
			Column:  int(p.Column) + 1,
			Missing: n.IsMissing(),
			Node:    n.Type(),
		}
		if !is.Missing {
			is.Snippet = snippet(n.Content(src))
		}
		*out = append(*out, is)
		return
	}
	if !n.HasError() {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		collect(n.Child(i), src, out)
	}
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
