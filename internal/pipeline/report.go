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
	"bytes"
	"text/template"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Report maps a label (a file path or a fixed key) to a text blob. Keys keep
// insertion order, including in JSON.
type Report struct {
	entries *orderedmap.OrderedMap[string, string]
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{entries: orderedmap.New[string, string]()}
}

// Set adds or replaces label. A replaced label keeps its original position.
func (r *Report) Set(label, text string) {
	r.entries.Set(label, text)
}

func (r *Report) Get(label string) (string, bool) {
	return r.entries.Get(label)
}

func (r *Report) Len() int { return r.entries.Len() }

// Keys returns the labels in insertion order.
func (r *Report) Keys() []string {
	keys := make([]string, 0, r.entries.Len())
	for pair := r.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Map returns the entries as a plain map.
func (r *Report) Map() map[string]string {
	out := make(map[string]string, r.entries.Len())
	for pair := r.entries.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

func (r *Report) MarshalJSON() ([]byte, error) {
	return r.entries.MarshalJSON()
}

func (r *Report) UnmarshalJSON(data []byte) error {
	if r.entries == nil {
		r.entries = orderedmap.New[string, string]()
	}
	return r.entries.UnmarshalJSON(data)
}

// Label binds a report label to the state field that supplies its text.
type Label struct {
	Label string
	Field string
}

// Assemble builds a single-run report from the designated fields of st. A
// missing field means the pipeline did not produce what it promised.
func Assemble(st *State, labels ...Label) (*Report, error) {
	r := NewReport()
	for _, l := range labels {
		v, ok := st.Field(l.Field)
		if !ok {
			return nil, contractViolation("assemble", "terminal state has no field %q for label %q", l.Field, l.Label)
		}
		r.Set(l.Label, v)
	}
	return r, nil
}

// AssembleBatch builds a multi-run report keyed by each state's labelInput,
// in the order of states.
func AssembleBatch(states []*State, labelInput, field string) (*Report, error) {
	r := NewReport()
	for _, st := range states {
		label, ok := st.Input(labelInput)
		if !ok {
			return nil, contractViolation("assemble", "run %s has no input %q", st.RunID, labelInput)
		}
		v, ok := st.Field(field)
		if !ok {
			return nil, contractViolation("assemble", "run %s has no field %q", st.RunID, field)
		}
		r.Set(label, v)
	}
	return r, nil
}

// RenderBlock interpolates already-produced fragments into a text template.
func RenderBlock(tpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", NewError(KindInternal, err)
	}
	return buf.String(), nil
}
