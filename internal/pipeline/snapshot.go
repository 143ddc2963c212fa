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
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Snapshot records content hashes of a state's inputs and fields. The engine
// takes one before each step and compares it to the step's output to catch
// dropped or rewritten fields.
type Snapshot struct {
	Inputs map[string]string // name -> hex sha256
	Fields map[string]string // name -> hex sha256
}

// TakeSnapshot hashes every input and field of st.
func TakeSnapshot(st *State) Snapshot {
	snap := Snapshot{
		Inputs: make(map[string]string, len(st.inputs)),
		Fields: make(map[string]string, len(st.fields)),
	}
	for k, v := range st.inputs {
		snap.Inputs[k] = digest(v)
	}
	for k, v := range st.fields {
		snap.Fields[k] = digest(v)
	}
	return snap
}

func digest(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// verifyPassThrough checks after against before for a step with contract c:
// inputs must be identical, fields outside c.Produces must be byte-identical,
// and no undeclared field may appear.
func verifyPassThrough(step string, c Contract, before, after Snapshot) error {
	if diff := diffKeys(before.Inputs, after.Inputs, nil); len(diff) > 0 {
		return contractViolation(step, "input refs changed: %s", strings.Join(diff, ", "))
	}
	if diff := diffKeys(before.Fields, after.Fields, c.produces); len(diff) > 0 {
		return contractViolation(step, "fields not declared in Produces changed: %s", strings.Join(diff, ", "))
	}
	return nil
}

// diffKeys lists keys whose presence or digest differs between a and b,
// skipping keys for which skip returns true.
func diffKeys(a, b map[string]string, skip func(string) bool) []string {
	var out []string
	for k, va := range a {
		if skip != nil && skip(k) {
			continue
		}
		vb, ok := b[k]
		switch {
		case !ok:
			out = append(out, k+" (dropped)")
		case va != vb:
			out = append(out, k+" (modified)")
		}
	}
	for k := range b {
		if skip != nil && skip(k) {
			continue
		}
		if _, ok := a[k]; !ok {
			out = append(out, k+" (added)")
		}
	}
	sort.Strings(out)
	return out
}
