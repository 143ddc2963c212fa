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
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// produceStep sets one field to a fixed value.
func produceStep(name, field, value string, requires ...string) Step {
	return NewStep(name, Contract{Requires: requires, Produces: []string{field}},
		func(ctx context.Context, st *State) (*State, error) {
			return st.With(field, value), nil
		})
}

// failStep fails with a tagged error and counts its calls.
type failStep struct {
	kind  Kind
	calls int
}

func (m *failStep) Name() string       { return "mock-fail" }
func (m *failStep) Contract() Contract { return Contract{Produces: []string{"never"}} }

func (m *failStep) Run(ctx context.Context, st *State) (*State, error) {
	m.calls++
	return nil, NewError(m.kind, errors.New("boom"))
}

func TestPipeline_Run_Success(t *testing.T) {
	st := NewState("test", map[string]string{"file_path": "/a.py"})
	pl := New("test",
		produceStep("read", "code", "print(1)", "file_path"),
		produceStep("analyze", "analysis", "fine", "code"),
	)
	out, err := pl.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := map[string]string{"code": "print(1)", "analysis": "fine"}
	if diff := cmp.Diff(want, out.Fields()); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
	if len(out.History) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(out.History))
	}
	if out.History[0].StepName != "read" || out.History[1].StepName != "analyze" {
		t.Errorf("history order: %+v", out.History)
	}
	if len(st.Fields()) != 0 {
		t.Errorf("initial state was modified: %v", st.Fields())
	}
}

func TestPipeline_FieldPassThrough(t *testing.T) {
	steps := []Step{
		produceStep("read", "code", "x = 1", "file_path"),
		produceStep("analyze", "analysis", "a", "code"),
		produceStep("suggest", "suggestion", "s", "analysis"),
		produceStep("validate", "validation", "v", "suggestion"),
	}
	st := NewState("test", map[string]string{"file_path": "/f.py"})
	for _, step := range steps {
		before := st.Fields()
		next, err := New("one", step).Run(context.Background(), st)
		if err != nil {
			t.Fatalf("step %s: %v", step.Name(), err)
		}
		after := next.Fields()
		for _, p := range step.Contract().Produces {
			delete(after, p)
		}
		if diff := cmp.Diff(before, after); diff != "" {
			t.Errorf("step %s changed untouched fields (-before +after):\n%s", step.Name(), diff)
		}
		if diff := cmp.Diff(st.Inputs(), next.Inputs()); diff != "" {
			t.Errorf("step %s changed inputs:\n%s", step.Name(), diff)
		}
		st = next
	}
}

func TestPipeline_DroppedFieldIsContractViolation(t *testing.T) {
	dropping := NewStep("rebuild", Contract{Requires: []string{"code"}, Produces: []string{"analysis"}},
		func(ctx context.Context, st *State) (*State, error) {
			// builds a fresh record instead of carrying "code" forward
			fresh := NewState(st.Kind, st.Inputs())
			fresh.RunID = st.RunID
			return fresh.With("analysis", "a"), nil
		})
	pl := New("test", produceStep("read", "code", "x", "file_path"), dropping)
	_, err := pl.Run(context.Background(), NewState("test", map[string]string{"file_path": "/f"}))
	if KindOf(err) != KindStepContractViolation {
		t.Fatalf("expected StepContractViolation, got %v", err)
	}
	if StepOf(err) != "rebuild" {
		t.Errorf("step: got %q", StepOf(err))
	}
}

func TestPipeline_UndeclaredWriteIsContractViolation(t *testing.T) {
	sneaky := NewStep("sneaky", Contract{Produces: []string{"a"}},
		func(ctx context.Context, st *State) (*State, error) {
			return st.WithFields(map[string]string{"a": "1", "b": "2"}), nil
		})
	_, err := New("test", sneaky).Run(context.Background(), NewState("test", nil))
	if KindOf(err) != KindStepContractViolation {
		t.Fatalf("expected StepContractViolation, got %v", err)
	}
}

func TestPipeline_MissingProducedField(t *testing.T) {
	lazy := NewStep("lazy", Contract{Produces: []string{"a"}},
		func(ctx context.Context, st *State) (*State, error) {
			return st.Clone(), nil
		})
	_, err := New("test", lazy).Run(context.Background(), NewState("test", nil))
	if KindOf(err) != KindStepContractViolation {
		t.Fatalf("expected StepContractViolation, got %v", err)
	}
}

func TestPipeline_Validate(t *testing.T) {
	t.Run("requires unknown field", func(t *testing.T) {
		pl := New("test", produceStep("b", "out", "v", "missing"))
		err := pl.Validate(NewState("test", nil))
		if KindOf(err) != KindStepContractViolation {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("requires field produced later", func(t *testing.T) {
		pl := New("test",
			produceStep("first", "a", "v", "b"),
			produceStep("second", "b", "v"),
		)
		if err := pl.Validate(NewState("test", nil)); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("duplicate names", func(t *testing.T) {
		pl := New("test", produceStep("s", "a", "v"), produceStep("s", "b", "v"))
		if err := pl.Validate(NewState("test", nil)); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("nil step", func(t *testing.T) {
		pl := New("test", nil)
		if err := pl.Validate(NewState("test", nil)); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestPipeline_AbortOnFailure(t *testing.T) {
	fail := &failStep{kind: KindInputNotFound}
	var laterRan bool
	later := NewStep("later", Contract{Produces: []string{"x"}},
		func(ctx context.Context, st *State) (*State, error) {
			laterRan = true
			return st.With("x", "y"), nil
		})
	out, err := New("test", fail, later).Run(context.Background(), NewState("test", nil))
	if err == nil {
		t.Fatal("expected error")
	}
	if out != nil {
		t.Error("expected no state on failure")
	}
	if KindOf(err) != KindInputNotFound || StepOf(err) != "mock-fail" {
		t.Errorf("got kind=%s step=%s", KindOf(err), StepOf(err))
	}
	if laterRan {
		t.Error("step after failure ran")
	}
	if fail.calls != 1 {
		t.Errorf("default policy retried: %d calls", fail.calls)
	}
}

func TestPipeline_RetryPolicy(t *testing.T) {
	t.Run("model errors are retried", func(t *testing.T) {
		fail := &failStep{kind: KindModelTimeout}
		pl := &Pipeline{Name: "test", Steps: []Step{fail}, Policy: RetryPolicy{MaxRetry: 2}}
		_, err := pl.Run(context.Background(), NewState("test", nil))
		if KindOf(err) != KindModelTimeout {
			t.Fatalf("got %v", err)
		}
		if fail.calls != 3 {
			t.Errorf("expected 3 attempts, got %d", fail.calls)
		}
	})
	t.Run("input errors are not", func(t *testing.T) {
		fail := &failStep{kind: KindInputReadError}
		pl := &Pipeline{Name: "test", Steps: []Step{fail}, Policy: RetryPolicy{MaxRetry: 2}}
		_, _ = pl.Run(context.Background(), NewState("test", nil))
		if fail.calls != 1 {
			t.Errorf("expected 1 attempt, got %d", fail.calls)
		}
	})
}

func TestPipeline_UntaggedErrorsAreClassified(t *testing.T) {
	step := NewStep("slow", Contract{}, func(ctx context.Context, st *State) (*State, error) {
		return nil, context.DeadlineExceeded
	})
	_, err := New("test", step).Run(context.Background(), NewState("test", nil))
	if KindOf(err) != KindModelTimeout {
		t.Errorf("got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New("test", produceStep("a", "a", "v")).Run(ctx, NewState("test", nil))
	if KindOf(err) != KindCanceled {
		t.Errorf("got %v", err)
	}
}

func TestTakeSnapshot(t *testing.T) {
	st := NewState("test", map[string]string{"in": "x"}).With("f", "y")
	snap := TakeSnapshot(st)
	if snap.Inputs["in"] != digest("x") || snap.Fields["f"] != digest("y") {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	other := TakeSnapshot(st.With("f", "z"))
	if snap.Fields["f"] == other.Fields["f"] {
		t.Error("digest did not change with content")
	}
}
