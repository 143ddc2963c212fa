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
	"fmt"
	"testing"
)

// countingGenerator returns "draft-<n>" and remembers the history it saw.
type countingGenerator struct {
	calls     int
	histories [][]Revision
}

func (g *countingGenerator) Generate(ctx context.Context, seed string, history []Revision) (string, error) {
	g.calls++
	g.histories = append(g.histories, history)
	return fmt.Sprintf("draft-%d", g.calls), nil
}

// scripted replies from a fixed list, then repeats the last entry.
func scripted(replies ...string) (Signal, *[]Session) {
	var seen []Session
	i := 0
	return SignalFunc(func(ctx context.Context, s Session) (string, error) {
		seen = append(seen, s)
		r := replies[len(replies)-1]
		if i < len(replies) {
			r = replies[i]
		}
		i++
		return r, nil
	}), &seen
}

func TestApprovalLoop_TerminatesAfterNRejections(t *testing.T) {
	for _, n := range []int{0, 1, 3, 7} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			replies := make([]string, 0, n+1)
			for i := 0; i < n; i++ {
				replies = append(replies, "reject")
			}
			replies = append(replies, "approve")

			gen := &countingGenerator{}
			sig, _ := scripted(replies...)
			loop := &ApprovalLoop{Name: "test", Generator: gen, ApproveToken: "approve"}
			final, err := loop.Run(context.Background(), "seed", sig)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if gen.calls != n+1 {
				t.Errorf("expected %d generations, got %d", n+1, gen.calls)
			}
			if want := fmt.Sprintf("draft-%d", n+1); final != want {
				t.Errorf("final: got %q want %q", final, want)
			}
		})
	}
}

func TestApprovalLoop_FullHistoryIsThreaded(t *testing.T) {
	gen := &countingGenerator{}
	sig, seen := scripted("too short", "add deadlines", "/yes")
	loop := &ApprovalLoop{Name: "test", Generator: gen}
	if _, err := loop.Run(context.Background(), "seed", sig); err != nil {
		t.Fatal(err)
	}
	if len(gen.histories[0]) != 0 {
		t.Errorf("first generation saw history %v", gen.histories[0])
	}
	last := gen.histories[2]
	want := []Revision{
		{Draft: "draft-1", Feedback: "too short"},
		{Draft: "draft-2", Feedback: "add deadlines"},
	}
	if len(last) != len(want) {
		t.Fatalf("history: got %v", last)
	}
	for i := range want {
		if last[i] != want[i] {
			t.Errorf("history[%d]: got %+v want %+v", i, last[i], want[i])
		}
	}
	for _, s := range *seen {
		if s.Revision != len(s.History) {
			t.Errorf("revision %d != len(history) %d", s.Revision, len(s.History))
		}
		if s.Phase != PhaseAwaitingApproval {
			t.Errorf("signal saw phase %s", s.Phase)
		}
	}
}

func TestApprovalLoop_CapReturnsUnbounded(t *testing.T) {
	gen := &countingGenerator{}
	sig, _ := scripted("no")
	loop := &ApprovalLoop{Name: "test", Generator: gen, MaxRevisions: 50}
	_, err := loop.Run(context.Background(), "seed", sig)
	if KindOf(err) != KindUnboundedApprovalLoop {
		t.Fatalf("expected UnboundedApprovalLoop, got %v", err)
	}
	if gen.calls != 50 {
		t.Errorf("expected 50 generations, got %d", gen.calls)
	}
}

func TestApprovalLoop_DefaultCap(t *testing.T) {
	gen := &countingGenerator{}
	sig, _ := scripted("no")
	_, err := (&ApprovalLoop{Name: "test", Generator: gen}).Run(context.Background(), "seed", sig)
	if KindOf(err) != KindUnboundedApprovalLoop || gen.calls != DefaultMaxRevisions {
		t.Fatalf("got %v after %d calls", err, gen.calls)
	}
}

func TestApprovalLoop_GeneratorFailureAborts(t *testing.T) {
	gen := GeneratorFunc(func(ctx context.Context, seed string, history []Revision) (string, error) {
		return "", NewError(KindModelUnavailable, errors.New("connection refused"))
	})
	called := false
	sig := SignalFunc(func(ctx context.Context, s Session) (string, error) {
		called = true
		return "/yes", nil
	})
	_, err := (&ApprovalLoop{Name: "plan", Generator: gen}).Run(context.Background(), "seed", sig)
	if KindOf(err) != KindModelUnavailable || StepOf(err) != "plan/generate" {
		t.Fatalf("got %v", err)
	}
	if called {
		t.Error("signal consulted after failed generation")
	}
}

func TestApprovalLoop_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &countingGenerator{}
	sig := SignalFunc(func(ctx context.Context, s Session) (string, error) {
		cancel()
		return "more detail", nil
	})
	_, err := (&ApprovalLoop{Name: "test", Generator: gen, MaxRevisions: -1}).Run(ctx, "seed", sig)
	if KindOf(err) != KindCanceled {
		t.Fatalf("got %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 generation, got %d", gen.calls)
	}
}

func TestIsApproval(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"/yes", true},
		{"/YES", true},
		{"  /Yes \n", true},
		{"yes", false},
		{"Yes", false},
		{"/yes please", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsApproval(c.in, ""); got != c.want {
			t.Errorf("IsApproval(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
