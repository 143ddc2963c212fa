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

// Package approval hosts plan-then-approve sessions whose approval signal
// comes from outside the process, such as HTTP requests or a console.
package approval

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotAwaiting     = errors.New("session is not awaiting approval")
	ErrBrokerClosed    = errors.New("approval broker is shut down")
)

// Status is the lifecycle of a hosted session.
type Status string

const (
	StatusRunning  Status = "running"
	StatusApproved Status = "approved"
	StatusFailed   Status = "failed"
	StatusExpired  Status = "expired"
	StatusClosed   Status = "closed"
)

// View is a snapshot of a hosted session.
type View struct {
	ID        string              `json:"id"`
	Kind      string              `json:"kind"`
	Status    Status              `json:"status"`
	Phase     pipeline.Phase      `json:"phase"`
	Draft     string              `json:"draft,omitempty"`
	Revision  int                 `json:"revision"`
	History   []pipeline.Revision `json:"history,omitempty"`
	Final     string              `json:"final,omitempty"`
	Error     string              `json:"error,omitempty"`
	ErrorKind pipeline.Kind       `json:"error_kind,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Done reports whether the session has stopped.
func (v View) Done() bool { return v.Status != StatusRunning }

// RunFunc runs one approval loop against sig.
type RunFunc func(ctx context.Context, sig pipeline.Signal) (string, error)

type session struct {
	view     View
	cancel   context.CancelFunc
	feedback chan string
	changed  chan struct{}
}

// notify wakes every waiter. Callers hold the broker lock.
func (s *session) notify() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Broker runs each session in its own goroutine and feeds it the input
// submitted for it. A session awaiting input longer than the idle timeout
// expires; finished sessions are dropped after the same period.
type Broker struct {
	idle     time.Duration
	clock    func() time.Time
	ctx      context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

const DefaultIdleTimeout = 30 * time.Minute

// NewBroker builds a broker with the supplied idle timeout.
func NewBroker(idle time.Duration) *Broker {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Broker{
		idle:     idle,
		clock:    time.Now,
		ctx:      ctx,
		stop:     stop,
		sessions: make(map[string]*session),
	}
}

// Start launches run in a new session and returns its first view.
func (b *Broker) Start(kind string, run RunFunc) (View, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return View{}, ErrBrokerClosed
	}
	b.sweepLocked()

	ctx, cancel := context.WithCancel(b.ctx)
	s := &session{
		view: View{
			ID:        uuid.NewString(),
			Kind:      kind,
			Status:    StatusRunning,
			Phase:     pipeline.PhaseGenerating,
			UpdatedAt: b.clock(),
		},
		cancel:   cancel,
		feedback: make(chan string, 1),
		changed:  make(chan struct{}),
	}
	b.sessions[s.view.ID] = s
	log.Info("approval broker: session %s (%s) started", s.view.ID, kind)

	b.wg.Add(1)
	go b.run(ctx, s, run)
	return b.copyView(s), nil
}

func (b *Broker) run(ctx context.Context, s *session, run RunFunc) {
	defer b.wg.Done()
	defer s.cancel()

	final, err := run(ctx, pipeline.SignalFunc(func(ctx context.Context, cur pipeline.Session) (string, error) {
		return b.await(ctx, s, cur)
	}))

	b.mu.Lock()
	defer b.mu.Unlock()
	v := &s.view
	v.UpdatedAt = b.clock()
	switch {
	case err == nil:
		v.Status = StatusApproved
		v.Phase = pipeline.PhaseFinalized
		v.Final = final
		v.Draft = final
	case v.Status == StatusClosed:
	case errors.Is(err, errIdle):
		v.Status = StatusExpired
		v.Error = err.Error()
		v.ErrorKind = pipeline.KindOf(err)
	default:
		v.Status = StatusFailed
		v.Error = err.Error()
		v.ErrorKind = pipeline.KindOf(err)
	}
	log.Info("approval broker: session %s finished: %s", v.ID, v.Status)
	s.notify()
}

var errIdle = errors.New("no input before idle timeout")

// await publishes the draft and blocks until input, cancellation or idle
// expiry.
func (b *Broker) await(ctx context.Context, s *session, cur pipeline.Session) (string, error) {
	b.mu.Lock()
	v := &s.view
	v.Phase = pipeline.PhaseAwaitingApproval
	v.Draft = cur.Draft
	v.Revision = cur.Revision
	v.History = cur.History
	v.UpdatedAt = b.clock()
	s.notify()
	b.mu.Unlock()

	timer := time.NewTimer(b.idle)
	defer timer.Stop()
	select {
	case in := <-s.feedback:
		return in, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", pipeline.NewError(pipeline.KindCanceled, errors.Wrapf(errIdle, "session %s", s.view.ID))
	}
}

// Get returns the current view of id.
func (b *Broker) Get(id string) (View, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[id]
	if !ok {
		return View{}, ErrSessionNotFound
	}
	return b.copyView(s), nil
}

// Wait blocks until id is awaiting input or done, then returns its view.
func (b *Broker) Wait(ctx context.Context, id string) (View, error) {
	for {
		b.mu.Lock()
		s, ok := b.sessions[id]
		if !ok {
			b.mu.Unlock()
			return View{}, ErrSessionNotFound
		}
		if s.view.Done() || s.view.Phase == pipeline.PhaseAwaitingApproval {
			v := b.copyView(s)
			b.mu.Unlock()
			return v, nil
		}
		changed := s.changed
		b.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return View{}, ctx.Err()
		}
	}
}

// Submit delivers one line of input (approval token or feedback) to a
// session awaiting approval.
func (b *Broker) Submit(id, input string) (View, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[id]
	if !ok {
		return View{}, ErrSessionNotFound
	}
	if s.view.Done() || s.view.Phase != pipeline.PhaseAwaitingApproval {
		return b.copyView(s), ErrNotAwaiting
	}
	s.feedback <- input
	s.view.Phase = pipeline.PhaseGenerating
	s.view.UpdatedAt = b.clock()
	s.notify()
	return b.copyView(s), nil
}

// Close cancels id and forgets it.
func (b *Broker) Close(id string) error {
	b.mu.Lock()
	s, ok := b.sessions[id]
	if !ok {
		b.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(b.sessions, id)
	if !s.view.Done() {
		s.view.Status = StatusClosed
	}
	b.mu.Unlock()
	s.cancel()
	log.Info("approval broker: session %s closed", id)
	return nil
}

// Len returns the number of tracked sessions.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Shutdown cancels every session and waits for their goroutines.
func (b *Broker) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.stop()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sweepLocked drops sessions finished longer than the idle timeout ago.
func (b *Broker) sweepLocked() {
	now := b.clock()
	for id, s := range b.sessions {
		if s.view.Done() && now.Sub(s.view.UpdatedAt) > b.idle {
			delete(b.sessions, id)
		}
	}
}

func (b *Broker) copyView(s *session) View {
	v := s.view
	v.History = append([]pipeline.Revision(nil), s.view.History...)
	return v
}
