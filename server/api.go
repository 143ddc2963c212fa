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

// Package server exposes the agents over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/approval"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/agent"
)

// APIServer serves the review, bug fix and approval endpoints.
type APIServer struct {
	Service *agent.Service
	Broker  *approval.Broker
	// Origins allowed by CORS; "*" allows any.
	Origins []string
	// RequestTimeout bounds a synchronous pipeline run and the wait for the
	// next draft of an approval session.
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Serve starts listening on the provided address.
func (s *APIServer) Serve(addr string) error {
	return s.ServeContext(context.Background(), addr)
}

// ServeContext serves until ctx is canceled, then shuts the listener and the
// approval sessions down.
func (s *APIServer) ServeContext(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Info("API listening on %s", addr)

	select {
	case <-ctx.Done():
		timeout := s.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		if s.Broker != nil {
			_ = s.Broker.Shutdown(shutdownCtx)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler returns the routed handler with CORS and access logging.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, m := range []string{http.MethodGet, http.MethodPost} {
		mux.HandleFunc(m+" /review_file", s.handleReviewFile)
		mux.HandleFunc(m+" /review_folder", s.handleReviewFolder)
		mux.HandleFunc(m+" /bug_fixer", s.handleBugFixer)
	}
	mux.HandleFunc("POST /case_analysis", s.handleCaseAnalysis)
	mux.HandleFunc("POST /project_plan", s.handleProjectPlan)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /sessions/{id}/feedback", s.handleFeedback)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleCloseSession)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return accessLog(cors(s.Origins, mux))
}

func (s *APIServer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.RequestTimeout)
}

func (s *APIServer) handleReviewFile(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	path := p.get("file_path")
	if path == "" {
		writeError(w, pipeline.Errorf(pipeline.KindInvalidRequest, "file_path is required"))
		return
	}
	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()
	report, err := s.Service.RunSingle(ctx, agent.KindCodeReview, agent.Refs{path})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"review": report})
}

func (s *APIServer) handleReviewFolder(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req := agent.ProjectRequest{
		Root:   p.get("project_path"),
		Exts:   splitList(p.get("file_extensions")),
		Ignore: splitList(p.get("ignore_files")),
	}
	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()
	report, err := s.Service.ReviewProject(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"review": report})
}

func (s *APIServer) handleBugFixer(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	path, msg := p.get("file_path"), p.get("error_msg")
	if path == "" || msg == "" {
		writeError(w, pipeline.Errorf(pipeline.KindInvalidRequest, "file_path and error_msg are required"))
		return
	}
	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()
	report, err := s.Service.RunSingle(ctx, agent.KindBugFix, agent.Refs{path, msg})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

func (s *APIServer) handleCaseAnalysis(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.startSession(w, r, agent.KindCaseAnalysis, p.get("file_path"), "file_path")
}

func (s *APIServer) handleProjectPlan(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.startSession(w, r, agent.KindProjectPlan, p.get("task_list"), "task_list")
}

// startSession hosts an approval loop in the broker and answers with its
// first draft, or with the session still generating when the wait times out.
func (s *APIServer) startSession(w http.ResponseWriter, r *http.Request, kind agent.Kind, seed, param string) {
	if strings.TrimSpace(seed) == "" {
		writeError(w, pipeline.Errorf(pipeline.KindInvalidRequest, "%s is required", param))
		return
	}
	v, err := s.Broker.Start(string(kind), func(ctx context.Context, sig pipeline.Signal) (string, error) {
		return s.Service.RunApproval(ctx, kind, seed, sig)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.waitAndWrite(w, r, v)
}

func (s *APIServer) waitAndWrite(w http.ResponseWriter, r *http.Request, v approval.View) {
	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()
	next, err := s.Broker.Wait(ctx, v.ID)
	switch {
	case err == nil:
		writeView(w, next)
	case errors.Is(err, context.DeadlineExceeded):
		if cur, gerr := s.Broker.Get(v.ID); gerr == nil {
			v = cur
		}
		writeJSON(w, http.StatusAccepted, v)
	default:
		writeError(w, err)
	}
}

func (s *APIServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	v, err := s.Broker.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeView(w, v)
}

// FeedbackRequest is the body of POST /sessions/{id}/feedback. The approval
// token accepts the current draft; anything else asks for a revision.
type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

func (s *APIServer) handleFeedback(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := s.Broker.Submit(r.PathValue("id"), p.get("feedback"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.waitAndWrite(w, r, v)
}

func (s *APIServer) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Broker.Close(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// splitList splits a space or comma separated parameter.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("write response: %v", err)
	}
}
