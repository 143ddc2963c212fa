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

package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/approval"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
)

// params merges query, form and JSON body values. JSON arrays of strings
// are joined with commas.
type params map[string]string

func (p params) get(name string) string { return strings.TrimSpace(p[name]) }

func readParams(r *http.Request) (params, error) {
	p := make(params)
	if err := r.ParseForm(); err != nil {
		return nil, pipeline.NewError(pipeline.KindInvalidRequest, errors.Wrap(err, "parse form"))
	}
	for k, vs := range r.Form {
		if len(vs) > 0 {
			p[k] = vs[0]
		}
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/json" || r.Body == nil {
		return p, nil
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, pipeline.NewError(pipeline.KindInvalidRequest, errors.Wrap(err, "decode body"))
	}
	for k, raw := range body {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			p[k] = s
			continue
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			p[k] = strings.Join(list, ",")
			continue
		}
		return nil, pipeline.Errorf(pipeline.KindInvalidRequest, "field %q must be a string or a list of strings", k)
	}
	return p, nil
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string        `json:"error"`
	Kind  pipeline.Kind `json:"kind,omitempty"`
	Step  string        `json:"step,omitempty"`
}

// statusOf maps a failure to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, approval.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, approval.ErrNotAwaiting):
		return http.StatusConflict
	case errors.Is(err, approval.ErrBrokerClosed):
		return http.StatusServiceUnavailable
	}
	return statusOfKind(pipeline.KindOf(err))
}

func statusOfKind(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindInputNotFound:
		return http.StatusNotFound
	case pipeline.KindInputReadError:
		return http.StatusUnprocessableEntity
	case pipeline.KindModelUnavailable:
		return http.StatusBadGateway
	case pipeline.KindModelTimeout:
		return http.StatusGatewayTimeout
	case pipeline.KindUnboundedApprovalLoop:
		return http.StatusConflict
	case pipeline.KindInvalidRequest:
		return http.StatusBadRequest
	case pipeline.KindCanceled:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), ErrorResponse{
		Error: err.Error(),
		Kind:  pipeline.KindOf(err),
		Step:  pipeline.StepOf(err),
	})
}

// writeView renders a session; a failed session takes the status of its
// error kind.
func writeView(w http.ResponseWriter, v approval.View) {
	status := http.StatusOK
	if v.Status == approval.StatusFailed {
		status = statusOfKind(v.ErrorKind)
	}
	writeJSON(w, status, v)
}
