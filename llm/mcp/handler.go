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

package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/agent"
)

type Tool = server.ServerTool

// GetJSONSchema reflects the input schema of a tool request struct.
func GetJSONSchema(v any) json.RawMessage {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(v)
	s.Version = ""
	js, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return js
}

func NewTool[R any, T any](name string, desc string, schema json.RawMessage, handler func(ctx context.Context, req R) (*T, error)) Tool {
	return Tool{
		Tool: mcp.NewToolWithRawSchema(name, desc, schema),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var req R
			if err := request.BindArguments(&req); err != nil {
				return nil, err
			}
			var final string
			var isError bool
			if resp, err := handler(ctx, req); err != nil {
				isError = true
				final = err.Error()
			} else if js, err := json.Marshal(resp); err != nil {
				isError = true
				final = err.Error()
			} else {
				final = string(js)
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(final),
				},
				IsError: isError,
			}, nil
		},
	}
}

const (
	ToolReviewFile   = "review_file"
	ToolReviewFolder = "review_folder"
	ToolFixBug       = "fix_bug"

	DescReviewFile   = "Review one source file for bugs, performance and code quality. Returns a JSON object keyed by the file path."
	DescReviewFolder = "Review every matching file under a directory. Returns a JSON object keyed by file path, in walk order."
	DescFixBug       = "Analyze an error in a source file, suggest and apply a fix, and validate it. Returns error_analysis, fix_suggestion, validation_result and final_report."
)

type ReviewFileReq struct {
	FilePath string `json:"file_path" jsonschema:"description=path of the file to review"`
}

type FixBugReq struct {
	FilePath     string `json:"file_path" jsonschema:"description=path of the failing file"`
	ErrorMessage string `json:"error_msg" jsonschema:"description=the error message or traceback"`
}

var (
	SchemaReviewFile   = GetJSONSchema(ReviewFileReq{})
	SchemaReviewFolder = GetJSONSchema(agent.ProjectRequest{})
	SchemaFixBug       = GetJSONSchema(FixBugReq{})
)

func getAgentTools(svc *agent.Service) []Tool {
	return []Tool{
		NewTool(ToolReviewFile, DescReviewFile, SchemaReviewFile, func(ctx context.Context, req ReviewFileReq) (*pipeline.Report, error) {
			return svc.RunSingle(ctx, agent.KindCodeReview, agent.Refs{req.FilePath})
		}),
		NewTool(ToolReviewFolder, DescReviewFolder, SchemaReviewFolder, svc.ReviewProject),
		NewTool(ToolFixBug, DescFixBug, SchemaFixBug, func(ctx context.Context, req FixBugReq) (*pipeline.Report, error) {
			return svc.RunSingle(ctx, agent.KindBugFix, agent.Refs{req.FilePath, req.ErrorMessage})
		}),
	}
}

func reviewPromptHandler(svc *agent.Service) server.PromptHandlerFunc {
	return func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		path := request.Params.Arguments["file_path"]
		text, err := svc.ReviewPrompt(ctx, path)
		if err != nil {
			return nil, err
		}
		return &mcp.GetPromptResult{
			Description: "Code review of " + filepath.Base(path),
			Messages: []mcp.PromptMessage{
				{
					Role: mcp.RoleUser,
					Content: mcp.TextContent{
						Type: "text",
						Text: text,
					},
				},
			},
		}, nil
	}
}
