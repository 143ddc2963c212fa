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


// Package mcp serves the agents as MCP tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/agent"
)

type ServerOptions struct {
	ServerName    string
	ServerVersion string
	Service       *agent.Service
}

type Server struct {
	Server *server.MCPServer
}

func NewServer(opts ServerOptions) *Server {
	svr := server.NewMCPServer(opts.ServerName, opts.ServerVersion,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)
	tools := getAgentTools(opts.Service)
	svr.AddTools(tools...)
	svr.AddPrompt(mcp.NewPrompt("review_code",
		mcp.WithPromptDescription("Code review prompt for one file, for clients that run their own model"),
		mcp.WithArgument("file_path", mcp.ArgumentDescription("path of the file to review"), mcp.RequiredArgument()),
	), reviewPromptHandler(opts.Service))
	log.Info("mcp server %s %s: %d tool(s)", opts.ServerName, opts.ServerVersion, len(tools))
	return &Server{Server: svr}
}

// ServeStdio serves on stdin and stdout until EOF or a signal.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.Server)
}
