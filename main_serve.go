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

package main

import (
	"github.com/spf13/cobra"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/approval"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/mcp"
	"github.com/danula-rathnayaka/CodePulse-AI/server"
	"github.com/danula-rathnayaka/CodePulse-AI/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API used by the desktop frontend.

Linear agents answer synchronously. Case analysis and project plan start a
session; the client polls GET /sessions/{id} and answers with
POST /sessions/{id}/feedback until it sends the approval token.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		svc, err := service(ctx)
		if err != nil {
			return err
		}
		api := &server.APIServer{
			Service:         svc,
			Broker:          approval.NewBroker(cfg.Approval.IdleTimeout),
			Origins:         cfg.Server.CORSOrigins,
			RequestTimeout:  cfg.Server.RequestTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}
		if err := api.ServeContext(ctx, cfg.Server.Addr); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the review and bug fix agents as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service(cmd.Context())
		if err != nil {
			return err
		}
		svr := mcp.NewServer(mcp.ServerOptions{
			ServerName:    "codepulse",
			ServerVersion: version.Version,
			Service:       svc,
		})
		return svr.ServeStdio()
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, :8000)")
}
