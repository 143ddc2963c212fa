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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/config"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/agent"
	"github.com/danula-rathnayaka/CodePulse-AI/version"
)

var (
	configPath string
	verbose    bool
	cfg        *config.Config

	// newService builds the agent service; tests replace it.
	newService = config.NewService
)

var rootCmd = &cobra.Command{
	Use:   "codepulse",
	Short: "codepulse reviews code, fixes bugs and plans projects with LLM agents",
	Long: `codepulse runs four agents on local files:

  code review     review one file or every matching file in a folder
  bug fix         analyze an error, suggest and apply a fix, validate it
  case analysis   turn a case study into a task list you approve
  project plan    turn a task list into a plan you approve

Models are configured in codepulse.yaml (see "codepulse config show").`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadDefault(configPath)
		if err != nil {
			return err
		}
		cfg = c
		log.SetLogLevel(log.ParseLevel(cfg.Log.Level))
		if verbose {
			log.SetLogLevel(log.DebugLevel)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the codepulse version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "codepulse version %s\n", version.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./codepulse.yaml or ~/.codepulse/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

// service builds the agent service from the loaded config.
func service(ctx context.Context) (*agent.Service, error) {
	return newService(ctx, cfg)
}

// signalContext is canceled on interrupt or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func main() {
	defer log.Sync()
	if err := rootCmd.Execute(); err != nil {
		log.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
