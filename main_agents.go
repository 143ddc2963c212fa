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
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danula-rathnayaka/CodePulse-AI/internal/approval"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/log"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/output"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/pipeline"
	"github.com/danula-rathnayaka/CodePulse-AI/internal/watch"
	"github.com/danula-rathnayaka/CodePulse-AI/llm/agent"
)

var reviewCmd = &cobra.Command{
	Use:   "review <file|dir>",
	Short: "Review a file or every matching file under a directory",
	Long: `Review a file or a project directory and save one markdown report per
file as <name>-code-analysis.md in the output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exts, _ := cmd.Flags().GetStringSlice("ext")
		ignore, _ := cmd.Flags().GetStringSlice("ignore")
		out, _ := cmd.Flags().GetString("out")
		if !cmd.Flags().Changed("ext") {
			exts = cfg.Review.Extensions
		}
		if !cmd.Flags().Changed("ignore") {
			ignore = cfg.Review.Ignore
		}
		if out == "" {
			out = cfg.Review.OutputDir
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()
		svc, err := service(ctx)
		if err != nil {
			return err
		}

		var report *pipeline.Report
		if info, err := os.Stat(args[0]); err == nil && !info.IsDir() {
			report, err = svc.RunSingle(ctx, agent.KindCodeReview, agent.Refs{args[0]})
			if err != nil {
				return err
			}
		} else {
			report, err = svc.ReviewProject(ctx, agent.ProjectRequest{Root: args[0], Exts: exts, Ignore: ignore})
			if err != nil {
				return err
			}
		}
		if report.Len() == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matching files found.")
			return nil
		}
		paths, err := output.Dir(out).WriteReviews(report)
		for i, p := range paths {
			fmt.Fprintf(cmd.OutOrStdout(), "Code analysis report for file %s saved at: %s\n", filepath.Base(report.Keys()[i]), p)
		}
		return err
	},
}

var fixCmd = &cobra.Command{
	Use:   "fix <file>",
	Short: "Analyze an error in a file, suggest and validate a fix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, _ := cmd.Flags().GetString("error")
		out, _ := cmd.Flags().GetString("out")

		ctx, stop := signalContext(cmd.Context())
		defer stop()
		svc, err := service(ctx)
		if err != nil {
			return err
		}
		report, err := svc.RunSingle(ctx, agent.KindBugFix, agent.Refs{args[0], msg})
		if err != nil {
			return err
		}
		final, _ := report.Get(agent.FieldFinalReport)
		fmt.Fprintln(cmd.OutOrStdout(), final)
		if out != "" {
			p, err := output.Dir(out).Write(filepath.Base(args[0])+output.BugFixSuffix, final)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bug fix report saved at: %s\n", p)
		}
		return nil
	},
}

// consoleIn is the reader approval commands take input from; tests replace it.
var consoleIn io.Reader = os.Stdin

func console(cmd *cobra.Command) pipeline.Signal {
	plain, _ := cmd.Flags().GetBool("plain")
	return approval.NewConsole(consoleIn, cmd.OutOrStdout(), !plain)
}

var casesCmd = &cobra.Command{
	Use:   "cases <file>",
	Short: "Turn a case study into an approved task list",
	Long: `Generate a task list from a case study and revise it with your feedback
until you approve it with the approval token (default /yes). With --plan the
approved task list is handed to the project planner.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withPlan, _ := cmd.Flags().GetBool("plan")

		ctx, stop := signalContext(cmd.Context())
		defer stop()
		svc, err := service(ctx)
		if err != nil {
			return err
		}
		sig := console(cmd)
		tasks, err := svc.RunApproval(ctx, agent.KindCaseAnalysis, args[0], sig)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nApproved task list:\n\n%s\n", tasks)
		if !withPlan {
			return nil
		}
		plan, err := svc.RunApproval(ctx, agent.KindProjectPlan, tasks, sig)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nApproved project plan:\n\n%s\n", plan)
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Turn a task list file into an approved project plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		svc, err := service(ctx)
		if err != nil {
			return err
		}
		tasks, err := svc.Source().Read(ctx, args[0])
		if err != nil {
			return err
		}
		plan, err := svc.RunApproval(ctx, agent.KindProjectPlan, tasks, console(cmd))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nApproved project plan:\n\n%s\n", plan)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Review files under a directory whenever they change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exts, _ := cmd.Flags().GetStringSlice("ext")
		ignore, _ := cmd.Flags().GetStringSlice("ignore")
		out, _ := cmd.Flags().GetString("out")
		if !cmd.Flags().Changed("ext") {
			exts = cfg.Review.Extensions
		}
		if !cmd.Flags().Changed("ignore") {
			ignore = cfg.Review.Ignore
		}
		if out == "" {
			out = cfg.Review.OutputDir
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()
		svc, err := service(ctx)
		if err != nil {
			return err
		}
		w, err := watch.New(args[0], watchOptions(exts, ignore, out))
		if err != nil {
			return err
		}
		return w.Run(ctx, reviewOnChange(svc, output.Dir(out), cmd.OutOrStdout()))
	},
}

// watchOptions keeps the watcher away from the reports it triggers.
func watchOptions(exts, ignore []string, out string) watch.Options {
	opts := watch.Options{
		Exts:         exts,
		Ignore:       ignore,
		SkipSuffixes: []string{output.ReviewSuffix, output.BugFixSuffix},
	}
	if out != "" {
		opts.SkipDirs = []string{out}
	}
	return opts
}

// reviewOnChange reviews one changed file and saves its report. Failures
// are logged so the watch keeps running.
func reviewOnChange(svc *agent.Service, dir output.Dir, w io.Writer) watch.Handler {
	return func(ctx context.Context, path string) {
		report, err := svc.RunSingle(ctx, agent.KindCodeReview, agent.Refs{path})
		if err != nil {
			log.Error("review %s: %v", path, err)
			return
		}
		paths, err := dir.WriteReviews(report)
		if err != nil {
			log.Error("save review of %s: %v", path, err)
			return
		}
		for _, p := range paths {
			fmt.Fprintf(w, "Code analysis report for file %s saved at: %s\n", filepath.Base(path), p)
		}
	}
}

// exitCode maps a failure to a process exit status.
func exitCode(err error) int {
	switch pipeline.KindOf(err) {
	case pipeline.KindInvalidRequest:
		return 2
	case pipeline.KindInputNotFound, pipeline.KindInputReadError:
		return 3
	case pipeline.KindModelUnavailable, pipeline.KindModelTimeout:
		return 4
	case pipeline.KindUnboundedApprovalLoop:
		return 5
	case pipeline.KindCanceled:
		return 130
	}
	return 1
}

func init() {
	for _, c := range []*cobra.Command{reviewCmd, watchCmd} {
		c.Flags().StringSlice("ext", nil, "file extensions to include, e.g. .py,.go (default: all)")
		c.Flags().StringSlice("ignore", nil, "file or directory names to skip")
		c.Flags().StringP("out", "o", "", "output directory for reports")
	}
	fixCmd.Flags().StringP("error", "e", "", "the error message or traceback")
	_ = fixCmd.MarkFlagRequired("error")
	fixCmd.Flags().StringP("out", "o", "", "also save the report in this directory")
	for _, c := range []*cobra.Command{casesCmd, planCmd} {
		c.Flags().Bool("plain", false, "print drafts without markdown rendering")
	}
	casesCmd.Flags().Bool("plan", false, "hand the approved task list to the project planner")
}
