// Copyright (c) seqpipe contributors 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run implements the `seqpipe run` command: load a pipe
// file, resolve shell-to-procedure calls, allocate a run directory,
// and hand the pipeline to the launcher.
package run

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/xting1996/seqpipe/cmd/seqpipe/internal/resultview"
	"github.com/xting1996/seqpipe/internal/ctxlog"
	"github.com/xting1996/seqpipe/internal/launcher"
	"github.com/xting1996/seqpipe/internal/pipeline"
	"github.com/xting1996/seqpipe/internal/runlog"
	"github.com/xting1996/seqpipe/internal/tui"
)

const (
	watchFlag       = "watch"
	verboseFlag     = "verbose"
	historyRootFlag = "history-root"
)

// Cmd is the `run` command: `seqpipe run <pipeline-file> [proc-name]
// [key=value ...]` (spec §6).
var Cmd = &cli.Command{
	Name:      "run",
	Usage:     "seqpipe run <pipeline-file> [proc-name] [key=value ...]",
	Arguments: []cli.Argument{},
	Description: `Run a pipe file's default block, or a single named procedure from it.

With only a file argument, the default (top-level) block runs. With a
second argument, that procedure runs instead, and any further
key=value arguments become environment variables for its shell steps.`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  watchFlag,
			Usage: "Show a live step tree while the pipeline runs",
		},
		&cli.BoolFlag{
			Name:  verboseFlag,
			Usage: "Print an aggregated diagnostic of every failing step, not just the first",
		},
		&cli.StringFlag{
			Name:  historyRootFlag,
			Usage: "Override the history root (defaults to $HOME/.seqpipe/history)",
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	posArgs := cmd.Args().Slice()
	if len(posArgs) == 0 {
		return cli.Exit("usage: seqpipe run <pipeline-file> [proc-name] [key=value ...]", 1)
	}

	fs := afero.NewOsFs()

	pl := pipeline.New(fs)

	if err := pl.Load(ctx, posArgs[0]); err != nil {
		logger.Error(err.Error())
		return cli.Exit("", 1)
	}

	if err := pl.FinalCheckAfterLoad(ctx); err != nil {
		logger.Error(err.Error())
		return cli.Exit("", 1)
	}

	root, err := historyRoot(cmd)
	if err != nil {
		logger.Error(err.Error())
		return cli.Exit("", 1)
	}

	mgr := runlog.New(fs, root)

	run, err := mgr.PrepareToRun(ctx)
	if err != nil {
		logger.Error(err.Error())
		return cli.Exit("", 1)
	}

	if err := mgr.WriteToHistoryLog(run); err != nil {
		logger.Error(err.Error())
		return cli.Exit("", 1)
	}

	if err := mgr.RecordSysInfo(run, pl.SaveString()); err != nil {
		logger.Warn("failed to record sysinfo", "error", err)
	}

	results, code := runPipeline(ctx, cmd, pl, run.Dir, posArgs[1:])

	mgr.CreateLastSymbolicLink(ctx, run.Dir)

	resultview.Write(cmd.Writer, results)

	if cmd.Bool(verboseFlag) {
		if merr := resultview.VerboseErrors(results); merr != nil {
			fmt.Fprintln(cmd.ErrWriter, merr) //nolint:errcheck
		}
	}

	if code != 0 {
		return cli.Exit("", code)
	}

	return nil
}

// runPipeline dispatches to the procedure named by rest[0], if any,
// otherwise the pipeline's default block; it runs under the TUI when
// --watch is set and no procedure was named (the TUI drives the
// default block directly and has no procedure-call entry point).
func runPipeline(ctx context.Context, cmd *cli.Command, pl *pipeline.Pipeline, logDir string, rest []string) (launcher.Results, int) {
	if len(rest) > 0 {
		args := pipeline.NewProcArgs()
		for _, kv := range rest[1:] {
			if name, value, ok := splitKeyValue(kv); ok {
				args.Add(name, value)
			}
		}

		l := launcher.New(pl, nil)

		return l.RunProcedure(ctx, logDir, rest[0], args)
	}

	if cmd.Bool(watchFlag) {
		runner := tui.NewRunner(ctx)
		l := launcher.New(pl, runner.GetReporter())

		return runner.Run(ctx, l, logDir)
	}

	l := launcher.New(pl, nil)

	return l.Run(ctx, logDir)
}

func splitKeyValue(s string) (name, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}

	return "", "", false
}

func historyRoot(cmd *cli.Command) (string, error) {
	if root := cmd.String(historyRootFlag); root != "" {
		return root, nil
	}

	return runlog.DefaultRoot()
}
