// Copyright (c) seqpipe contributors 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package parallelrun implements the `seqpipe parallel` command: an
// ad-hoc parallel block built directly from command-line arguments,
// with no pipe file involved.
package parallelrun

import (
	"context"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/xting1996/seqpipe/cmd/seqpipe/internal/resultview"
	"github.com/xting1996/seqpipe/internal/ctxlog"
	"github.com/xting1996/seqpipe/internal/launcher"
	"github.com/xting1996/seqpipe/internal/pipeline"
	"github.com/xting1996/seqpipe/internal/runlog"
)

// Cmd is the `parallel` command: `seqpipe parallel <command>
// [<command> ...]` (spec §6). Each argument is one shell command line;
// all of them run concurrently, and the launcher reports the
// first-failing one in argument order.
var Cmd = &cli.Command{
	Name:      "parallel",
	Usage:     "seqpipe parallel <command> [<command> ...]",
	Arguments: []cli.Argument{},
	Action:    actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	cmdLines := cmd.Args().Slice()
	if len(cmdLines) == 0 {
		return cli.Exit("usage: seqpipe parallel <command> [<command> ...]", 1)
	}

	fs := afero.NewOsFs()
	pl := pipeline.New(fs)

	if err := pl.SetDefaultBlock(cmdLines, true); err != nil {
		logger.Error(err.Error())
		return cli.Exit("", 1)
	}

	root, err := runlog.DefaultRoot()
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

	l := launcher.New(pl, nil)
	results, code := l.Run(ctx, run.Dir)

	mgr.CreateLastSymbolicLink(ctx, run.Dir)

	resultview.Write(cmd.Writer, results)

	if code != 0 {
		return cli.Exit("", code)
	}

	return nil
}
