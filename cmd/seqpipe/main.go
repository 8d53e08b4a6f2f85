// Copyright (c) seqpipe contributors 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the seqpipe command-line interface (CLI).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/xting1996/seqpipe"
	"github.com/xting1996/seqpipe/cmd/seqpipe/history"
	"github.com/xting1996/seqpipe/cmd/seqpipe/parallelrun"
	"github.com/xting1996/seqpipe/cmd/seqpipe/run"
	"github.com/xting1996/seqpipe/internal/ctxlog"
	"github.com/xting1996/seqpipe/internal/signalbroker"
)

// versionCmd prints the build's version and commit, the CLI's entry
// point for `seqpipe version` (spec §6). rootCmd's own Version field
// already serves `seqpipe --version`; this is the named subcommand.
var versionCmd = &cli.Command{
	Name: "version",
	Action: func(_ context.Context, cmd *cli.Command) error {
		fmt.Fprintf(cmd.Writer, "seqpipe %s (commit: %s)\n", seqpipe.Version, seqpipe.Commit) //nolint:errcheck
		return nil
	},
}

// rootCmd is the root command for the CLI.
var rootCmd = &cli.Command{
	Commands: []*cli.Command{
		run.Cmd,
		parallelrun.Cmd,
		history.Cmd,
		versionCmd,
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "seqpipe",
	Description: `seqpipe runs shell pipelines described in a small bracket-delimited
file format: sequential and parallel blocks of shell commands, composed into
named procedures and called from one another, with every run recorded under
a per-user history directory.`,
	Usage:                 "seqpipe run mypipeline.pipe",
	Copyright:             "Copyright (c) seqpipe contributors 2025. All rights reserved.",
	EnableShellCompletion: true,
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, cancel)

	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", seqpipe.Version, seqpipe.Commit)

	err := rootCmd.Run(ctx, os.Args) // err is handled by the cli framework

	if ctx.Err() != nil {
		ctxlog.Logger(ctx).Error("command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1)
	}

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)

		var coder cli.ExitCoder
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}

		os.Exit(1)
	}

	ctxlog.Logger(ctx).Info("command completed successfully")
}
