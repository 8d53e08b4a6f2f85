// Copyright (c) seqpipe contributors 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package parallelrun

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/xting1996/seqpipe/internal/ctxlog"
)

func TestActionFunc_RunsEachArgumentConcurrently(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var out bytes.Buffer

	cmd := Cmd
	cmd.Writer = &out
	cmd.ErrWriter = &out

	ctx := ctxlog.New(context.Background(), ctxlog.DefaultLogger)
	err := cmd.Run(ctx, []string{"parallel", "true", "true"})

	require.NoError(t, err)
}

func TestActionFunc_FirstFailureInArgumentOrderSetsExitCode(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var out bytes.Buffer

	cmd := Cmd
	cmd.Writer = &out
	cmd.ErrWriter = &out

	ctx := ctxlog.New(context.Background(), ctxlog.DefaultLogger)
	err := cmd.Run(ctx, []string{"parallel", "exit 5", "exit 9"})

	require.Error(t, err)

	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 5, exitErr.ExitCode())
}

func TestActionFunc_NoArgsIsUsageError(t *testing.T) {
	var out bytes.Buffer

	cmd := Cmd
	cmd.Writer = &out
	cmd.ErrWriter = &out

	ctx := ctxlog.New(context.Background(), ctxlog.DefaultLogger)
	err := cmd.Run(ctx, []string{"parallel"})

	require.Error(t, err)
}
