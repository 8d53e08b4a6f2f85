// Copyright (c) seqpipe contributors 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package history implements the `seqpipe history`/`seqpipe log`
// command: list past runs from the history index, or page through one
// run's recorded step logs.
package history

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/xting1996/seqpipe/internal/ctxlog"
	"github.com/xting1996/seqpipe/internal/runlog"
)

const lastArg = "last"

var (
	idStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Cmd is the `history`/`log` command: `seqpipe history [run-id|last]`
// (spec §6).
var Cmd = &cli.Command{
	Name:      "history",
	Aliases:   []string{"log"},
	Usage:     "seqpipe history [run-id|last]",
	Arguments: []cli.Argument{},
	Action:    actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	root, err := runlog.DefaultRoot()
	if err != nil {
		logger.Error(err.Error())
		return cli.Exit("", 1)
	}

	fs := afero.NewOsFs()
	mgr := runlog.New(fs, root)

	args := cmd.Args().Slice()
	if len(args) == 0 {
		return listRuns(cmd.Writer, mgr)
	}

	runDir, err := resolveRunDir(mgr, root, args[0])
	if err != nil {
		logger.Error(err.Error())
		return cli.Exit("", 1)
	}

	return pageRun(cmd.Writer, fs, runDir)
}

func resolveRunDir(mgr *runlog.Manager, root, id string) (string, error) {
	if id == lastArg {
		return mgr.LastRunDir()
	}

	return filepath.Join(root, id), nil
}

// listRuns prints the recorded history, newest first, paging through
// a terminal with an interactive prompt between screenfuls.
func listRuns(w io.Writer, mgr *runlog.Manager) error {
	entries, err := mgr.History()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no runs recorded yet")) //nolint:errcheck
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].StartTime > entries[j].StartTime })

	return page(w, len(entries), func(i int) string {
		e := entries[i]
		return fmt.Sprintf("%s  %s  %s  %s", idStyle.Render(e.ID), e.Host, e.StartTime, dimStyle.Render(e.CmdLine))
	})
}

// pageRun prints a run's sysinfo, pipeline text, and the list of step
// logs it recorded.
func pageRun(w io.Writer, fs afero.Fs, runDir string) error {
	if info, err := fs.Stat(runDir); err != nil || !info.IsDir() {
		return cli.Exit(fmt.Sprintf("no such run directory: %s", runDir), 1)
	}

	fmt.Fprintln(w, idStyle.Render(runDir)) //nolint:errcheck

	for _, name := range []string{"sysinfo.txt", "pipeline.txt"} {
		data, err := afero.ReadFile(fs, filepath.Join(runDir, name))
		if err != nil {
			continue
		}

		fmt.Fprintln(w, dimStyle.Render("--- "+name+" ---")) //nolint:errcheck
		fmt.Fprint(w, string(data))                          //nolint:errcheck
	}

	entries, err := afero.ReadDir(fs, runDir)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var stepLogs []string

	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".log" {
			stepLogs = append(stepLogs, e.Name())
		}
	}

	sort.Strings(stepLogs)

	return page(w, len(stepLogs), func(i int) string {
		return dimStyle.Render("--- " + stepLogs[i] + " ---")
	})
}

// pageSize is how many lines are shown before the pager prompts for
// more, matching a typical terminal's default height.
const pageSize = 20

// page prints n lines, produced lazily by render, pausing for a
// keypress every pageSize lines when w is a terminal. Grounded on a
// liner-based debug-mode prompt loop: a liner.Liner reads one line at
// a time and stops on Ctrl+C or an explicit quit.
func page(w io.Writer, n int, render func(i int) string) error {
	interactive := isInteractive(w)

	var line *liner.State
	if interactive {
		line = liner.NewLiner()
		defer line.Close() //nolint:errcheck

		line.SetCtrlCAborts(true)
	}

	for i := 0; i < n; i++ {
		fmt.Fprintln(w, render(i)) //nolint:errcheck

		if interactive && i > 0 && (i+1)%pageSize == 0 && i != n-1 {
			if answer, err := line.Prompt("-- more (enter), q to quit -- "); err != nil || answer == "q" {
				return nil
			}
		}
	}

	return nil
}

func isInteractive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return liner.TerminalSupported() && term.IsTerminal(int(f.Fd()))
}
