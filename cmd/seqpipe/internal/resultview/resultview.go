// Copyright (c) seqpipe contributors 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package resultview renders a launcher.Results tree to a terminal,
// one status line per step, indented by nesting depth. It is the
// CLI's own concern: internal/launcher returns plain data and knows
// nothing about how it is displayed.
package resultview

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/go-multierror"

	"github.com/xting1996/seqpipe/internal/launcher"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
)

// Write renders results to w, one line per step. A non-zero step
// prints its exit code; a step whose Error is a context error (the
// launcher's cancellation skip) is rendered as skipped, not failed.
func Write(w io.Writer, results launcher.Results) {
	writeIndented(w, results, "")
}

func writeIndented(w io.Writer, results launcher.Results, indent string) {
	for _, r := range results {
		writeOne(w, r, indent)
	}
}

func writeOne(w io.Writer, r *launcher.Result, indent string) {
	label := r.Label
	if label == "" {
		label = "[step]"
	}

	switch {
	case r.ExitCode == 0:
		fmt.Fprintf(w, "%s%s %s\n", indent, successStyle.Render("✓"), labelStyle.Render(label)) //nolint:errcheck
	case r.ExitCode == -1 && (errors.Is(r.Error, context.Canceled) || errors.Is(r.Error, context.DeadlineExceeded)):
		fmt.Fprintf(w, "%s%s %s (%s)\n", indent, skippedStyle.Render("~"), labelStyle.Render(label), r.Error) //nolint:errcheck
	default:
		fmt.Fprintf(w, "%s%s %s (exit code: %d)\n", //nolint:errcheck
			indent, failedStyle.Render("✗"), labelStyle.Render(label), r.ExitCode)
	}

	if r.StepID != "" {
		fmt.Fprintf(w, "%s  step %s\n", indent, r.StepID) //nolint:errcheck
	}

	writeIndented(w, r.Children, indent+"  ")
}

// VerboseErrors flattens every failing leaf result's error into a
// single *multierror.Error, for the `--verbose` diagnostic dump (the
// launcher's single-status return contract is unaffected by this;
// it exists purely for display).
func VerboseErrors(results launcher.Results) *multierror.Error {
	var merr *multierror.Error

	collectErrors(results, &merr)

	return merr
}

func collectErrors(results launcher.Results, merr **multierror.Error) {
	for _, r := range results {
		if r.Error != nil {
			*merr = multierror.Append(*merr, fmt.Errorf("%s: %w", labelOrStep(r), r.Error))
		} else if r.ExitCode != 0 && len(r.Children) == 0 {
			*merr = multierror.Append(*merr, fmt.Errorf("%s: exit code %d", labelOrStep(r), r.ExitCode))
		}

		collectErrors(r.Children, merr)
	}
}

func labelOrStep(r *launcher.Result) string {
	if r.Label != "" {
		return r.Label
	}

	return "step " + r.StepID
}
