// Copyright (c) seqpipe contributors 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xting1996/seqpipe/internal/launcher"
	"github.com/xting1996/seqpipe/internal/progress"
)

// Runner owns a bubbletea program and the reporter feeding it, and
// drives a launcher run alongside it.
type Runner struct {
	model    *Model
	program  *tea.Program
	reporter *Reporter
	mutex    sync.Mutex
}

// Reporter implements progress.ProgressReporter by forwarding every
// event to a bubbletea program as a ProgressEventMsg. Its zero value
// is usable: Report and Close on an unset program are no-ops.
type Reporter struct {
	program *tea.Program
	closed  bool
	mutex   sync.RWMutex
}

// NewReporter returns a Reporter that forwards to program.
func NewReporter(program *tea.Program) *Reporter {
	return &Reporter{program: program}
}

// Report implements progress.ProgressReporter.
func (r *Reporter) Report(event progress.Event) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.closed || r.program == nil {
		return
	}

	r.program.Send(ProgressEventMsg{Event: event})
}

// Close implements progress.ProgressReporter.
func (r *Reporter) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.closed = true
}

// NewRunner returns a Runner with its own Model and bubbletea program,
// wired to receive progress events through a Reporter.
func NewRunner(ctx context.Context) *Runner {
	model := NewModel(ctx)
	program := tea.NewProgram(model, tea.WithAltScreen())
	reporter := NewReporter(program)

	model.SetReporter(reporter)

	return &Runner{
		model:    model,
		program:  program,
		reporter: reporter,
	}
}

// GetReporter returns the reporter that feeds this runner's program.
func (r *Runner) GetReporter() progress.ProgressReporter {
	return r.reporter
}

type runOutcome struct {
	results launcher.Results
	code    int
}

// Run starts the TUI and l.Run(ctx, logDir) concurrently, forwards the
// run's outcome to the program once it finishes, and blocks until the
// user quits the TUI (or ctx is cancelled).
func (r *Runner) Run(ctx context.Context, l *launcher.Launcher, logDir string) (launcher.Results, int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	runDone := make(chan runOutcome, 1)

	go func() {
		results, code := l.Run(ctx, logDir)
		runDone <- runOutcome{results: results, code: code}
	}()

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	var outcome runOutcome

	select {
	case outcome = <-runDone:
		r.program.Send(CommandCompletedMsg{Results: outcome.results, Code: outcome.code})

		<-tuiDone
		r.reporter.Close()

	case <-tuiDone:
		r.reporter.Close()

		select {
		case outcome = <-runDone:
		case <-ctx.Done():
			outcome = runOutcome{code: -1}
		}

	case <-ctx.Done():
		r.reporter.Close()
		r.program.Quit()

		select {
		case outcome = <-runDone:
		default:
			outcome = runOutcome{code: -1}
		}

		<-tuiDone
	}

	return outcome.results, outcome.code
}

// RunWithoutTUI runs l headlessly: whatever reporter l was constructed
// with (including none) still receives progress events. It is
// equivalent to l.Run(ctx, logDir).
func RunWithoutTUI(ctx context.Context, l *launcher.Launcher, logDir string) (launcher.Results, int) {
	return l.Run(ctx, logDir)
}
