// Package launcher walks a loaded pipeline, spawning shell children
// through the system shell, recursing into procedures and nested
// blocks, and collecting exit statuses. Serial blocks stop at the
// first failing child; parallel blocks run every child to completion
// and report the first-failing child in index order.
package launcher

import (
	"context"
	"errors"
	"time"

	"github.com/xting1996/seqpipe/internal/pipeline"
	"github.com/xting1996/seqpipe/internal/progress"
)

// ErrNoSuchProcedure is returned by RunProc when a procedure call
// references a name missing from the pipeline's procedure map. A
// procedure call produced by FinalCheckAfterLoad always names a known
// procedure; RunProcedure returns it for an unknown caller-supplied
// name.
var ErrNoSuchProcedure = errors.New("launcher: no such procedure")

// Result is the outcome of one dispatched item: a shell step, or an
// aggregate node for a procedure call or nested block.
type Result struct {
	StepID    string
	Label     string
	ExitCode  int
	Error     error
	StartTime time.Time
	EndTime   time.Time
	Children  Results
}

// Results is an ordered list of Result, in item-index order.
type Results []*Result

// HasError reports whether any result in the list, or any of its
// descendants, carries a non-zero exit code.
func (rs Results) HasError() bool {
	for _, r := range rs {
		if r.ExitCode != 0 {
			return true
		}

		if r.Children.HasError() {
			return true
		}
	}

	return false
}

// FirstError returns the first non-zero exit code found in item-index
// order, searching children depth-first, or 0 if every result
// succeeded.
func (rs Results) FirstError() int {
	for _, r := range rs {
		if r.ExitCode != 0 {
			return r.ExitCode
		}

		if code := r.Children.FirstError(); code != 0 {
			return code
		}
	}

	return 0
}

// runContext threads the values RunBlock/RunProc/RunShell need
// without widening every function's signature: the log directory for
// the run, the step counter, and the environment inherited from
// enclosing procedure calls.
type runContext struct {
	ctx      context.Context //nolint:containedctx // threaded value object, not a long-lived struct
	pl       *pipeline.Pipeline
	logDir   string
	counter  *counter
	env      []string
	reporter progress.ProgressReporter
}
