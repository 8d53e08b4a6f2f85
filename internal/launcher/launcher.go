package launcher

import (
	"context"
	"fmt"

	"github.com/xting1996/seqpipe/internal/ctxlog"
	"github.com/xting1996/seqpipe/internal/pipeline"
	"github.com/xting1996/seqpipe/internal/progress"
)

// Launcher walks a loaded pipeline's blocks, dispatching shell items
// as child processes and recursing into procedure calls and nested
// blocks.
type Launcher struct {
	pipeline *pipeline.Pipeline
	reporter progress.ProgressReporter
}

// New returns a Launcher bound to pl. A nil reporter is replaced with
// a no-op one.
func New(pl *pipeline.Pipeline, reporter progress.ProgressReporter) *Launcher {
	if reporter == nil {
		reporter = progress.NewNullReporter()
	}

	return &Launcher{pipeline: pl, reporter: reporter}
}

// Run executes the pipeline's default block, writing step logs under
// logDir. It returns the step results and the overall exit status: 0
// on success, the first non-zero step exit code otherwise.
func (l *Launcher) Run(ctx context.Context, logDir string) (Results, int) {
	block, err := l.pipeline.Block(0)
	if err != nil {
		ctxlog.Error(ctx, "launcher: missing default block", "error", err)

		return nil, 1
	}

	rc := &runContext{
		ctx:      ctx,
		pl:       l.pipeline,
		logDir:   logDir,
		counter:  newCounter(),
		reporter: l.reporter,
	}

	results := rc.runBlock(block, nil)

	return results, results.FirstError()
}

// RunProcedure executes procName directly instead of the pipeline's
// default block, exporting args as environment variables for its
// descendant shell items. Used by the CLI's `seqpipe run <file>
// <proc-name> [key=value ...]` form (spec §6).
func (l *Launcher) RunProcedure(ctx context.Context, logDir, procName string, args *pipeline.ProcArgs) (Results, int) {
	rc := &runContext{
		ctx:      ctx,
		pl:       l.pipeline,
		logDir:   logDir,
		counter:  newCounter(),
		reporter: l.reporter,
	}

	res := rc.runProc(&pipeline.CommandItem{Kind: pipeline.Proc, ProcName: procName, Args: args}, nil)
	results := Results{res}

	return results, results.FirstError()
}

// runBlock dispatches block's items according to its serial/parallel
// discipline and returns their results in item-index order.
func (rc *runContext) runBlock(block *pipeline.Block, path []string) Results {
	rc.counter.push()
	defer rc.counter.pop()

	if block.Parallel {
		return rc.runParallel(block, path)
	}

	return rc.runSerial(block, path)
}

// runSerial runs items in order, stopping at the first non-zero status.
func (rc *runContext) runSerial(block *pipeline.Block, path []string) Results {
	results := make(Results, 0, len(block.Items))

	for _, item := range block.Items {
		res := rc.dispatch(item, path)
		results = append(results, res)

		if res.ExitCode != 0 {
			break
		}
	}

	return results
}

// runParallel dispatches every item concurrently, waits for all of
// them, and returns their results in item-index order regardless of
// completion order.
func (rc *runContext) runParallel(block *pipeline.Block, path []string) Results {
	results := make(Results, len(block.Items))
	done := make(chan int, len(block.Items))

	rc.counter.mu.Lock()
	base := append([]int{}, rc.counter.stack...)
	rc.counter.mu.Unlock()

	for i, item := range block.Items {
		i, item := i, item

		// Each branch gets its own counter, positioned so that its item
		// takes ordinal i+1 at this depth whatever order the goroutines
		// run in; nested blocks inside the branch push onto that copy.
		stack := append([]int{}, base...)
		stack[len(stack)-1] = i
		branch := *rc
		branch.counter = &counter{stack: stack}

		go func() {
			results[i] = branch.dispatch(item, path)
			done <- i
		}()
	}

	for range block.Items {
		<-done
	}

	return results
}

// dispatch routes a single item to the handler for its kind. Every
// item, regardless of kind, consumes the next ordinal at this depth.
func (rc *runContext) dispatch(item *pipeline.CommandItem, path []string) *Result {
	switch item.Kind {
	case pipeline.Shell:
		return rc.runShell(item, path)
	case pipeline.Proc:
		rc.counter.next()

		return rc.runProc(item, path)
	case pipeline.BlockRef:
		rc.counter.next()

		return rc.runBlockRef(item, path)
	default:
		rc.counter.next()

		return &Result{Error: fmt.Errorf("launcher: unknown item kind %v", item.Kind), ExitCode: 1}
	}
}

// runProc resolves item's procedure, exports its arguments into the
// environment inherited by descendant shell items, and recurses into
// the procedure's block.
func (rc *runContext) runProc(item *pipeline.CommandItem, path []string) *Result {
	block, err := rc.pl.ProcedureBlock(item.ProcName)
	if err != nil {
		return &Result{Label: item.ProcName, Error: fmt.Errorf("%w: %s", ErrNoSuchProcedure, item.ProcName), ExitCode: 1}
	}

	childEnv := append([]string{}, rc.env...)

	if item.Args != nil {
		for _, k := range item.Args.Keys() {
			childEnv = append(childEnv, k+"="+item.Args.Get(k))
		}
	}

	child := &runContext{
		ctx:      rc.ctx,
		pl:       rc.pl,
		logDir:   rc.logDir,
		counter:  rc.counter,
		env:      childEnv,
		reporter: rc.reporter,
	}

	children := child.runBlock(block, append(path, item.ProcName))

	return &Result{Label: item.ProcName, Children: children, ExitCode: children.FirstError()}
}

// runBlockRef inlines a nested block referenced by index.
func (rc *runContext) runBlockRef(item *pipeline.CommandItem, path []string) *Result {
	block, err := rc.pl.Block(item.BlockIndex)
	if err != nil {
		return &Result{Error: fmt.Errorf("launcher: %w", err), ExitCode: 1}
	}

	children := rc.runBlock(block, path)

	return &Result{Children: children, ExitCode: children.FirstError()}
}
