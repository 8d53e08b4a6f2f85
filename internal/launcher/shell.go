package launcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xting1996/seqpipe/internal/ctxlog"
	"github.com/xting1996/seqpipe/internal/pipeline"
	"github.com/xting1996/seqpipe/internal/progress"
	"github.com/xting1996/seqpipe/internal/signalbroker"
)

const shell = "/bin/sh"

// runShell acquires the next step id, opens its log file, spawns item
// through the system shell with merged stdout+stderr writing directly
// into that file, waits for completion, and returns the step's Result.
func (rc *runContext) runShell(item *pipeline.CommandItem, path []string) *Result {
	stepID := rc.counter.next()
	stepPath := append(append([]string{}, path...), stepID)

	res := &Result{StepID: stepID, Label: item.CmdLine}

	if err := rc.ctx.Err(); err != nil {
		res.Error = err
		res.ExitCode = -1

		rc.report(progress.Event{CommandPath: stepPath, Type: progress.EventSkipped, Message: item.CmdLine, Timestamp: time.Now()})

		return res
	}

	logger := ctxlog.Logger(rc.ctx).With("stepId", stepID, "cmdLine", item.CmdLine)

	rc.report(progress.Event{
		CommandPath: stepPath,
		Type:        progress.EventStarted,
		Message:     item.CmdLine,
		Timestamp:   time.Now(),
	})

	logPath := filepath.Join(rc.logDir, stepID+".log")

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		res.Error = fmt.Errorf("create log file %s: %w", logPath, err)
		res.ExitCode = -1

		rc.reportFailed(stepPath, res.Error)

		return res
	}

	defer f.Close() //nolint:errcheck // best-effort; the run already has its exit code

	res.StartTime = time.Now()

	fmt.Fprintf(f, "# step %s started %s\n# %s\n", stepID, res.StartTime.Format(ctxlog.TimeFormat), item.CmdLine)

	env := append(append([]string{}, os.Environ()...), rc.env...)

	ps, err := os.StartProcess(shell, []string{"sh", "-c", item.CmdLine}, &os.ProcAttr{
		Env:   env,
		Files: []*os.File{os.Stdin, f, f},
	})
	if err != nil {
		res.Error = fmt.Errorf("spawn %s: %w", shell, err)
		res.ExitCode = -1
		res.EndTime = time.Now()

		fmt.Fprintf(f, "# step %s failed to start: %v\n", stepID, err)
		rc.reportFailed(stepPath, res.Error)

		return res
	}

	sigCh := signalbroker.New(rc.ctx)
	done := make(chan struct{})

	go watchSignals(logger, ps, sigCh, done)

	logger.Debug("process started", "pid", ps.Pid)

	state, waitErr := ps.Wait()
	close(done)

	res.EndTime = time.Now()

	switch {
	case waitErr != nil:
		res.Error = waitErr
		res.ExitCode = -1
	case state.ExitCode() != 0:
		res.ExitCode = state.ExitCode()
	default:
		res.ExitCode = 0
	}

	fmt.Fprintf(f, "# step %s finished %s exit=%d\n", stepID, res.EndTime.Format(ctxlog.TimeFormat), res.ExitCode)

	if res.ExitCode != 0 {
		rc.reportFailed(stepPath, res.Error)
	} else {
		rc.report(progress.Event{
			CommandPath: stepPath,
			Type:        progress.EventCompleted,
			Message:     item.CmdLine,
			Timestamp:   res.EndTime,
			Data:        progress.EventData{ExitCode: res.ExitCode},
		})
	}

	return res
}

// watchSignals forwards the first delivered signal to ps, and kills it
// outright on a second signal of the same kind, mirroring the launcher's
// "second signal forcibly terminates" contract.
func watchSignals(logger *slog.Logger, ps *os.Process, sigCh chan os.Signal, done chan struct{}) {
	seen := make(map[os.Signal]struct{})

	for {
		select {
		case <-done:
			return
		case s, ok := <-sigCh:
			if !ok {
				return
			}

			if _, dup := seen[s]; dup {
				logger.Info("received duplicate signal, killing process", "signal", s.String())

				if err := ps.Kill(); err != nil && err != os.ErrProcessDone {
					logger.Info("failed to kill process", "error", err)
				}

				return
			}

			seen[s] = struct{}{}

			logger.Info("received signal, forwarding to process", "signal", s.String())

			if err := ps.Signal(s); err != nil {
				logger.Info("failed to signal process", "error", err)
			}
		}
	}
}

func (rc *runContext) report(event progress.Event) {
	if rc.reporter == nil {
		return
	}

	rc.reporter.Report(event)
}

func (rc *runContext) reportFailed(path []string, err error) {
	rc.report(progress.Event{
		CommandPath: path,
		Type:        progress.EventFailed,
		Timestamp:   time.Now(),
		Data:        progress.EventData{ExitCode: -1, Error: err},
	})
}
