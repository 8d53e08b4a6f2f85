// Copyright (c) seqpipe contributors 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package runlog allocates per-invocation run directories under a
// per-user history root, appends a line to the history index, keeps a
// `last` symlink pointing at the newest run, and records the sysinfo
// and canonical pipeline text a run starts with.
package runlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/xting1996/seqpipe/internal/ctxlog"
	"github.com/xting1996/seqpipe/internal/sysinfo"
)

const (
	historyLogName = "history.log"
	lastLinkName   = "last"
	sysinfoName    = "sysinfo.txt"
	pipelineName   = "pipeline.txt"
)

// Manager owns the history root: a directory holding history.log, the
// last symlink, and one subdirectory per run.
type Manager struct {
	fs   afero.Fs
	root string
}

// New returns a Manager rooted at root.
func New(fs afero.Fs, root string) *Manager {
	return &Manager{fs: fs, root: root}
}

// DefaultRoot returns $HOME/.seqpipe/history, the root used when the
// CLI is not given an override.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}

	return filepath.Join(home, ".seqpipe", "history"), nil
}

// Run is what PrepareToRun allocates: a run id, a secondary
// correlation id for cross-referencing in external tooling, the run's
// directory, and the time the run started.
type Run struct {
	ID            string
	CorrelationID string
	Dir           string
	StartTime     time.Time
}

// timeNow and osGetpid are seams over time.Now and os.Getpid so tests
// can pin UniqueID's clock and pid with gostub instead of asserting
// only on its format.
var (
	timeNow  = time.Now
	osGetpid = os.Getpid
)

// UniqueID returns a short lexicographically-sortable run id:
// YYYYMMDD-HHMMSS-<hostname>-<pid>.
func UniqueID() string {
	return fmt.Sprintf("%s-%s-%d",
		timeNow().Format("20060102-150405"), sysinfo.Hostname(), osGetpid())
}

// PrepareToRun creates the history root on first use, allocates a run
// id and directory, and creates that directory.
func (m *Manager) PrepareToRun(ctx context.Context) (*Run, error) {
	if err := m.fs.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("create history root %s: %w", m.root, err)
	}

	run := &Run{
		ID:            UniqueID(),
		CorrelationID: uuid.NewString(),
		StartTime:     time.Now(),
	}
	run.Dir = filepath.Join(m.root, run.ID)

	if err := m.fs.MkdirAll(run.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory %s: %w", run.Dir, err)
	}

	ctxlog.Debug(ctx, "prepared run directory", "id", run.ID, "dir", run.Dir)

	return run, nil
}

// WriteToHistoryLog appends one tab-separated record to history.log.
// The append happens before any step is spawned (spec's ordering
// guarantee), so callers must invoke this before launching the
// pipeline.
func (m *Manager) WriteToHistoryLog(run *Run) error {
	path := filepath.Join(m.root, historyLogName)

	f, err := m.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history log %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // best-effort close after a successful write

	line := fmt.Sprintf("%s\t%s\t%s\t%s\n",
		run.ID, sysinfo.Hostname(), run.StartTime.Format(time.RFC3339), sysinfo.FullCommandLine())

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write history log %s: %w", path, err)
	}

	return nil
}

// CreateLastSymbolicLink repoints the last symlink at runDir, removing
// any stale link first. This always operates on the real filesystem,
// independent of the afero.Fs the Manager was built with: the history
// root is real disk in every deployment, and a symlink has no
// representation in afero's in-memory backend. Failure is a warning,
// never a run-aborting error (spec's run-log manager contract).
func (m *Manager) CreateLastSymbolicLink(ctx context.Context, runDir string) {
	linkPath := filepath.Join(m.root, lastLinkName)

	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		ctxlog.Warn(ctx, "failed to remove stale last symlink", "path", linkPath, "error", err)
	}

	if err := os.Symlink(runDir, linkPath); err != nil {
		ctxlog.Warn(ctx, "failed to create last symlink", "path", linkPath, "error", err)
	}
}

// RecordSysInfo writes sysinfo.txt (host, command line, working
// directory, pid, correlation id) and pipeline.txt (the effective
// pipeline's canonical text) into run's directory.
func (m *Manager) RecordSysInfo(run *Run, pipelineSaveString string) error {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "unknown"
	}

	info := fmt.Sprintf("host: %s\ncmdline: %s\ncwd: %s\npid: %d\ncorrelation: %s\n",
		sysinfo.Hostname(), sysinfo.FullCommandLine(), cwd, os.Getpid(), run.CorrelationID)

	if err := afero.WriteFile(m.fs, filepath.Join(run.Dir, sysinfoName), []byte(info), 0o644); err != nil {
		return fmt.Errorf("write sysinfo.txt: %w", err)
	}

	if err := afero.WriteFile(m.fs, filepath.Join(run.Dir, pipelineName), []byte(pipelineSaveString), 0o644); err != nil {
		return fmt.Errorf("write pipeline.txt: %w", err)
	}

	return nil
}

// HistoryEntry is one parsed line of history.log.
type HistoryEntry struct {
	ID        string
	Host      string
	StartTime string
	CmdLine   string
}

// History returns every recorded run, oldest first, or nil (not an
// error) if no run has ever been recorded.
func (m *Manager) History() ([]HistoryEntry, error) {
	path := filepath.Join(m.root, historyLogName)

	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("read history log %s: %w", path, err)
	}

	var entries []HistoryEntry

	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, "\t", 4)
		if len(fields) != 4 {
			continue
		}

		entries = append(entries, HistoryEntry{ID: fields[0], Host: fields[1], StartTime: fields[2], CmdLine: fields[3]})
	}

	return entries, nil
}

// LastRunDir resolves the last symlink to the directory it points at.
func (m *Manager) LastRunDir() (string, error) {
	linkPath := filepath.Join(m.root, lastLinkName)

	target, err := os.Readlink(linkPath)
	if err != nil {
		return "", fmt.Errorf("read last symlink %s: %w", linkPath, err)
	}

	return target, nil
}
