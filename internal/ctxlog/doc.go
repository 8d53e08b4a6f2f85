// Copyright (c) seqpipe contributors 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog provides a context-aware logger that can be used to log messages.
// It uses the slog package for structured logging and supports different log levels.
//
// The default logger uses a pretty console handler to format the log messages in a human-readable
// way when stderr is a terminal, and a JSON handler otherwise.
package ctxlog
