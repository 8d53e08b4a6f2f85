// Copyright (c) seqpipe contributors 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress provides real-time progress reporting for command execution.
// It enables real-time TUI updates by allowing commands to emit progress events
// during execution while maintaining backward compatibility with the existing
// result-based system.
package progress
