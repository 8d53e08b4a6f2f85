// Copyright (c) seqpipe contributors 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides a real-time terminal view of a pipeline run. It
// displays a live tree of steps keyed by their hierarchical step id,
// each with a status indicator and the last output line seen so far.
//
// The view is driven entirely by progress events from the launcher; it
// holds no execution logic of its own.
package tui
