// Copyright (c) seqpipe contributors 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/xting1996/seqpipe/internal/launcher"
	"github.com/xting1996/seqpipe/internal/progress"
)

const (
	minStatusBarAvailableHeight = 10
	minViewportWidth            = 20
	ellipsis                    = "..."
	commandDurationRounding     = 100 * time.Millisecond
)

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, m.spinner.Tick)
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd

		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mutex.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.resetScrollIfNeeded()
		m.mutex.Unlock()

		return m, nil

	case ProgressEventMsg:
		return m, m.processProgressEvent(msg.Event)

	case CommandCompletedMsg:
		m.mutex.Lock()
		m.completed = true
		m.results = msg.Results
		m.mutex.Unlock()

		return m, nil

	case tea.QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// ProgressEventMsg wraps a progress event for the tea framework.
type ProgressEventMsg struct {
	Event progress.Event
}

// CommandCompletedMsg indicates that the launcher run has finished.
type CommandCompletedMsg struct {
	Results launcher.Results
	Code    int
}

// handleKeyPress processes keyboard input: scrolling keys move the
// viewport window over the rendered tree, q or ctrl+c quits, and any
// other key is ignored.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		m.scrollOffset--
	case "down", "j":
		m.scrollOffset++
	case "pgup":
		m.scrollOffset -= m.getViewportHeight()
	case "pgdown":
		m.scrollOffset += m.getViewportHeight()
	case "home":
		m.scrollOffset = 0
	case "end":
		m.scrollOffset = m.calculateMaxScrollOffset()
	}

	m.resetScrollIfNeeded()

	return m, nil
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	if m.quitting {
		return "shutting down...\n"
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	var content strings.Builder

	m.renderCommandTree(&content, m.rootNode, "", true)

	if m.completed {
		content.WriteString("\n")

		if m.results.HasError() {
			content.WriteString(m.styles.Failed.Render("run finished with errors"))
		} else {
			content.WriteString(m.styles.Success.Render("run finished successfully"))
		}

		content.WriteString("\n")
	}

	lines := strings.Split(strings.TrimRight(content.String(), "\n"), "\n")
	m.totalLines = len(lines)
	m.resetScrollIfNeeded()

	viewportHeight := m.getViewportHeight()
	start := m.scrollOffset
	end := min(start+viewportHeight, len(lines))

	var view strings.Builder

	view.WriteString(m.styles.Title.Render("seqpipe"))
	view.WriteString("\n")
	view.WriteString(strings.Join(lines[start:end], "\n"))
	view.WriteString("\n")

	if m.height > minStatusBarAvailableHeight {
		helpText := "up/down or j/k to scroll, pgup/pgdn for pages, home/end to jump, q to quit"
		if m.completed {
			helpText = "up/down or j/k to scroll, q to quit"
		}

		view.WriteString(m.styles.Help.Render(helpText))
	}

	return view.String()
}

// renderCommandTree recursively renders the command tree.
func (m *Model) renderCommandTree(b *strings.Builder, node *CommandNode, prefix string, isLast bool) {
	if node == nil {
		return
	}

	// Skip rendering the root node itself
	if len(node.Path) == 0 {
		for i, child := range node.Children {
			m.renderCommandTree(b, child, "", i == len(node.Children)-1)
		}

		return
	}

	m.renderCommandNode(b, node, prefix, isLast)

	if len(node.Children) > 0 {
		childPrefix := prefix
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}

		for i, child := range node.Children {
			m.renderCommandTree(b, child, childPrefix, i == len(node.Children)-1)
		}
	}
}

// renderCommandNode renders a single command node with inline output display.
func (m *Model) renderCommandNode(b *strings.Builder, node *CommandNode, prefix string, isLast bool) {
	status, name, output, errorMsg, startTime, endTime := node.GetDisplayInfo()

	connector := "├── "
	if isLast {
		connector = "└── "
	}

	var statusIcon string

	var styledName string

	switch status {
	case StatusPending:
		statusIcon = "⏳"
		styledName = m.styles.Pending.Render(name)
	case StatusRunning:
		statusIcon = m.spinner.View()
		styledName = m.styles.Running.Render(name)
	case StatusSuccess:
		statusIcon = "✅"
		styledName = m.styles.Success.Render(name)
	case StatusFailed:
		statusIcon = "❌"
		styledName = m.styles.Failed.Render(name)
	default:
		statusIcon = "?"
		styledName = m.styles.Pending.Render(name)
	}

	treePrefix := m.styles.TreeBranch.Render(prefix + connector)
	leftSide := fmt.Sprintf("%s %s", statusIcon, styledName)

	if startTime != nil {
		elapsed := time.Since(*startTime)
		if endTime != nil {
			elapsed = endTime.Sub(*startTime)
		}

		leftSide += m.styles.Output.Render(fmt.Sprintf(" (%v)", elapsed.Round(commandDurationRounding)))
	}

	var rightSide string

	switch {
	case errorMsg != "" && status == StatusFailed:
		rightSide = m.styles.Error.Render(fmt.Sprintf("error: %s", errorMsg))
	case output != "" && status == StatusRunning:
		rightSide = m.styles.Output.Render(output)
	}

	availableWidth := m.width - len(treePrefix) - 2 //nolint:mnd // prefix plus a little padding
	if availableWidth < minViewportWidth {
		availableWidth = minViewportWidth
	}

	leftWidth := availableWidth / 2 //nolint:mnd
	rightWidth := availableWidth - leftWidth

	if len(leftSide) > leftWidth {
		if leftWidth > len(ellipsis) {
			leftSide = leftSide[:leftWidth-len(ellipsis)] + ellipsis
		} else {
			leftSide = leftSide[:leftWidth]
		}
	}

	if len(rightSide) > rightWidth {
		if rightWidth > len(ellipsis) {
			rightSide = rightSide[:rightWidth-len(ellipsis)] + ellipsis
		} else {
			rightSide = rightSide[:rightWidth]
		}
	}

	paddedLeftSide := leftSide + strings.Repeat(" ", max(0, leftWidth-len(leftSide)))

	b.WriteString(treePrefix)
	b.WriteString(paddedLeftSide)

	if rightSide != "" {
		b.WriteString(rightSide)
	}

	b.WriteString("\n")
}
