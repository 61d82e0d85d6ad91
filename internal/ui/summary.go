// Package ui renders commit summaries for the CLI.
package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/epuerta/applypatch/pkg/patch"
)

// Summary styles
var (
	addedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	updatedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")).
			Bold(true)

	deletedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	moveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6"))
)

// RenderCommit formats a commit as a one-line-per-file summary with
// A/M/D status letters and line stats, in stable path order.
func RenderCommit(commit patch.Commit) string {
	paths := make([]string, 0, len(commit.Changes))
	for path := range commit.Changes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		change := commit.Changes[path]
		switch change.Type {
		case patch.ActionAdd:
			b.WriteString(addedStyle.Render("A " + path))
			b.WriteString(statsStyle.Render(fmt.Sprintf(" (+%d)", countLines(change.NewContent))))
		case patch.ActionDelete:
			b.WriteString(deletedStyle.Render("D " + path))
			b.WriteString(statsStyle.Render(fmt.Sprintf(" (-%d)", countLines(change.OldContent))))
		case patch.ActionUpdate:
			b.WriteString(updatedStyle.Render("M " + path))
			if change.MovePath != "" {
				b.WriteString(moveStyle.Render(" -> " + change.MovePath))
			}
			added, deleted := diffStats(change.OldContent, change.NewContent)
			b.WriteString(statsStyle.Render(fmt.Sprintf(" (+%d -%d)", added, deleted)))
		}
		b.WriteByte('\n')
	}

	return strings.TrimRight(b.String(), "\n")
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Split(content, "\n"))
}

// diffStats gives a coarse added/deleted count from line totals. It is a
// display hint, not a real diff.
func diffStats(oldContent, newContent string) (added, deleted int) {
	oldCount := countLines(oldContent)
	newCount := countLines(newContent)
	if newCount > oldCount {
		return newCount - oldCount, 0
	}
	return 0, oldCount - newCount
}
