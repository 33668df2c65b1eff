package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/khirayama/reader-sub001/internal/stream"
)

// renderTabBar draws the view switcher: All, one tab per tag, and the
// selected feed when one is active. Unread counts are advisory, derived
// from loaded pages only.
func renderTabBar(tabs []stream.Tab, activeID string, width int) string {
	sep := tabSeparatorStyle.Render(" · ")

	var parts []string
	for _, tab := range tabs {
		label := tab.Label
		if tab.Unread > 0 {
			label = fmt.Sprintf("%s (%d)", tab.Label, tab.Unread)
		}
		style := tabInactiveStyle
		if tab.ID == activeID {
			style = tabActiveStyle
		}
		parts = append(parts, style.Render(label))
	}

	// Build row with · separators, stopping when we'd exceed width
	var row string
	for i, part := range parts {
		candidate := row
		if i > 0 {
			candidate += sep
		}
		candidate += part
		if lipgloss.Width(candidate) > width && row != "" {
			break
		}
		row = candidate
	}

	return tabBarStyle.Width(width).Render(row)
}
