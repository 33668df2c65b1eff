package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func renderStatusBar(articleCount int, viewLabel string, hasMore bool, width int, searching bool, refreshing bool) string {
	left := fmt.Sprintf(" %d articles", articleCount)
	if viewLabel != "" && viewLabel != "All" {
		left += " · " + viewLabel
	}
	if hasMore {
		left += " · more available"
	}

	right := " / search  f feed  m read  b mark  ? help  q quit "
	if searching {
		right = " esc cancel  enter search "
	}
	if refreshing {
		left += " (refreshing...)"
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + fmt.Sprintf("%*s", gap, "") + right

	return statusBarStyle.Width(width).Render(bar)
}
