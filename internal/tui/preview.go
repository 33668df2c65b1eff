package tui

import (
	"fmt"
	"strings"

	"github.com/khirayama/reader-sub001/internal/api"
)

func renderPreview(article *api.Article, width, height, scroll int) string {
	if article == nil {
		return lipglossCenter("Select an article", width, height)
	}

	contentWidth := width - 2
	if contentWidth < 10 {
		contentWidth = 10
	}

	title := previewTitleStyle.Width(contentWidth).Render(article.Title)
	source := previewSourceStyle.Render(
		fmt.Sprintf("%s · %s", article.Feed.Title, article.PublishedAt.Format("Jan 2, 2006")),
	)

	var badges []string
	if article.IsRead {
		badges = append(badges, "read")
	}
	if article.IsBookmarked {
		badges = append(badges, "bookmarked ★")
	}
	var state string
	if len(badges) > 0 {
		state = itemTimeStyle.Render(strings.Join(badges, " · "))
	}

	desc := article.Description
	if desc == "" {
		desc = "(No description available)"
	}
	body := previewBodyStyle.Width(contentWidth).Render(desc)

	link := previewLinkStyle.Width(contentWidth).Render(article.URL)

	content := title + "\n" + source + "\n"
	if state != "" {
		content += state + "\n"
	}
	content += "\n" + body + "\n" + link

	// Apply scroll by dropping leading lines
	lines := strings.Split(content, "\n")
	if scroll > len(lines)-1 {
		scroll = len(lines) - 1
	}
	if scroll > 0 {
		lines = lines[scroll:]
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}
