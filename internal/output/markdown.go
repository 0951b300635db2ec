package output

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders markdown for the terminal. When rendering fails the
// raw text comes back unstyled, so review summaries always print.
func Markdown(text string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n") + "\n"
}
