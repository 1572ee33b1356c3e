package view

import (
	"github.com/charmbracelet/glamour"
)

// MarkdownStrategy renders assistant Markdown for the terminal.
type MarkdownStrategy struct {
	renderer *glamour.TermRenderer
}

// NewMarkdownStrategy builds a glamour-backed strategy. If the renderer
// cannot be initialized the strategy falls back to plain output rather than
// failing the whole client.
func NewMarkdownStrategy(wrap int) *MarkdownStrategy {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		r = nil
	}
	return &MarkdownStrategy{renderer: r}
}

func (m *MarkdownStrategy) Render(content string) string {
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return out
}
