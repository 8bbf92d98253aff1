package export

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// RenderTerminal styles Markdown for an ANSI terminal. wordWrap <= 0 uses 80.
func RenderTerminal(markdown string, wordWrap int) (string, error) {
	if wordWrap <= 0 {
		wordWrap = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
