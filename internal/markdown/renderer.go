package markdown

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// RendererConfig holds configuration for markdown rendering
type RendererConfig struct {
	Width int
	// Style names a glamour standard style ("dark", "light", "notty", ...).
	// Empty selects a style from the terminal background.
	Style string
}

// DefaultConfig returns a default renderer configuration
func DefaultConfig() *RendererConfig {
	return &RendererConfig{Width: 80}
}

// ChatConfig returns a configuration optimized for chat messages
func ChatConfig() *RendererConfig {
	return &RendererConfig{Width: 100}
}

// Renderer wraps glamour with DocuMiner-specific configuration
type Renderer struct {
	glamourRenderer *glamour.TermRenderer
	config          *RendererConfig
}

// NewRenderer creates a new markdown renderer with the given configuration
func NewRenderer(config *RendererConfig) (*Renderer, error) {
	if config == nil {
		config = DefaultConfig()
	}

	styleOption := glamour.WithAutoStyle()
	if config.Style != "" {
		styleOption = glamour.WithStandardStyle(config.Style)
	}

	glamourRenderer, err := glamour.NewTermRenderer(
		styleOption,
		glamour.WithWordWrap(config.Width),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create glamour renderer: %w", err)
	}

	return &Renderer{
		glamourRenderer: glamourRenderer,
		config:          config,
	}, nil
}

// NewChatRenderer creates a renderer optimized for chat messages
func NewChatRenderer() (*Renderer, error) {
	return NewRenderer(ChatConfig())
}

// Render formats an answer for display and renders it to styled terminal output
func (r *Renderer) Render(markdown string) (string, error) {
	if markdown == "" {
		return "", nil
	}

	rendered, err := r.glamourRenderer.Render(FormatForDisplay(markdown))
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	return collapseBlankLines(rendered), nil
}

// collapseBlankLines keeps at most one consecutive blank line
func collapseBlankLines(rendered string) string {
	lines := strings.Split(rendered, "\n")
	result := make([]string, 0, len(lines))
	blankCount := 0

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankCount++
			if blankCount <= 1 {
				result = append(result, line)
			}
		} else {
			blankCount = 0
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}
