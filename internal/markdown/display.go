package markdown

import "strings"

// StreamingCursor is appended to partial answers while a reply is streaming
const StreamingCursor = "▌"

var displayReplacer = strings.NewReplacer("\n", "\n\n", "•", "\n•")

// FormatForDisplay turns single newlines into paragraph breaks and starts each
// "•" bullet on its own line, so plain model text renders as readable Markdown.
// It is a display transform only; stored answers are left untouched.
func FormatForDisplay(text string) string {
	return displayReplacer.Replace(text)
}

// FormatPartial formats a partial streamed answer with a trailing cursor
func FormatPartial(text string) string {
	return FormatForDisplay(text) + StreamingCursor
}
