package storage

// Role identifies who authored a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents one chat turn as persisted in a history file
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user message
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Descriptor is a lightweight view of a history file used for listing and selection.
// It is derived from the directory listing and never persisted.
type Descriptor struct {
	DisplayName string `json:"display_name"`
	Filename    string `json:"filename"`
}
