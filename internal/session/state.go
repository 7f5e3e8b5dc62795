package session

import (
	"github.com/entrepeneur4lyf/documiner/internal/llm"
	"github.com/entrepeneur4lyf/documiner/internal/storage"
)

// State is the transient state of one chat session. It lives only in memory
// and is passed explicitly to every Controller transition.
type State struct {
	Messages          []storage.Message
	DocumentProcessed bool
	DocumentNames     []string
	Documents         []llm.DocumentHandle
	Chat              llm.ChatSession
	// HistoryFile is the history file new turns are saved to; empty until known.
	HistoryFile string
}

// Reset clears all per-session state
func (s *State) Reset() {
	*s = State{}
}

// HasActiveChat reports whether prompts can be sent
func (s *State) HasActiveChat() bool {
	return s.Chat != nil
}

// Snapshot is a serializable view of a session
type Snapshot struct {
	Messages          []storage.Message `json:"messages"`
	DocumentProcessed bool              `json:"document_processed"`
	DocumentNames     []string          `json:"document_names"`
	HistoryFile       string            `json:"history_file,omitempty"`
	ChatActive        bool              `json:"chat_active"`
}

// Snapshot copies the displayable parts of the state
func (s *State) Snapshot() Snapshot {
	messages := make([]storage.Message, len(s.Messages))
	copy(messages, s.Messages)
	names := make([]string, len(s.DocumentNames))
	copy(names, s.DocumentNames)

	return Snapshot{
		Messages:          messages,
		DocumentProcessed: s.DocumentProcessed,
		DocumentNames:     names,
		HistoryFile:       s.HistoryFile,
		ChatActive:        s.HasActiveChat(),
	}
}
