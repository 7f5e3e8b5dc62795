package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/entrepeneur4lyf/documiner/internal/markdown"
	"github.com/entrepeneur4lyf/documiner/internal/session"
	"github.com/entrepeneur4lyf/documiner/internal/storage"
	"github.com/google/uuid"
)

// SSEEvent represents a Server-Sent Event
type SSEEvent struct {
	ID    string      `json:"id,omitempty"`
	Event string      `json:"event,omitempty"`
	Data  interface{} `json:"data"`
}

// ChatRequest is the body of a chat turn
type ChatRequest struct {
	Message string `json:"message"`
}

// DeltaPayload carries one streamed fragment, the answer text so far and that
// text formatted for display with a trailing cursor
type DeltaPayload struct {
	Delta   string `json:"delta"`
	Text    string `json:"text"`
	Display string `json:"display"`
}

func newDeltaPayload(delta, full string) DeltaPayload {
	return DeltaPayload{Delta: delta, Text: full, Display: markdown.FormatPartial(full)}
}

// DonePayload carries the parsed assistant message once the answer is complete
type DonePayload struct {
	Message     storage.Message `json:"message"`
	HistoryFile string          `json:"history_file,omitempty"`
}

// handleChatSSE sends one prompt and streams the answer as SSE events:
// "delta" per fragment, then "done" or "error".
func (s *Server) handleChatSSE(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Reject before switching to a stream so these surface as status codes
	if strings.TrimSpace(req.Message) == "" {
		s.writeFailure(w, session.ErrEmptyPrompt)
		return
	}
	if !s.state.HasActiveChat() {
		s.writeFailure(w, session.ErrNoActiveChat)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(event string, data interface{}) {
		if err := s.writeSSEEvent(w, SSEEvent{ID: uuid.NewString(), Event: event, Data: data}); err != nil {
			s.logger.Debug("failed to write SSE event", "event", event, "err", err)
			return
		}
		flusher.Flush()
	}

	answer, err := s.controller.SendMessage(r.Context(), s.state, req.Message, func(delta, full string) {
		send("delta", newDeltaPayload(delta, full))
	})
	if err != nil {
		s.logger.Warn("chat turn failed", "err", err)
		send("error", map[string]string{"error": err.Error()})
		return
	}

	send("done", DonePayload{Message: answer, HistoryFile: s.state.HistoryFile})
}

// writeSSEEvent writes a single SSE event
func (s *Server) writeSSEEvent(w http.ResponseWriter, event SSEEvent) error {
	if event.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return err
		}
	}

	if event.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event.Event); err != nil {
			return err
		}
	}

	// Serialize data to JSON
	data, err := json.Marshal(event.Data)
	if err != nil {
		if _, writeErr := fmt.Fprintf(w, "data: {\"error\": \"Failed to serialize data\"}\n\n"); writeErr != nil {
			return writeErr
		}
		return err
	}

	_, err = fmt.Fprintf(w, "data: %s\n\n", string(data))
	return err
}
