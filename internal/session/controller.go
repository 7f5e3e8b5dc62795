package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/entrepeneur4lyf/documiner/internal/llm"
	"github.com/entrepeneur4lyf/documiner/internal/storage"
	"github.com/google/uuid"
)

// Upload is one document submitted by the user
type Upload struct {
	Name    string
	Content io.Reader
}

// DeltaFunc receives streamed answer text: the newest fragment and everything so far
type DeltaFunc func(delta, full string)

// Options tunes controller behavior
type Options struct {
	MaxDocuments int
	PollInterval time.Duration
	TempDir      string
}

// Controller drives session transitions. It persists through the history
// store and delegates generation to the model client.
type Controller struct {
	store   storage.HistoryStore
	client  llm.Client
	logger  *log.Logger
	options Options
}

// NewController creates a session controller. client may be nil when no API
// key is configured; model-backed transitions then fail with llm.ErrMissingAPIKey.
func NewController(store storage.HistoryStore, client llm.Client, logger *log.Logger, options Options) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	if options.MaxDocuments <= 0 {
		options.MaxDocuments = 3
	}
	if options.PollInterval <= 0 {
		options.PollInterval = 10 * time.Second
	}
	if options.TempDir == "" {
		options.TempDir = filepath.Join(os.TempDir(), "documiner")
	}

	return &Controller{
		store:   store,
		client:  client,
		logger:  logger.WithPrefix("session"),
		options: options,
	}
}

// HasClient reports whether a model client is configured
func (c *Controller) HasClient() bool {
	return c.client != nil
}

// NewSession starts an empty session. Saved histories are not touched.
func (c *Controller) NewSession(state *State) {
	state.Reset()
	c.logger.Debug("started new session")
}

// UploadDocuments uploads the documents, waits until the service has
// processed them and starts a chat grounded on all of them.
func (c *Controller) UploadDocuments(ctx context.Context, state *State, uploads []Upload) error {
	switch {
	case len(uploads) == 0:
		return ErrNoDocuments
	case len(uploads) > c.options.MaxDocuments:
		return &TooManyDocumentsError{Count: len(uploads), Max: c.options.MaxDocuments}
	case state.DocumentProcessed:
		return ErrDocumentsAlreadyProcessed
	case c.client == nil:
		return llm.ErrMissingAPIKey
	}

	if err := os.MkdirAll(c.options.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	names := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		names = append(names, upload.Name)
	}

	// The same document set maps to the same file. An unreadable transcript
	// there must not be replaced by the next save.
	historyFile := storage.HistoryFilenameForDocuments(names)
	previous, err := c.store.Load(historyFile)
	if err != nil {
		return fmt.Errorf("cannot continue %s: %w", historyFile, err)
	}

	handles := make([]llm.DocumentHandle, 0, len(uploads))
	for _, upload := range uploads {
		handle, err := c.uploadDocument(ctx, upload)
		if err != nil {
			return err
		}
		handles = append(handles, handle)
	}

	if err := llm.WaitForDocuments(ctx, c.client, handles, c.options.PollInterval); err != nil {
		return fmt.Errorf("documents not ready: %w", err)
	}

	chat, err := c.client.StartChat(ctx, handles)
	if err != nil {
		return err
	}

	state.DocumentNames = names
	state.Documents = handles
	state.Chat = chat
	state.DocumentProcessed = true
	state.HistoryFile = historyFile

	if len(state.Messages) == 0 {
		state.Messages = previous
	}

	c.logger.Info("documents ready", "documents", names, "history", historyFile)
	return nil
}

// uploadDocument stages the upload in a temp file for the client and removes
// it again whether or not the upload succeeded.
func (c *Controller) uploadDocument(ctx context.Context, upload Upload) (llm.DocumentHandle, error) {
	path := filepath.Join(c.options.TempDir, fmt.Sprintf("temp_%s.pdf", uuid.NewString()))
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("failed to remove temp upload", "path", path, "err", err)
		}
	}()

	if err := writeTempFile(path, upload.Content); err != nil {
		return llm.DocumentHandle{}, fmt.Errorf("failed to stage %s: %w", upload.Name, err)
	}

	handle, err := c.client.UploadDocument(ctx, path, llm.MIMETypePDF, upload.Name)
	if err != nil {
		return llm.DocumentHandle{}, err
	}
	return handle, nil
}

func writeTempFile(path string, content io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadHistory restores a saved transcript and starts a fresh chat. The
// original documents are not re-attached, so new answers are not grounded on them.
func (c *Controller) LoadHistory(ctx context.Context, state *State, filename string) error {
	if c.client == nil {
		return llm.ErrMissingAPIKey
	}
	if err := storage.ValidateFilename(filename); err != nil {
		return err
	}
	if !c.store.Exists(filename) {
		return fmt.Errorf("%w: %s", storage.ErrHistoryNotFound, filename)
	}

	messages, err := c.store.Load(filename)
	if err != nil {
		return err
	}

	chat, err := c.client.StartChat(ctx, nil)
	if err != nil {
		return err
	}

	*state = State{
		Messages:    messages,
		Chat:        chat,
		HistoryFile: filename,
	}

	c.logger.Info("loaded chat history", "file", filename, "messages", len(messages))
	return nil
}

// LoadHistoryByDisplayName resolves a display name and loads the matching history
func (c *Controller) LoadHistoryByDisplayName(ctx context.Context, state *State, displayName string) error {
	filename, ok := c.store.Resolve(displayName)
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrHistoryNotFound, displayName)
	}
	return c.LoadHistory(ctx, state, filename)
}

// DeleteHistory removes a saved history and clears the on-screen transcript
func (c *Controller) DeleteHistory(state *State, filename string) error {
	if err := c.store.Delete(filename); err != nil {
		return err
	}
	clearDeleted(state, filename)
	return nil
}

// DeleteHistoryByDisplayName is the display-name variant of DeleteHistory.
// It only reports success; failure causes are logged by the store.
func (c *Controller) DeleteHistoryByDisplayName(state *State, displayName string) bool {
	filename, _ := c.store.Resolve(displayName)
	if !c.store.DeleteByDisplayName(displayName) {
		return false
	}
	clearDeleted(state, filename)
	return true
}

func clearDeleted(state *State, filename string) {
	state.Messages = nil
	if filename != "" && state.HistoryFile == filename {
		state.HistoryFile = ""
	}
}

// Histories lists saved histories, fuzzy-filtered when term is not empty
func (c *Controller) Histories(term string) ([]storage.Descriptor, error) {
	return c.store.Search(term)
}

// SendMessage sends prompt to the active chat, streams the reply through
// onDelta and saves the whole transcript once the reply is complete. Only the
// prompt is sent; the model-side chat keeps its own turn history.
func (c *Controller) SendMessage(ctx context.Context, state *State, prompt string, onDelta DeltaFunc) (storage.Message, error) {
	if strings.TrimSpace(prompt) == "" {
		return storage.Message{}, ErrEmptyPrompt
	}
	if !state.HasActiveChat() {
		return storage.Message{}, ErrNoActiveChat
	}

	state.Messages = append(state.Messages, storage.NewUserMessage(prompt))

	stream := state.Chat.SendMessageStream(ctx, prompt)
	collector, err := llm.NewStreamProcessor(ctx).ProcessStreamWithCallback(stream,
		func(sc *llm.StreamCollector, chunk llm.ApiStreamChunk) error {
			if text, ok := chunk.(llm.ApiStreamTextChunk); ok && onDelta != nil {
				onDelta(text.Text, sc.GetFullText())
			}
			return nil
		})
	if err != nil {
		return storage.Message{}, fmt.Errorf("failed to receive answer: %w", err)
	}

	answer := storage.NewAssistantMessage(llm.ParseAnswer(collector.GetFullText()))
	state.Messages = append(state.Messages, answer)

	if collector.Usage != nil {
		c.logger.Debug("answer complete",
			"input_tokens", collector.Usage.InputTokens,
			"output_tokens", collector.Usage.OutputTokens,
			"duration", collector.GetDuration())
	}

	if err := c.persist(state); err != nil {
		return answer, err
	}
	return answer, nil
}

func (c *Controller) persist(state *State) error {
	filename, err := c.store.Save(state.Messages, strings.Join(state.DocumentNames, "_"), state.HistoryFile)
	if err != nil {
		return fmt.Errorf("failed to save chat history: %w", err)
	}
	state.HistoryFile = filename
	return nil
}
