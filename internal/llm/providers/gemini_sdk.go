package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/entrepeneur4lyf/documiner/internal/llm"
	"google.golang.org/genai"
)

// DefaultSystemPrompt asks the model to answer from the uploaded documents in a
// JSON envelope that llm.ParseAnswer understands.
const DefaultSystemPrompt = `You are DocuMiner, an assistant that analyses regulatory and legal documents.
Answer only from the documents provided at the start of the conversation. When the
documents do not contain the answer, say so plainly.
Reply with a JSON object of the form {"response": "<answer in Markdown>"}.`

// GeminiOptions configures the Gemini client
type GeminiOptions struct {
	APIKey          string
	ModelID         string
	Temperature     float32
	MaxOutputTokens int32
	JSONResponse    bool
	SystemPrompt    string
	// Retry applies to Files API calls; the zero value selects DefaultRetryConfig.
	Retry RetryConfig
}

// GeminiClient implements llm.Client using the official Google Generative AI SDK
type GeminiClient struct {
	options GeminiOptions
	client  *genai.Client
	logger  *log.Logger
}

// NewGeminiClient creates a client for the Gemini API. An empty API key is
// reported as llm.ErrMissingAPIKey before any network use.
func NewGeminiClient(ctx context.Context, options GeminiOptions, logger *log.Logger) (*GeminiClient, error) {
	if strings.TrimSpace(options.APIKey) == "" {
		return nil, llm.ErrMissingAPIKey
	}
	if logger == nil {
		logger = log.Default()
	}
	if options.Retry.BaseDelay == 0 {
		options.Retry = DefaultRetryConfig()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  options.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		options: options,
		client:  client,
		logger:  logger.WithPrefix("gemini"),
	}, nil
}

// UploadDocument uploads a local file through the Files API
func (c *GeminiClient) UploadDocument(ctx context.Context, path, mimeType, displayName string) (llm.DocumentHandle, error) {
	file, err := ExecuteWithRetry(ctx, func(ctx context.Context, _ int) (*genai.File, error) {
		return c.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
			MIMEType:    mimeType,
			DisplayName: displayName,
		})
	}, c.options.Retry, c.logRetry("upload"))
	if err != nil {
		return llm.DocumentHandle{}, fmt.Errorf("failed to upload %s: %w", displayName, err)
	}

	c.logger.Info("uploaded document", "display_name", file.DisplayName, "name", file.Name)
	return llm.DocumentHandle{
		Name:        file.Name,
		URI:         file.URI,
		MIMEType:    file.MIMEType,
		DisplayName: file.DisplayName,
	}, nil
}

// DocumentState reports whether an uploaded file is ready to be used in a chat
func (c *GeminiClient) DocumentState(ctx context.Context, handle llm.DocumentHandle) (llm.DocumentState, error) {
	file, err := ExecuteWithRetry(ctx, func(ctx context.Context, _ int) (*genai.File, error) {
		return c.client.Files.Get(ctx, handle.Name, nil)
	}, c.options.Retry, c.logRetry("get file"))
	if err != nil {
		return "", fmt.Errorf("failed to get file %s: %w", handle.Name, err)
	}
	return documentState(file.State), nil
}

// StartChat opens a chat whose history starts with one user turn carrying
// every document. With no documents the chat starts empty.
func (c *GeminiClient) StartChat(ctx context.Context, documents []llm.DocumentHandle) (llm.ChatSession, error) {
	chat, err := c.client.Chats.Create(ctx, c.options.ModelID, c.generationConfig(), documentHistory(documents))
	if err != nil {
		return nil, fmt.Errorf("failed to start chat: %w", err)
	}

	c.logger.Debug("started chat", "model", c.options.ModelID, "documents", len(documents))
	return &geminiChat{chat: chat, logger: c.logger}, nil
}

func (c *GeminiClient) logRetry(operation string) func(attempt, maxRetries int, delay time.Duration, err error) {
	return func(attempt, maxRetries int, delay time.Duration, err error) {
		c.logger.Warn("retrying Gemini call", "operation", operation, "attempt", attempt, "max", maxRetries, "delay", delay, "err", err)
	}
}

func (c *GeminiClient) generationConfig() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.options.Temperature),
		MaxOutputTokens: c.options.MaxOutputTokens,
	}

	if c.options.JSONResponse {
		config.ResponseMIMEType = "application/json"
	}

	if c.options.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.options.SystemPrompt}},
		}
	}

	return config
}

func documentHistory(documents []llm.DocumentHandle) []*genai.Content {
	if len(documents) == 0 {
		return nil
	}

	parts := make([]*genai.Part, 0, len(documents))
	for _, doc := range documents {
		parts = append(parts, genai.NewPartFromURI(doc.URI, doc.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func documentState(state genai.FileState) llm.DocumentState {
	switch state {
	case genai.FileStateActive:
		return llm.DocumentActive
	case genai.FileStateFailed:
		return llm.DocumentFailed
	default:
		return llm.DocumentProcessing
	}
}

type geminiChat struct {
	chat   *genai.Chat
	logger *log.Logger
}

// SendMessageStream sends prompt on the chat and streams the reply text
func (s *geminiChat) SendMessageStream(ctx context.Context, prompt string) llm.ApiStream {
	responseChan := make(chan llm.ApiStreamChunk, 100)

	go func() {
		defer close(responseChan)

		var usage *genai.GenerateContentResponseUsageMetadata
		for result, err := range s.chat.SendMessageStream(ctx, genai.Part{Text: prompt}) {
			if err != nil {
				s.logger.Error("gemini stream error", "err", err)
				send(ctx, responseChan, llm.ApiStreamErrorChunk{Err: err})
				return
			}

			if result.UsageMetadata != nil {
				usage = result.UsageMetadata
			}

			if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
				continue
			}
			for _, part := range result.Candidates[0].Content.Parts {
				if part.Text == "" || part.Thought {
					continue
				}
				if !send(ctx, responseChan, llm.ApiStreamTextChunk{Text: part.Text}) {
					return
				}
			}
		}

		if usage != nil {
			send(ctx, responseChan, llm.ApiStreamUsageChunk{
				InputTokens:  int(usage.PromptTokenCount),
				OutputTokens: int(usage.CandidatesTokenCount),
			})
		}
	}()

	return responseChan
}

func send(ctx context.Context, ch chan<- llm.ApiStreamChunk, chunk llm.ApiStreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ llm.Client = (*GeminiClient)(nil)
