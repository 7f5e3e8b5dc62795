package llm

import (
	"context"
	"errors"
)

// MIMETypePDF is the only document type the uploader accepts
const MIMETypePDF = "application/pdf"

var (
	// ErrMissingAPIKey is returned when the hosted model is used without a credential
	ErrMissingAPIKey = errors.New("missing Gemini API key")
	// ErrDocumentFailed is returned when the service rejects an uploaded document
	ErrDocumentFailed = errors.New("document processing failed")
)

// DocumentHandle identifies a document uploaded to the model service
type DocumentHandle struct {
	Name        string `json:"name"`
	URI         string `json:"uri"`
	MIMEType    string `json:"mime_type"`
	DisplayName string `json:"display_name"`
}

// DocumentState is the processing state the service reports for an upload
type DocumentState string

const (
	DocumentProcessing DocumentState = "processing"
	DocumentActive     DocumentState = "active"
	DocumentFailed     DocumentState = "failed"
)

// ChatSession is a model-side conversation. The service keeps the turn history,
// so each call only carries the new prompt.
type ChatSession interface {
	SendMessageStream(ctx context.Context, prompt string) ApiStream
}

// Client is the hosted model service the session controller talks to
type Client interface {
	UploadDocument(ctx context.Context, path, mimeType, displayName string) (DocumentHandle, error)
	DocumentState(ctx context.Context, handle DocumentHandle) (DocumentState, error)
	StartChat(ctx context.Context, documents []DocumentHandle) (ChatSession, error)
}
