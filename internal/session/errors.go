package session

import (
	"errors"
	"fmt"
)

var (
	ErrNoDocuments               = errors.New("no documents to upload")
	ErrTooManyDocuments          = errors.New("too many documents")
	ErrDocumentsAlreadyProcessed = errors.New("documents were already processed for this chat; start a new chat first")
	ErrNoActiveChat              = errors.New("no active chat; upload documents or load a saved chat first")
	ErrEmptyPrompt               = errors.New("prompt is empty")
)

// TooManyDocumentsError is returned when an upload exceeds the document limit
type TooManyDocumentsError struct {
	Count int
	Max   int
}

func (e *TooManyDocumentsError) Error() string {
	return fmt.Sprintf("please upload at most %d PDFs (got %d)", e.Max, e.Count)
}

func (e *TooManyDocumentsError) Is(target error) bool {
	return target == ErrTooManyDocuments
}
