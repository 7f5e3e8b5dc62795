package api

import (
	"errors"
	"net/http"

	"github.com/entrepeneur4lyf/documiner/internal/llm"
	"github.com/entrepeneur4lyf/documiner/internal/session"
	"github.com/entrepeneur4lyf/documiner/internal/storage"
)

var (
	errNotPDF         = errors.New("only PDF files are accepted")
	errInvalidRequest = errors.New("invalid request body")
)

var badRequestErrors = []error{
	errNotPDF,
	errInvalidRequest,
	storage.ErrInvalidFilename,
	session.ErrNoDocuments,
	session.ErrTooManyDocuments,
	session.ErrDocumentsAlreadyProcessed,
	session.ErrNoActiveChat,
	session.ErrEmptyPrompt,
}

// statusFor maps a domain error to an HTTP status code
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrHistoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, llm.ErrMissingAPIKey):
		return http.StatusPreconditionFailed
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}
