package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/entrepeneur4lyf/documiner/internal/session"
	"github.com/gorilla/mux"
)

// maxUploadMemory is how much of a multipart upload is buffered in memory
const maxUploadMemory = 32 << 20

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snapshot := s.state.Snapshot()
	s.mu.Unlock()

	s.writeJSON(w, snapshot)
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.controller.NewSession(s.state)
	s.writeJSON(w, s.state.Snapshot())
}

// handleUploadDocuments accepts 1 to MaxDocuments PDFs in the multipart field "files"
func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeFailure(w, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	for _, header := range headers {
		if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
			s.writeFailure(w, fmt.Errorf("%w: %s", errNotPDF, header.Filename))
			return
		}
	}

	uploads, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.controller.UploadDocuments(r.Context(), s.state, uploads); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, s.state.Snapshot())
}

func openUploads(headers []*multipart.FileHeader) ([]session.Upload, func(), error) {
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	uploads := make([]session.Upload, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to read %s: %w", header.Filename, err)
		}
		files = append(files, f)
		uploads = append(uploads, session.Upload{Name: filepath.Base(header.Filename), Content: f})
	}
	return uploads, closeAll, nil
}

func (s *Server) handleListHistories(w http.ResponseWriter, r *http.Request) {
	histories, err := s.controller.Histories(r.URL.Query().Get("q"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"histories": histories,
		"count":     len(histories),
	})
}

func (s *Server) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.controller.LoadHistory(r.Context(), s.state, filename); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, s.state.Snapshot())
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.controller.DeleteHistory(s.state, filename); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"deleted": filename,
		"session": s.state.Snapshot(),
	})
}
