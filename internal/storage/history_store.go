package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	historyPrefix   = "chat_"
	historyExt      = ".json"
	timestampLayout = "20060102_150405"
)

var (
	// ErrHistoryNotFound is returned when no history file matches the requested key
	ErrHistoryNotFound = errors.New("chat history not found")
	// ErrCorruptHistory is returned when a history file exists but is not a valid message list
	ErrCorruptHistory = errors.New("chat history is not valid JSON")
	// ErrInvalidFilename is returned for keys that are not plain .json file names
	ErrInvalidFilename = errors.New("invalid chat history filename")
)

// DeleteError reports an I/O failure while removing a history file
type DeleteError struct {
	Filename string
	Err      error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("failed to delete chat history %s: %v", e.Filename, e.Err)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

// HistoryStore defines operations for chat transcript persistence
type HistoryStore interface {
	EnsureDir() error
	Save(messages []Message, documentName, filename string) (string, error)
	Load(filename string) ([]Message, error)
	Exists(filename string) bool
	List() ([]Descriptor, error)
	Resolve(displayName string) (string, bool)
	Delete(filename string) error
	DeleteByDisplayName(displayName string) bool
	Search(term string) ([]Descriptor, error)
}

// FileHistoryStore keeps one JSON file per chat in a single flat directory.
// Writes rewrite the whole file in place; there is no locking and no
// temp-file rename, so concurrent writers to one file are unsupported.
type FileHistoryStore struct {
	dir    string
	logger *log.Logger
	now    func() time.Time
}

// NewHistoryStore creates a history store rooted at dir. The directory is
// created lazily by the operations that need it.
func NewHistoryStore(dir string, logger *log.Logger) *FileHistoryStore {
	if logger == nil {
		logger = log.Default()
	}
	return &FileHistoryStore{
		dir:    dir,
		logger: logger.WithPrefix("history"),
		now:    time.Now,
	}
}

// SetClock overrides the time source used for derived filenames
func (s *FileHistoryStore) SetClock(now func() time.Time) {
	s.now = now
}

// Dir returns the storage directory
func (s *FileHistoryStore) Dir() string {
	return s.dir
}

// EnsureDir creates the storage directory if it does not exist
func (s *FileHistoryStore) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	return nil
}

// Save writes the full message list, replacing any previous content. When
// filename is empty one is derived from the document name and the current time.
// It returns the filename used.
func (s *FileHistoryStore) Save(messages []Message, documentName, filename string) (string, error) {
	if err := s.EnsureDir(); err != nil {
		return "", err
	}

	if filename == "" {
		filename = s.timestampedFilename(documentName)
	}
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}

	if messages == nil {
		messages = []Message{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(messages); err != nil {
		return "", fmt.Errorf("failed to encode chat history: %w", err)
	}

	if err := os.WriteFile(s.path(filename), buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write chat history: %w", err)
	}

	s.logger.Debug("saved chat history", "file", filename, "messages", len(messages))
	return filename, nil
}

// Load returns the messages stored under filename. A missing file yields an
// empty list.
func (s *FileHistoryStore) Load(filename string) ([]Message, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptHistory, filename, err)
	}
	if messages == nil {
		messages = []Message{}
	}

	return messages, nil
}

// Exists reports whether a history file with this name is present
func (s *FileHistoryStore) Exists(filename string) bool {
	if ValidateFilename(filename) != nil {
		return false
	}
	info, err := os.Stat(s.path(filename))
	return err == nil && !info.IsDir()
}

// List returns a descriptor for every .json file, sorted by filename descending
func (s *FileHistoryStore) List() ([]Descriptor, error) {
	if err := s.EnsureDir(); err != nil {
		return nil, err
	}

	names, err := s.historyFiles()
	if err != nil {
		return nil, err
	}

	descriptors := make([]Descriptor, 0, len(names))
	for _, name := range names {
		descriptors = append(descriptors, Descriptor{
			DisplayName: DisplayName(name),
			Filename:    name,
		})
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Filename > descriptors[j].Filename
	})

	return descriptors, nil
}

// Resolve returns the first history filename containing displayName.
// Substring matching is ambiguous when one display name is contained in
// another filename; callers that know the filename should use it directly.
func (s *FileHistoryStore) Resolve(displayName string) (string, bool) {
	if displayName == "" {
		return "", false
	}

	names, err := s.historyFiles()
	if err != nil {
		s.logger.Debug("resolve failed to read directory", "err", err)
		return "", false
	}

	for _, name := range names {
		if strings.Contains(name, displayName) {
			return name, true
		}
	}
	return "", false
}

// Delete removes the history file with the given filename
func (s *FileHistoryStore) Delete(filename string) error {
	if err := ValidateFilename(filename); err != nil {
		return err
	}

	if err := os.Remove(s.path(filename)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrHistoryNotFound
		}
		return &DeleteError{Filename: filename, Err: err}
	}

	s.logger.Info("deleted chat history", "file", filename)
	return nil
}

// DeleteByDisplayName resolves displayName and removes the matching file.
// It reports only whether a file was removed; the cause of a failure is logged.
func (s *FileHistoryStore) DeleteByDisplayName(displayName string) bool {
	filename, ok := s.Resolve(displayName)
	if !ok {
		return false
	}

	if err := s.Delete(filename); err != nil {
		if !errors.Is(err, ErrHistoryNotFound) {
			s.logger.Error("error deleting chat history", "display_name", displayName, "err", err)
		}
		return false
	}
	return true
}

// Search fuzzy-matches term against display names, best match first.
// An empty term returns the full listing.
func (s *FileHistoryStore) Search(term string) ([]Descriptor, error) {
	descriptors, err := s.List()
	if err != nil {
		return nil, err
	}

	term = strings.TrimSpace(term)
	if term == "" {
		return descriptors, nil
	}

	targets := make([]string, len(descriptors))
	for i, d := range descriptors {
		targets[i] = d.DisplayName
	}

	ranks := fuzzy.RankFindNormalizedFold(term, targets)
	sort.Stable(ranks)

	matches := make([]Descriptor, 0, len(ranks))
	for _, rank := range ranks {
		matches = append(matches, descriptors[rank.OriginalIndex])
	}
	return matches, nil
}

func (s *FileHistoryStore) historyFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), historyExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *FileHistoryStore) timestampedFilename(documentName string) string {
	stem := SanitizeName(strings.ReplaceAll(documentName, ".pdf", ""))
	stamp := s.now().Format(timestampLayout)
	if stem == "" {
		return historyPrefix + stamp + historyExt
	}
	return historyPrefix + stem + "_" + stamp + historyExt
}

func (s *FileHistoryStore) path(filename string) string {
	return filepath.Join(s.dir, filename)
}

var _ HistoryStore = (*FileHistoryStore)(nil)
