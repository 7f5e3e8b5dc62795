package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stateClient struct {
	states map[string][]DocumentState
	calls  map[string]int
}

func (c *stateClient) UploadDocument(context.Context, string, string, string) (DocumentHandle, error) {
	return DocumentHandle{}, errors.New("not used")
}

func (c *stateClient) DocumentState(_ context.Context, h DocumentHandle) (DocumentState, error) {
	seq := c.states[h.Name]
	i := c.calls[h.Name]
	c.calls[h.Name]++
	if i >= len(seq) {
		return seq[len(seq)-1], nil
	}
	return seq[i], nil
}

func (c *stateClient) StartChat(context.Context, []DocumentHandle) (ChatSession, error) {
	return nil, errors.New("not used")
}

func newStateClient(states map[string][]DocumentState) *stateClient {
	return &stateClient{states: states, calls: map[string]int{}}
}

func TestWaitForDocumentsPollsUntilActive(t *testing.T) {
	client := newStateClient(map[string][]DocumentState{
		"files/a": {DocumentProcessing, DocumentProcessing, DocumentActive},
		"files/b": {DocumentActive},
	})
	handles := []DocumentHandle{{Name: "files/a"}, {Name: "files/b"}}

	if err := WaitForDocuments(context.Background(), client, handles, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls["files/a"] != 3 {
		t.Errorf("expected 3 polls for files/a, got %d", client.calls["files/a"])
	}
	if client.calls["files/b"] != 1 {
		t.Errorf("expected 1 poll for files/b, got %d", client.calls["files/b"])
	}
}

func TestWaitForDocumentsFailedState(t *testing.T) {
	client := newStateClient(map[string][]DocumentState{
		"files/a": {DocumentProcessing, DocumentFailed},
	})

	err := WaitForDocuments(context.Background(), client, []DocumentHandle{{Name: "files/a", DisplayName: "a.pdf"}}, time.Millisecond)
	if !errors.Is(err, ErrDocumentFailed) {
		t.Fatalf("expected ErrDocumentFailed, got %v", err)
	}
}

func TestWaitForDocumentsCancelled(t *testing.T) {
	client := newStateClient(map[string][]DocumentState{
		"files/a": {DocumentProcessing},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := WaitForDocuments(ctx, client, []DocumentHandle{{Name: "files/a"}}, 5*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
