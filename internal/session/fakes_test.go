package session

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/entrepeneur4lyf/documiner/internal/llm"
)

type uploadCall struct {
	path        string
	mimeType    string
	displayName string
	content     string
	existed     bool
}

type fakeClient struct {
	uploads      []uploadCall
	failUploadOn string
	startedWith  [][]llm.DocumentHandle
	stateCalls   int
	chat         *fakeChat
}

func newFakeClient() *fakeClient {
	return &fakeClient{chat: &fakeChat{}}
}

func (f *fakeClient) UploadDocument(_ context.Context, path, mimeType, displayName string) (llm.DocumentHandle, error) {
	data, err := os.ReadFile(path)
	f.uploads = append(f.uploads, uploadCall{
		path:        path,
		mimeType:    mimeType,
		displayName: displayName,
		content:     string(data),
		existed:     err == nil,
	})
	if displayName == f.failUploadOn {
		return llm.DocumentHandle{}, errors.New("upload rejected")
	}
	return llm.DocumentHandle{
		Name:        fmt.Sprintf("files/%d", len(f.uploads)),
		URI:         fmt.Sprintf("https://example.test/files/%d", len(f.uploads)),
		MIMEType:    mimeType,
		DisplayName: displayName,
	}, nil
}

func (f *fakeClient) DocumentState(context.Context, llm.DocumentHandle) (llm.DocumentState, error) {
	f.stateCalls++
	return llm.DocumentActive, nil
}

func (f *fakeClient) StartChat(_ context.Context, documents []llm.DocumentHandle) (llm.ChatSession, error) {
	f.startedWith = append(f.startedWith, documents)
	return f.chat, nil
}

// fakeChat replays scripted replies, one per prompt
type fakeChat struct {
	prompts []string
	replies [][]string
	failOn  int
}

func (c *fakeChat) SendMessageStream(_ context.Context, prompt string) llm.ApiStream {
	c.prompts = append(c.prompts, prompt)
	turn := len(c.prompts)

	buf := llm.NewStreamBuffer()
	if turn <= len(c.replies) {
		for _, fragment := range c.replies[turn-1] {
			buf.AddText(fragment)
		}
	}
	if c.failOn == turn {
		buf.Add(llm.ApiStreamErrorChunk{Err: errors.New("connection reset")})
	}
	buf.Add(llm.ApiStreamUsageChunk{InputTokens: 10, OutputTokens: 20})
	return buf.ToChannel()
}
