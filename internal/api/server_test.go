package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/entrepeneur4lyf/documiner/internal/llm"
	"github.com/entrepeneur4lyf/documiner/internal/markdown"
	"github.com/entrepeneur4lyf/documiner/internal/session"
	"github.com/entrepeneur4lyf/documiner/internal/storage"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	uploads int
	replies []string
	// delay holds each answer back; a delayed turn is reported on started
	// and, if its context ends first, on cancelled
	delay     time.Duration
	started   chan struct{}
	cancelled chan struct{}
}

func (f *fakeClient) UploadDocument(_ context.Context, _, mimeType, displayName string) (llm.DocumentHandle, error) {
	f.uploads++
	return llm.DocumentHandle{Name: fmt.Sprintf("files/%d", f.uploads), MIMEType: mimeType, DisplayName: displayName}, nil
}

func (f *fakeClient) DocumentState(context.Context, llm.DocumentHandle) (llm.DocumentState, error) {
	return llm.DocumentActive, nil
}

func (f *fakeClient) StartChat(context.Context, []llm.DocumentHandle) (llm.ChatSession, error) {
	return &fakeChat{client: f}, nil
}

type fakeChat struct {
	client *fakeClient
}

// SendMessageStream splits the next scripted reply into two fragments
func (c *fakeChat) SendMessageStream(ctx context.Context, _ string) llm.ApiStream {
	reply := ""
	if len(c.client.replies) > 0 {
		reply, c.client.replies = c.client.replies[0], c.client.replies[1:]
	}
	half := len(reply) / 2

	buf := llm.NewStreamBuffer()
	buf.AddText(reply[:half])
	buf.AddText(reply[half:])
	if c.client.delay == 0 {
		return buf.ToChannel()
	}

	if c.client.started != nil {
		close(c.client.started)
		c.client.started = nil
	}
	out := make(chan llm.ApiStreamChunk)
	go func() {
		defer close(out)
		select {
		case <-time.After(c.client.delay):
		case <-ctx.Done():
			if c.client.cancelled != nil {
				close(c.client.cancelled)
			}
			return
		}
		for chunk := range buf.ToChannel() {
			out <- chunk
		}
	}()
	return out
}

type fixture struct {
	server *Server
	store  *storage.FileHistoryStore
	client *fakeClient
}

func newFixture(t *testing.T, withClient bool) *fixture {
	t.Helper()
	root := t.TempDir()
	logger := log.New(io.Discard)

	store := storage.NewHistoryStore(filepath.Join(root, "chat_histories"), logger)
	client := &fakeClient{}

	var llmClient llm.Client
	if withClient {
		llmClient = client
	}
	controller := session.NewController(store, llmClient, logger, session.Options{
		PollInterval: time.Millisecond,
		TempDir:      filepath.Join(root, "tmp"),
	})

	return &fixture{server: NewServer(controller, logger), store: store, client: client}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, names ...string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.7"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["services"].(map[string]interface{})["gemini"])
}

func TestUploadDocuments(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, uploadRequest(t, "Reporte Final.pdf", "anexo-1.pdf"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snap := decode[session.Snapshot](t, rec)
	assert.True(t, snap.DocumentProcessed)
	assert.True(t, snap.ChatActive)
	assert.Equal(t, []string{"Reporte Final.pdf", "anexo-1.pdf"}, snap.DocumentNames)
	assert.Equal(t, "chat_Reporte_Final_anexo-1.json", snap.HistoryFile)
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name       string
		withClient bool
		files      []string
		wantCode   int
	}{
		{"too many", true, []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"}, http.StatusBadRequest},
		{"none", true, nil, http.StatusBadRequest},
		{"not a pdf", true, []string{"notes.txt"}, http.StatusBadRequest},
		{"no api key", false, []string{"a.pdf"}, http.StatusPreconditionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.withClient)

			rec := f.do(t, uploadRequest(t, tt.files...))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
			assert.Zero(t, f.client.uploads)
		})
	}
}

func TestChatSSE(t *testing.T) {
	f := newFixture(t, true)
	require.Equal(t, http.StatusOK, f.do(t, uploadRequest(t, "contrato.pdf")).Code)

	f.client.replies = []string{`{"response": "Treinta días."}`}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message": "¿Plazo?"}`))
	rec := f.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: delta\n"))
	assert.Equal(t, 2, strings.Count(body, markdown.StreamingCursor+`"`))
	assert.Contains(t, body, "event: done\n")
	assert.Contains(t, body, `"content":"Treinta días."`)
	assert.Contains(t, body, `"history_file":"chat_contrato.json"`)

	saved, err := f.store.Load("chat_contrato.json")
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestChatSSEValidation(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message": "hola"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, f.do(t, uploadRequest(t, "a.pdf")).Code)
	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message": "  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoriesLifecycle(t *testing.T) {
	f := newFixture(t, true)
	for _, name := range []string{"chat_reporte.json", "chat_anexo.json"} {
		_, err := f.store.Save([]storage.Message{storage.NewUserMessage("hola")}, "", name)
		require.NoError(t, err)
	}

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/histories", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Histories []storage.Descriptor `json:"histories"`
		Count     int                  `json:"count"`
	}](t, rec)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "reporte", list.Histories[0].DisplayName)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/histories?q=anx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chat_anexo.json")
	assert.NotContains(t, rec.Body.String(), "chat_reporte.json")

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/histories/chat_reporte.json/load", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[session.Snapshot](t, rec)
	assert.Equal(t, "chat_reporte.json", snap.HistoryFile)
	assert.Len(t, snap.Messages, 1)
	assert.False(t, snap.DocumentProcessed)

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/histories/chat_nada.json/load", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/histories/chat_reporte.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.store.Exists("chat_reporte.json"))

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	snap = decode[session.Snapshot](t, rec)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.HistoryFile)

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/histories/chat_reporte.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/histories/notes.txt", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewSession(t *testing.T) {
	f := newFixture(t, true)
	require.Equal(t, http.StatusOK, f.do(t, uploadRequest(t, "a.pdf")).Code)

	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/session/new", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[session.Snapshot](t, rec)
	assert.False(t, snap.DocumentProcessed)
	assert.False(t, snap.ChatActive)
	assert.Empty(t, snap.DocumentNames)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/session", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := f.do(t, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = f.do(t, req)
	assert.Equal(t, "http://localhost:47100", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestChatWebSocket(t *testing.T) {
	f := newFixture(t, true)
	require.Equal(t, http.StatusOK, f.do(t, uploadRequest(t, "a.pdf")).Code)
	f.client.replies = []string{"respuesta sin json"}

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping", EventID: "p1"}))
	var pong WebSocketMessage
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)
	assert.Equal(t, "p1", pong.EventID)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "message", Message: "hola", EventID: "e1"}))

	var deltas int
	var done WebSocketMessage
	for {
		var msg WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "delta" {
			deltas++
			continue
		}
		done = msg
		break
	}

	assert.Equal(t, 2, deltas)
	require.Equal(t, "done", done.Type)
	assert.Equal(t, "e1", done.EventID)
	payload := done.Data.(map[string]interface{})
	assert.Equal(t, "respuesta sin json", payload["message"].(map[string]interface{})["content"])

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "message", Message: "   "}))
	var failure WebSocketMessage
	require.NoError(t, conn.ReadJSON(&failure))
	assert.Equal(t, "error", failure.Type)
	assert.Equal(t, session.ErrEmptyPrompt.Error(), failure.Error)
}

func dialChat(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readUntilDone(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	for {
		var msg WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type != "delta" {
			return msg
		}
	}
}

func TestChatWebSocketSurvivesTurnLongerThanPongWait(t *testing.T) {
	f := newFixture(t, true)
	require.Equal(t, http.StatusOK, f.do(t, uploadRequest(t, "a.pdf")).Code)
	f.server.pongWait = 150 * time.Millisecond
	f.server.pingPeriod = 50 * time.Millisecond
	f.client.delay = 500 * time.Millisecond
	f.client.replies = []string{"primera", "segunda"}

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()
	conn := dialChat(t, srv)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "message", Message: "uno", EventID: "e1"}))
	first := readUntilDone(t, conn)
	require.Equal(t, "done", first.Type, first.Error)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "message", Message: "dos", EventID: "e2"}))
	second := readUntilDone(t, conn)
	require.Equal(t, "done", second.Type, second.Error)
	assert.Equal(t, "e2", second.EventID)
}

func TestChatWebSocketDisconnectCancelsTurn(t *testing.T) {
	f := newFixture(t, true)
	require.Equal(t, http.StatusOK, f.do(t, uploadRequest(t, "a.pdf")).Code)
	f.client.delay = time.Minute
	started := make(chan struct{})
	f.client.started = started
	f.client.cancelled = make(chan struct{})
	f.client.replies = []string{"nunca"}

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()
	conn := dialChat(t, srv)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "message", Message: "hola"}))
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not start")
	}
	require.NoError(t, conn.Close())

	select {
	case <-f.client.cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("turn was not cancelled after the client left")
	}

	// The session lock is released for other handlers
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
