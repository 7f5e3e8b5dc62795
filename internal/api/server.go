package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/entrepeneur4lyf/documiner/internal/session"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server exposes one chat session over HTTP. Handlers that touch the session
// are serialized, so the API behaves like a single-user app.
type Server struct {
	controller *session.Controller
	logger     *log.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server

	// WebSocket keepalive
	pongWait   time.Duration
	pingPeriod time.Duration

	mu    sync.Mutex
	state *session.State
}

// NewServer creates a new API server around a session controller
func NewServer(controller *session.Controller, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		controller: controller,
		logger:     logger.WithPrefix("api"),
		state:      &session.State{},
		pongWait:   defaultPongWait,
		pingPeriod: defaultPingPeriod,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Only allow localhost connections for security
				return isLocalhostOrigin(r.Header.Get("Origin"))
			},
		},
	}
}

// isLocalhostOrigin reports whether origin is empty or a loopback address
func isLocalhostOrigin(origin string) bool {
	if origin == "" {
		return true // Allow connections without origin (like from curl)
	}
	return strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:") ||
		strings.HasPrefix(origin, "http://[::1]:")
}

// Start serves the API on addr until Stop is called
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the routed API handler. CORS wraps the router so that
// preflight requests are answered for every route.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.setupRoutes())
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Session
	api.HandleFunc("/session", s.handleGetSession).Methods("GET")
	api.HandleFunc("/session/new", s.handleNewSession).Methods("POST")
	api.HandleFunc("/documents", s.handleUploadDocuments).Methods("POST")

	// Saved histories
	api.HandleFunc("/histories", s.handleListHistories).Methods("GET")
	api.HandleFunc("/histories/{filename}/load", s.handleLoadHistory).Methods("POST")
	api.HandleFunc("/histories/{filename}", s.handleDeleteHistory).Methods("DELETE")

	// Chat, streamed over SSE or WebSocket
	api.HandleFunc("/chat", s.handleChatSSE).Methods("POST")
	api.HandleFunc("/chat/ws", s.handleChatWebSocket)

	return router
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allow := r.Header.Get("Origin")
		if allow == "" || !isLocalhostOrigin(allow) {
			allow = "http://localhost:47100"
		}
		w.Header().Set("Access-Control-Allow-Origin", allow)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Response helpers
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeFailure reports err with the status code it maps to
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeError(w, err.Error(), code)
}

// Health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"services": map[string]bool{
			"gemini": s.controller.HasClient(),
			"api":    true,
		},
	}
	s.writeJSON(w, health)
}
