// Package gateway is the thin HTTP front door: one endpoint to invoke
// tools, one to read the session history, and a health root. The reasoning
// loop lives outside this process boundary; the gateway only dispatches.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"sophia/internal/domain"
)

// ErrInvalidPort is returned when the gateway port is not in 0..65535.
var ErrInvalidPort = errors.New("gateway port must be 0-65535")

// maxBodyBytes bounds request bodies; tool arguments are small.
const maxBodyBytes = 1 << 20

// invokeRequest is the body of POST /invoke.
type invokeRequest struct {
	Tool     string          `json:"tool"`
	Argument json.RawMessage `json:"argument,omitempty"`
}

// Server exposes the dispatch facade and one session's conversation record
// over HTTP, optionally behind Bearer auth.
type Server struct {
	cfg     domain.GatewayConfig
	invoker domain.ToolInvoker
	record  domain.ConversationRecorder
	logger  *slog.Logger
	server  *http.Server
	addrMu  sync.RWMutex
	addr    string
}

// NewServer builds the gateway. Invoker must not be nil; record may be nil
// when no session history endpoint is wanted. Port 0 means pick a random
// port. Returns ErrInvalidPort if port is out of range.
func NewServer(cfg domain.GatewayConfig, invoker domain.ToolInvoker, record domain.ConversationRecorder, logger *slog.Logger) (*Server, error) {
	if invoker == nil {
		return nil, errors.New("gateway: invoker must not be nil")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, ErrInvalidPort
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, invoker: invoker, record: record, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /invoke", s.handleInvoke)
	mux.HandleFunc("GET /history", s.handleHistory)

	handler := requestLog(logger)(bearerAuth(cfg.AuthToken)(mux))
	s.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP handler (auth + routes), for tests that do not
// want to bind a port.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Addr returns the bound address after Run has started; empty before.
func (s *Server) Addr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

// Run listens on the configured port and serves until shutdown is closed.
// Returns nil on graceful shutdown.
func (s *Server) Run(shutdown <-chan struct{}) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(s.cfg.Port))
	if err != nil {
		return err
	}
	s.addrMu.Lock()
	s.addr = ln.Addr().String()
	s.addrMu.Unlock()
	s.logger.Info("gateway listening", "addr", s.addr)

	done := make(chan error, 1)
	go func() { done <- s.server.Serve(ln) }()

	select {
	case err := <-done:
		return err
	case <-shutdown:
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	<-done
	return nil
}

// handleInvoke dispatches one tool call. The response is always a result
// envelope with HTTP 200: tool-level failures are data for the caller to
// narrate, not transport errors.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Tool == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tool name is required"})
		return
	}
	result := s.invoker.Invoke(r.Context(), req.Tool, req.Argument)
	writeJSON(w, http.StatusOK, result)
}

// handleHistory returns the session's conversation record.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.record == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no session history configured"})
		return
	}
	writeJSON(w, http.StatusOK, s.record.History())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
