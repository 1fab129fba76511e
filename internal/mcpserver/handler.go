// internal/mcpserver/handler.go
package mcpserver

import (
	"bytes"
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"loan-origination/internal/common/config"
	"loan-origination/internal/common/logger"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ServerName    = "app-builder-mcp-server"
	ServerTitle   = "App Builder MCP Server"
	ServerVersion = "1.0.0"

	sessionHeader      = "Mcp-Session-Id"
	defaultIdleTimeout = 30 * time.Minute
	maxMessageSize     = 4 << 20
)

// Handler serves the tool protocol over streamable HTTP. Each session gets
// its own protocol server bound to the user tools.
type Handler struct {
	apiKey   string
	idle     time.Duration
	tools    *userTools
	sessions *sessionRegistry
	logger   logger.Logger
	now      func() time.Time

	// sessions outlive the request that created them
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHandler(cfg config.MCPConfig, users Users, log logger.Logger) *Handler {
	idle := time.Duration(cfg.SessionIdleTimeout) * time.Millisecond
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		apiKey:   cfg.APIKey,
		idle:     idle,
		tools:    &userTools{users: users, logger: log},
		sessions: newSessionRegistry(),
		logger:   log,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Method == http.MethodPost {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
		if err != nil {
			writeRPCError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid Request: unreadable body", nil, nil)
			return
		}
		body = raw
		r.Body = io.NopCloser(bytes.NewReader(raw))
	}

	if !h.authorized(w, r, body) {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("tool protocol handler panicked", map[string]interface{}{
				"panic": fmt.Sprint(rec),
				"stack": string(debug.Stack()),
			})
			writeRPCError(w, http.StatusInternalServerError, codeInternalError, "Internal error",
				map[string]string{"details": fmt.Sprint(rec)}, nil)
		}
	}()

	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r, body)
	case http.MethodGet:
		h.handleStream(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		writeRPCError(w, http.StatusMethodNotAllowed, codeInvalidRequest, "Method not allowed", nil, nil)
	}
}

func (h *Handler) authorized(w http.ResponseWriter, r *http.Request, body []byte) bool {
	key := r.Header.Get("Authorization")
	if key == "" {
		writeRPCError(w, http.StatusUnauthorized, codeUnauthorized, "Unauthorized: API key required", nil, requestID(body))
		return false
	}
	if h.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
		writeRPCError(w, http.StatusUnauthorized, codeUnauthorized, "Unauthorized: Invalid API key", nil, requestID(body))
		return false
	}
	return true
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request, body []byte) {
	id := strings.TrimSpace(r.Header.Get(sessionHeader))

	s, ok := h.sessions.touch(id, h.now())
	if !ok {
		if id != "" || !isInitialize(body) {
			writeRPCError(w, http.StatusBadRequest, codeInvalidRequest,
				"Invalid Request: No valid session ID provided", nil, requestID(body))
			return
		}
		created, err := h.open()
		if err != nil {
			h.logger.Error("failed to open tool session", map[string]interface{}{"error": err.Error()})
			writeRPCError(w, http.StatusInternalServerError, codeInternalError, "Internal error",
				map[string]string{"details": err.Error()}, requestID(body))
			return
		}
		s = created
	}

	if name, isCall := calledTool(body); isCall && !toolNames[name] {
		writeRPCError(w, http.StatusOK, codeMethodNotFound, "Method not found: "+name, nil, requestID(body))
		return
	}

	s.transport.ServeHTTP(w, r)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.touch(r.Header.Get(sessionHeader), h.now())
	if !ok {
		writeRPCError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid Request: Invalid or missing session ID", nil, nil)
		return
	}
	s.transport.ServeHTTP(w, r)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(sessionHeader)
	s, ok := h.sessions.touch(id, h.now())
	if !ok {
		writeRPCError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid Request: Invalid or missing session ID", nil, nil)
		return
	}
	s.transport.ServeHTTP(w, r)
	h.close(id)
}

// open creates a session with a fresh protocol server and registers it.
func (h *Handler) open() (*session, error) {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Title:   ServerTitle,
		Version: ServerVersion,
	}, nil)
	h.tools.register(server)

	id := uuid.NewString()
	transport := &mcp.StreamableServerTransport{SessionID: id}
	conn, err := server.Connect(h.ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect session: %w", err)
	}

	s := &session{transport: transport, conn: conn, lastUsed: h.now()}
	h.sessions.add(id, s)
	h.logger.Info("tool session opened", map[string]interface{}{"sessionId": id})
	return s, nil
}

func (h *Handler) close(id string) {
	s, ok := h.sessions.remove(id)
	if !ok {
		return
	}
	_ = s.conn.Close()
	h.logger.Info("tool session closed", map[string]interface{}{"sessionId": id})
}

// EvictIdle closes sessions idle for longer than the configured timeout and
// returns how many were closed.
func (h *Handler) EvictIdle() int {
	stale := h.sessions.idle(h.now().Add(-h.idle))
	for id, s := range stale {
		_ = s.conn.Close()
		h.logger.Info("idle tool session evicted", map[string]interface{}{"sessionId": id})
	}
	return len(stale)
}

// ActiveSessions reports the number of open sessions.
func (h *Handler) ActiveSessions() int {
	return h.sessions.len()
}

// Close ends every session.
func (h *Handler) Close() {
	for id, s := range h.sessions.idle(h.now().Add(time.Hour * 24 * 365)) {
		_ = s.conn.Close()
		h.logger.Debug("tool session closed on shutdown", map[string]interface{}{"sessionId": id})
	}
	h.cancel()
}
