// internal/mcpserver/sessions.go
package mcpserver

import (
	"sync"
	"time"

	"loan-origination/internal/common/metrics"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type session struct {
	transport *mcp.StreamableServerTransport
	conn      *mcp.ServerSession
	lastUsed  time.Time
}

// sessionRegistry tracks live sessions by id. Every change updates the
// active-sessions gauge.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*session)}
}

func (r *sessionRegistry) add(id string, s *session) {
	r.mu.Lock()
	r.sessions[id] = s
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.MCPSessionsActive.Set(float64(n))
}

// touch returns the session and marks it used.
func (r *sessionRegistry) touch(id string, now time.Time) (*session, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		s.lastUsed = now
	}
	return s, ok
}

func (r *sessionRegistry) remove(id string) (*session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.MCPSessionsActive.Set(float64(n))
	return s, ok
}

// idle detaches sessions unused since before cutoff and returns them for closing.
func (r *sessionRegistry) idle(cutoff time.Time) map[string]*session {
	r.mu.Lock()
	out := make(map[string]*session)
	for id, s := range r.sessions {
		if s.lastUsed.Before(cutoff) {
			out[id] = s
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.MCPSessionsActive.Set(float64(n))
	return out
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
