// Package server implements the zenchat chat server: the session registry,
// the per-connection protocol handler, the liveness prober, the shared
// number-guessing game and the file-transfer rendezvous endpoint.
package server

import (
	"io"
	"strings"
	"sync"

	"github.com/zenchat/zenchat/pkg/protocol"
)

// lineWriter serializes protocol lines onto a single connection. Handlers,
// the liveness prober and other users' handlers all write to the same
// socket, so every write goes through one mutex.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{w: w}
}

// SendLine writes one protocol line followed by a newline.
func (lw *lineWriter) SendLine(line string) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	_, err := io.WriteString(lw.w, line+"\n")
	return err
}

// Send encodes and writes a protocol message.
func (lw *lineWriter) Send(cmd string, body any) error {
	line, err := protocol.Encode(cmd, body)
	if err != nil {
		return err
	}
	return lw.SendLine(line)
}

// Session is the record of one logged-in user: the case-preserved name and
// the outbound sink delivering lines to that user's connection.
type Session struct {
	Name string
	out  *lineWriter
}

// NewSession binds a username to an outbound sink.
func NewSession(name string, out *lineWriter) *Session {
	return &Session{Name: name, out: out}
}

// Send delivers a protocol message to this session's connection.
func (s *Session) Send(cmd string, body any) error {
	return s.out.Send(cmd, body)
}

// fold maps a username to its registry key. Usernames are unique
// case-insensitively.
func fold(name string) string {
	return strings.ToLower(name)
}

// Registry is the process-wide map of logged-in users. Add performs its
// uniqueness check and insert under one lock so concurrent logins for the
// same name cannot both succeed.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session. It returns false if the name is already taken.
func (r *Registry) Add(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fold(s.Name)
	if _, taken := r.sessions[key]; taken {
		return false
	}
	r.sessions[key] = s
	return true
}

// Remove unregisters a session by name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, fold(name))
}

// Get looks up a session by name.
func (r *Registry) Get(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[fold(name)]
	return s, ok
}

// Contains reports whether a user is registered.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered usernames. Order is not defined.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sessions))
	for _, s := range r.sessions {
		names = append(names, s.Name)
	}
	return names
}

// Snapshot returns the current sessions. Order is not defined.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Count returns the number of logged-in users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
