// Package executor implements the connection-level command surface:
// a table-driven dispatcher grounded on the teacher's
// server/command.go CommandTable pattern, threading shared storage,
// cluster, and script state across concurrent client sessions.
package executor

import (
	"sync"
	"sync/atomic"
)

var nextClientID int64

// Session holds the per-connection state a command may read or
// mutate: the selected DB index, whether the next command should be
// treated as arriving via ASKING (spec.md §4.2's one-shot ASK
// redirection contract), and the client registry fields spec.md §3's
// SessionState and §4.5's client registry require — a remote-peer
// descriptor fixed at accept time and an optional name set by CLIENT
// SETNAME.
type Session struct {
	ID         int64
	RemoteAddr string
	mu         sync.Mutex
	dbIndex    int
	asking     bool
	name       string
}

// NewSession allocates a session with a process-wide unique id and the
// peer descriptor observed at accept time.
func NewSession(remoteAddr string) *Session {
	return &Session{ID: atomic.AddInt64(&nextClientID, 1), RemoteAddr: remoteAddr}
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *Session) DBIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbIndex
}

func (s *Session) SetDBIndex(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbIndex = i
}

// TakeAsking reports and clears the one-shot ASKING flag: it applies
// only to the single command immediately following ASKING.
func (s *Session) TakeAsking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.asking
	s.asking = false
	return v
}

func (s *Session) SetAsking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asking = true
}
