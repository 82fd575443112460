// Package memory provides per-session conversation history so follow-up
// questions within one search session can reference earlier exchanges.
package memory

import (
	"strings"
	"sync"
	"time"
)

// Message is a single exchange entry in a search session.
type Message struct {
	Role      string // "user" or "assistant"
	Content   string
	Timestamp time.Time
}

type session struct {
	messages  []Message
	updatedAt time.Time
}

// Store holds search-session history in memory. Sessions expire after a TTL
// of inactivity and are capped at a fixed number of messages.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*session
	maxMessages int
	ttl         time.Duration
}

// NewStore creates a session store.
func NewStore(maxMessages int, ttl time.Duration) *Store {
	return &Store{
		sessions:    make(map[string]*session),
		maxMessages: maxMessages,
		ttl:         ttl,
	}
}

// DefaultStore creates a store with 20 messages per session (10 question
// turns) and a 1 hour inactivity TTL.
func DefaultStore() *Store {
	return NewStore(20, time.Hour)
}

// AddUserMessage appends a question to the session.
func (s *Store) AddUserMessage(sessionID, content string) {
	s.add(sessionID, "user", content)
}

// AddAssistantMessage appends an answer to the session.
func (s *Store) AddAssistantMessage(sessionID, content string) {
	s.add(sessionID, "assistant", content)
}

func (s *Store) add(sessionID, role, content string) {
	if sessionID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{}
		s.sessions[sessionID] = sess
	}

	sess.messages = append(sess.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if len(sess.messages) > s.maxMessages {
		sess.messages = sess.messages[len(sess.messages)-s.maxMessages:]
	}
	sess.updatedAt = time.Now().UTC()
}

// RecentHistory returns up to limit most recent messages for the session,
// oldest first. Expired or unknown sessions yield nil.
func (s *Store) RecentHistory(sessionID string, limit int) []Message {
	if sessionID == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || time.Since(sess.updatedAt) > s.ttl {
		return nil
	}

	msgs := sess.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// pruneLocked drops expired sessions. Called with the write lock held; the
// session count is small enough that a sweep per write beats a background
// goroutine.
func (s *Store) pruneLocked() {
	cutoff := time.Now().UTC().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.updatedAt.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

// FormatForPrompt renders history for inclusion in a synthesis prompt.
func FormatForPrompt(messages []Message) string {
	var sb strings.Builder
	for _, m := range messages {
		switch m.Role {
		case "user":
			sb.WriteString("User: ")
		case "assistant":
			sb.WriteString("Assistant: ")
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
