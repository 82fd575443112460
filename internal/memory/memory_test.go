package memory

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestStore_RoundTrip(t *testing.T) {
	s := DefaultStore()

	s.AddUserMessage("sess1", "What did I do yesterday?")
	s.AddAssistantMessage("sess1", "You went hiking.")

	got := s.RecentHistory("sess1", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Role != "user" || got[1].Role != "assistant" {
		t.Errorf("unexpected roles: %s, %s", got[0].Role, got[1].Role)
	}
}

func TestStore_SessionsIsolated(t *testing.T) {
	s := DefaultStore()

	s.AddUserMessage("sess1", "question one")
	s.AddUserMessage("sess2", "question two")

	if got := s.RecentHistory("sess1", 10); len(got) != 1 || got[0].Content != "question one" {
		t.Errorf("session 1 history leaked: %v", got)
	}
}

func TestStore_CapsMessages(t *testing.T) {
	s := NewStore(4, time.Hour)

	for i := 0; i < 10; i++ {
		s.AddUserMessage("sess", fmt.Sprintf("message %d", i))
	}

	got := s.RecentHistory("sess", 0)
	if len(got) != 4 {
		t.Fatalf("expected cap of 4 messages, got %d", len(got))
	}
	if got[0].Content != "message 6" {
		t.Errorf("expected oldest kept message to be 'message 6', got %q", got[0].Content)
	}
}

func TestStore_ExpiredSessionDropped(t *testing.T) {
	s := NewStore(10, time.Millisecond)

	s.AddUserMessage("sess", "hello")
	time.Sleep(5 * time.Millisecond)

	if got := s.RecentHistory("sess", 10); got != nil {
		t.Errorf("expected expired session to yield nil, got %v", got)
	}
}

func TestStore_EmptySessionIDIgnored(t *testing.T) {
	s := DefaultStore()
	s.AddUserMessage("", "anonymous question")
	if got := s.RecentHistory("", 10); got != nil {
		t.Errorf("expected nil history for empty session id, got %v", got)
	}
}

func TestFormatForPrompt(t *testing.T) {
	out := FormatForPrompt([]Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
	})
	if !strings.Contains(out, "User: q") || !strings.Contains(out, "Assistant: a") {
		t.Errorf("unexpected prompt rendering: %q", out)
	}
}
