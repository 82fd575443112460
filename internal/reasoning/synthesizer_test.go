package reasoning

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/outbrain/memoryd/internal/graphstore"
	"github.com/outbrain/memoryd/internal/llm"
	"github.com/outbrain/memoryd/internal/memory"
	"github.com/outbrain/memoryd/internal/reranker"
	"github.com/outbrain/memoryd/internal/retrieval"
)

type stubOracle struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubOracle) Generate(_ context.Context, prompt string, _ llm.GenerateOptions) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func scoredRecords() []reranker.ScoredCandidate {
	return []reranker.ScoredCandidate{
		{Candidate: retrieval.Candidate{ID: "id-1", RecordID: "rec-1", Title: "Beach day", Content: "Went to the beach with Sam.", Date: "2026-08-20"}, Relevance: 0.9},
		{Candidate: retrieval.Candidate{ID: "id-2", RecordID: "rec-2", Content: "Quiet afternoon reading."}, Relevance: 0.4},
	}
}

func TestSynthesize_ParsesStructuredResponse(t *testing.T) {
	oracle := &stubOracle{response: `{"answer": "You went to the beach with Sam.", "confidence": 0.85, "reasoning_summary": "matched a beach record"}`}
	s := NewSynthesizer(oracle, "test-model")

	result := s.Synthesize(context.Background(), "What did I do last week?", scoredRecords(), &graphstore.Subgraph{}, nil)

	if result.Answer != "You went to the beach with Sam." {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	if result.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", result.Confidence)
	}
	if result.ReasoningSummary != "matched a beach record" {
		t.Errorf("unexpected summary: %q", result.ReasoningSummary)
	}
}

func TestSynthesize_PromptContainsEvidence(t *testing.T) {
	oracle := &stubOracle{response: `{"answer": "ok", "confidence": 0.5, "reasoning_summary": ""}`}
	s := NewSynthesizer(oracle, "test-model")

	graph := &graphstore.Subgraph{
		Nodes: []graphstore.Node{
			{ElementID: "n1", Labels: []string{"Person"}, Props: map[string]any{"name": "Sam"}},
			{ElementID: "n2", Labels: []string{"Record"}, Props: map[string]any{"recordId": "rec-1"}},
		},
		Edges: []graphstore.Edge{{SourceID: "n2", TargetID: "n1", Type: "INVOLVES"}},
	}
	history := []memory.Message{{Role: "user", Content: "earlier question"}}

	s.Synthesize(context.Background(), "Who was with me?", scoredRecords(), graph, history)

	for _, want := range []string{
		"Went to the beach with Sam.",
		"Beach day",
		"Sam",
		"INVOLVES",
		"earlier question",
		"Who was with me?",
	} {
		if !strings.Contains(oracle.lastPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSynthesize_CodeFencedJSON(t *testing.T) {
	oracle := &stubOracle{response: "```json\n{\"answer\": \"fenced\", \"confidence\": 0.6, \"reasoning_summary\": \"s\"}\n```"}
	s := NewSynthesizer(oracle, "test-model")

	result := s.Synthesize(context.Background(), "q", nil, nil, nil)
	if result.Answer != "fenced" || result.Confidence != 0.6 {
		t.Errorf("got %+v, want fenced/0.6", result)
	}
}

func TestSynthesize_GarbageResponseIsZeroConfidence(t *testing.T) {
	oracle := &stubOracle{response: "sorry, I can only answer in prose"}
	s := NewSynthesizer(oracle, "test-model")

	result := s.Synthesize(context.Background(), "q", scoredRecords(), nil, nil)
	if result.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", result.Confidence)
	}
	if result.Answer == "" {
		t.Error("expected a non-empty fallback answer")
	}
}

func TestSynthesize_OracleErrorIsZeroConfidence(t *testing.T) {
	oracle := &stubOracle{err: errors.New("connection refused")}
	s := NewSynthesizer(oracle, "test-model")

	result := s.Synthesize(context.Background(), "q", nil, nil, nil)
	if result.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", result.Confidence)
	}
	if !strings.Contains(result.ReasoningSummary, "generation failed") {
		t.Errorf("summary should mention the failure, got %q", result.ReasoningSummary)
	}
}

func TestSynthesize_NilOracle(t *testing.T) {
	s := NewSynthesizer(nil, "")

	result := s.Synthesize(context.Background(), "q", nil, nil, nil)
	if result.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", result.Confidence)
	}
}

func TestSynthesize_ClampsConfidence(t *testing.T) {
	oracle := &stubOracle{response: `{"answer": "a", "confidence": 1.7, "reasoning_summary": ""}`}
	s := NewSynthesizer(oracle, "test-model")

	result := s.Synthesize(context.Background(), "q", nil, nil, nil)
	if result.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamp to 1.0", result.Confidence)
	}
}
