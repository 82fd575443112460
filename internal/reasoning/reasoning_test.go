package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/outbrain/memoryd/internal/graphstore"
	"github.com/outbrain/memoryd/internal/memory"
	"github.com/outbrain/memoryd/internal/reranker"
	"github.com/outbrain/memoryd/internal/retrieval"
	"github.com/outbrain/memoryd/internal/vectorstore"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) Dimension() int    { return 3 }
func (f *fakeEmbedder) ModelName() string { return "fake" }

type fakeVectorStore struct {
	results    []retrieval.Candidate
	err        error
	lastUserID string
}

func (f *fakeVectorStore) EnsureCollection(context.Context, int) error { return nil }
func (f *fakeVectorStore) Upsert(context.Context, []vectorstore.Point) error {
	return nil
}
func (f *fakeVectorStore) Delete(context.Context, string) error { return nil }
func (f *fakeVectorStore) Close() error                         { return nil }

func (f *fakeVectorStore) Search(_ context.Context, userID string, _ []float32, _ int) ([]retrieval.Candidate, error) {
	f.lastUserID = userID
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeTextSearcher struct {
	results    []retrieval.Candidate
	err        error
	lastUserID string
}

func (f *fakeTextSearcher) TextSearch(_ context.Context, userID, _ string, _ int) ([]retrieval.Candidate, error) {
	f.lastUserID = userID
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeGraph struct {
	subgraph  *graphstore.Subgraph
	err       error
	lastSeeds []string
}

func (f *fakeGraph) ExpandContext(_ context.Context, _ string, seeds []string, _ int) (*graphstore.Subgraph, error) {
	f.lastSeeds = seeds
	if f.err != nil {
		return nil, f.err
	}
	return f.subgraph, nil
}

func (f *fakeGraph) UpsertRecordGraph(context.Context, string, *graphstore.RecordGraph) error {
	return nil
}
func (f *fakeGraph) DeleteRecordGraph(context.Context, string, string) error { return nil }
func (f *fakeGraph) Close(context.Context) error                            { return nil }

type passthroughReranker struct{}

func (passthroughReranker) Rerank(_ context.Context, _ string, candidates []retrieval.Candidate, topK int) []reranker.ScoredCandidate {
	out := make([]reranker.ScoredCandidate, 0, topK)
	for i, c := range candidates {
		if i >= topK {
			break
		}
		out = append(out, reranker.ScoredCandidate{Candidate: c, Relevance: 0.5})
	}
	return out
}

func candidate(id string, score float32) retrieval.Candidate {
	return retrieval.Candidate{
		ID:       id,
		RecordID: "rec-" + id,
		Content:  "content for " + id,
		Date:     "2026-08-25",
		Score:    score,
	}
}

func newTestService(vectors *fakeVectorStore, texts TextSearcher, graph graphstore.GraphStore) *Service {
	oracle := &stubOracle{response: `{"answer": "synthesized", "confidence": 0.7, "reasoning_summary": "used records"}`}
	return NewService(
		&fakeEmbedder{},
		vectors,
		texts,
		passthroughReranker{},
		graph,
		NewSynthesizer(oracle, "test-model"),
		memory.NewStore(10, time.Hour),
		DefaultOptions(),
		slog.Default(),
	)
}

func TestAnswerQuestion_HappyPath(t *testing.T) {
	vectors := &fakeVectorStore{results: []retrieval.Candidate{candidate("a", 0.9), candidate("b", 0.7)}}
	texts := &fakeTextSearcher{results: []retrieval.Candidate{candidate("b", 3.1), candidate("c", 1.2)}}
	graph := &fakeGraph{subgraph: &graphstore.Subgraph{
		Nodes: []graphstore.Node{{ElementID: "n1"}, {ElementID: "n2"}},
		Edges: []graphstore.Edge{{SourceID: "n1", TargetID: "n2", Type: "INVOLVES"}},
	}}
	svc := newTestService(vectors, texts, graph)

	answer, err := svc.AnswerQuestion(context.Background(), QuestionRequest{UserID: "user-1", Text: "what happened?"})
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}

	if answer.Answer != "synthesized" {
		t.Errorf("answer = %q", answer.Answer)
	}
	if answer.Confidence != 0.7 {
		t.Errorf("confidence = %v", answer.Confidence)
	}
	if len(answer.ReasoningPath.Records) != 3 {
		t.Fatalf("records = %v, want 3 entries", answer.ReasoningPath.Records)
	}
	// Provenance carries storage IDs, not graph record keys.
	for _, id := range answer.ReasoningPath.Records {
		if id != "a" && id != "b" && id != "c" {
			t.Errorf("unexpected provenance id %q", id)
		}
	}
	if answer.ReasoningPath.GraphSnapshot.NodeCount != 2 || answer.ReasoningPath.GraphSnapshot.EdgeCount != 1 {
		t.Errorf("snapshot = %+v", answer.ReasoningPath.GraphSnapshot)
	}
	// Graph expansion seeds from the record keys.
	for _, seed := range graph.lastSeeds {
		if seed != "rec-a" && seed != "rec-b" && seed != "rec-c" {
			t.Errorf("unexpected graph seed %q", seed)
		}
	}
}

func TestAnswerQuestion_ScopesSearchesToUser(t *testing.T) {
	vectors := &fakeVectorStore{results: []retrieval.Candidate{candidate("a", 0.9)}}
	texts := &fakeTextSearcher{}
	svc := newTestService(vectors, texts, nil)

	if _, err := svc.AnswerQuestion(context.Background(), QuestionRequest{UserID: "user-42", Text: "q"}); err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if vectors.lastUserID != "user-42" {
		t.Errorf("vector search user = %q", vectors.lastUserID)
	}
	if texts.lastUserID != "user-42" {
		t.Errorf("text search user = %q", texts.lastUserID)
	}
}

func TestAnswerQuestion_EmptyStore(t *testing.T) {
	svc := newTestService(&fakeVectorStore{}, &fakeTextSearcher{}, &fakeGraph{subgraph: &graphstore.Subgraph{}})

	answer, err := svc.AnswerQuestion(context.Background(), QuestionRequest{UserID: "user-1", Text: "anything?"})
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if len(answer.ReasoningPath.Records) != 0 {
		t.Errorf("records = %v, want empty", answer.ReasoningPath.Records)
	}
	if answer.ReasoningPath.GraphSnapshot.NodeCount != 0 || answer.ReasoningPath.GraphSnapshot.EdgeCount != 0 {
		t.Errorf("snapshot = %+v, want zeros", answer.ReasoningPath.GraphSnapshot)
	}
}

func TestAnswerQuestion_TextSearchFailureDegradesToVectorOnly(t *testing.T) {
	vectors := &fakeVectorStore{results: []retrieval.Candidate{candidate("a", 0.9)}}
	texts := &fakeTextSearcher{err: fmt.Errorf("broken: %w", errors.New("column does not exist"))}
	svc := newTestService(vectors, texts, nil)

	answer, err := svc.AnswerQuestion(context.Background(), QuestionRequest{UserID: "user-1", Text: "q"})
	if err != nil {
		t.Fatalf("text failure must not be fatal: %v", err)
	}
	if len(answer.ReasoningPath.Records) != 1 || answer.ReasoningPath.Records[0] != "a" {
		t.Errorf("records = %v, want [a]", answer.ReasoningPath.Records)
	}
}

func TestAnswerQuestion_GraphFailureDegradesToEmptySnapshot(t *testing.T) {
	vectors := &fakeVectorStore{results: []retrieval.Candidate{candidate("a", 0.9)}}
	graph := &fakeGraph{err: errors.New("neo4j unreachable")}
	svc := newTestService(vectors, &fakeTextSearcher{}, graph)

	answer, err := svc.AnswerQuestion(context.Background(), QuestionRequest{UserID: "user-1", Text: "q"})
	if err != nil {
		t.Fatalf("graph failure must not be fatal: %v", err)
	}
	if answer.ReasoningPath.GraphSnapshot.NodeCount != 0 {
		t.Errorf("snapshot = %+v, want zeros", answer.ReasoningPath.GraphSnapshot)
	}
}

func TestAnswerQuestion_EmbedFailureIsFatal(t *testing.T) {
	oracle := &stubOracle{response: "{}"}
	svc := NewService(
		&fakeEmbedder{err: errors.New("model offline")},
		&fakeVectorStore{},
		nil,
		passthroughReranker{},
		nil,
		NewSynthesizer(oracle, "test-model"),
		nil,
		DefaultOptions(),
		nil,
	)

	if _, err := svc.AnswerQuestion(context.Background(), QuestionRequest{UserID: "u", Text: "q"}); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestAnswerQuestion_VectorStoreDownIsFatal(t *testing.T) {
	vectors := &fakeVectorStore{err: fmt.Errorf("search: %w", vectorstore.ErrNotConnected)}
	svc := newTestService(vectors, nil, nil)

	_, err := svc.AnswerQuestion(context.Background(), QuestionRequest{UserID: "u", Text: "q"})
	if err == nil {
		t.Fatal("expected error when the vector store is unreachable")
	}
	if !errors.Is(err, vectorstore.ErrNotConnected) {
		t.Errorf("error should wrap ErrNotConnected, got %v", err)
	}
}

func TestAnswerQuestion_ValidatesInput(t *testing.T) {
	svc := newTestService(&fakeVectorStore{}, nil, nil)

	if _, err := svc.AnswerQuestion(context.Background(), QuestionRequest{Text: "q"}); err == nil {
		t.Error("expected error for missing user id")
	}
	if _, err := svc.AnswerQuestion(context.Background(), QuestionRequest{UserID: "u"}); err == nil {
		t.Error("expected error for missing question text")
	}
}

func TestAnswerQuestion_SessionHistoryAccumulates(t *testing.T) {
	vectors := &fakeVectorStore{results: []retrieval.Candidate{candidate("a", 0.9)}}
	svc := newTestService(vectors, nil, nil)

	req := QuestionRequest{UserID: "u", Text: "first question", SearchSessionID: "sess-1"}
	if _, err := svc.AnswerQuestion(context.Background(), req); err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}

	history := svc.sessions.RecentHistory("sess-1", 0)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want question and answer", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "first question" {
		t.Errorf("unexpected first message: %+v", history[0])
	}
	if history[1].Role != "assistant" {
		t.Errorf("unexpected second message: %+v", history[1])
	}
}
