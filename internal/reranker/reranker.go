// Package reranker provides a relevance rerank pass over fused retrieval
// results.
//
// Reranking sends the query together with each candidate's content to the
// generative oracle and reorders by the returned relevance judgments. It is
// an accuracy/latency trade: one extra oracle call per question, better
// ordering when the upstream scores are close together.
//
// The reranker never fails a question. Whatever goes wrong with the oracle,
// the caller observes a usable, possibly degraded result.
package reranker

import (
	"context"

	"github.com/outbrain/memoryd/internal/retrieval"
)

// ScoredCandidate is a candidate annotated with an oracle-supplied relevance
// score in [0,1]. Relevance defaults to 0.0 for any candidate whose score
// could not be obtained.
type ScoredCandidate struct {
	retrieval.Candidate

	Relevance float32
}

// Reranker reorders candidates by query relevance.
type Reranker interface {
	// Rerank scores each candidate against the query and returns at most
	// topK candidates sorted by relevance descending. It does not return an
	// error: oracle failures degrade to the first topK candidates in their
	// incoming order with relevance 0.0.
	Rerank(ctx context.Context, query string, candidates []retrieval.Candidate, topK int) []ScoredCandidate
}
