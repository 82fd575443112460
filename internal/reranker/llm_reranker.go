package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/outbrain/memoryd/internal/llm"
	"github.com/outbrain/memoryd/internal/retrieval"
)

// maxContentLength bounds how much of each candidate's content goes into the
// scoring prompt.
const maxContentLength = 500

// LLMReranker scores query-candidate pairs with the generative oracle. The
// model sees query and content together, which judges topical relevance more
// accurately than the independent embedding scores.
type LLMReranker struct {
	oracle llm.Oracle
	model  string
}

// NewLLMReranker creates an oracle-backed reranker. A nil oracle is allowed
// and makes every Rerank call take the fallback path.
func NewLLMReranker(oracle llm.Oracle, model string) *LLMReranker {
	return &LLMReranker{oracle: oracle, model: model}
}

type rerankResponse struct {
	Scores []float32 `json:"scores"`
}

// Rerank scores each candidate's relevance to the query and returns the top
// topK sorted by relevance descending. Any oracle failure (unconfigured,
// unreachable, unparseable response) degrades to the first topK candidates
// in incoming order with relevance 0.0; a parseable-but-short score list
// fills the missing positions with 0.0 rather than failing.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []retrieval.Candidate, topK int) []ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}
	if topK > len(candidates) || topK <= 0 {
		topK = len(candidates)
	}

	if r.oracle == nil {
		slog.Warn("rerank oracle not configured, keeping incoming order")
		return passthrough(candidates, topK)
	}

	prompt := buildRerankPrompt(query, candidates)

	response, err := r.oracle.Generate(ctx, prompt, llm.GenerateOptions{
		Model:       r.model,
		Temperature: 0.0, // deterministic scoring
		MaxTokens:   1024,
	})
	if err != nil {
		slog.Warn("rerank oracle call failed, keeping incoming order", "error", err)
		return passthrough(candidates, topK)
	}

	scores, err := parseRerankResponse(response, len(candidates))
	if err != nil {
		slog.Warn("rerank response unparseable, keeping incoming order", "error", err)
		return passthrough(candidates, topK)
	}

	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = ScoredCandidate{Candidate: c, Relevance: scores[i]}
		scored[i].Score = scores[i]
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Relevance > scored[j].Relevance
	})

	return scored[:topK]
}

// buildRerankPrompt constructs the scoring prompt. Content is truncated to
// bound the payload size.
func buildRerankPrompt(query string, candidates []retrieval.Candidate) string {
	var sb strings.Builder

	sb.WriteString("You are a relevance scoring system. Score each memory record's relevance to the question.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nRecords to score:\n")

	for i, c := range candidates {
		content := c.Content
		if len(content) > maxContentLength {
			content = content[:maxContentLength] + "..."
		}
		fmt.Fprintf(&sb, "[Record %d] %s: %s\n\n", i, c.Title, content)
	}

	fmt.Fprintf(&sb, `Score each record from 0.0 to 1.0 based on relevance to the question.
Output ONLY valid JSON in this exact format, one score per record in order:
{"scores": [0.9, 0.3, ...]}

Be strict: irrelevant records should score below 0.3, somewhat relevant 0.3-0.7, highly relevant above 0.7.
Output only JSON, no explanation. The array must have %d entries:`, len(candidates))

	return sb.String()
}

// parseRerankResponse extracts one score per candidate from the oracle
// response. Missing trailing positions default to 0.0; extra entries are
// ignored; scores are clamped to [0,1].
func parseRerankResponse(response string, numCandidates int) ([]float32, error) {
	var parsed rerankResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse rerank response: %w", err)
	}

	scores := make([]float32, numCandidates)
	for i, s := range parsed.Scores {
		if i >= numCandidates {
			break
		}
		if s < 0 {
			s = 0
		}
		if s > 1 {
			s = 1
		}
		scores[i] = s
	}
	return scores, nil
}

// extractJSON strips markdown code fences the model may wrap its output in.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + 7
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	}

	return strings.TrimSpace(response)
}

func passthrough(candidates []retrieval.Candidate, topK int) []ScoredCandidate {
	scored := make([]ScoredCandidate, topK)
	for i := 0; i < topK; i++ {
		scored[i] = ScoredCandidate{Candidate: candidates[i], Relevance: 0.0}
	}
	return scored
}

// Ensure LLMReranker implements Reranker.
var _ Reranker = (*LLMReranker)(nil)
