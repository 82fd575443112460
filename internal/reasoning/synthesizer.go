package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/outbrain/memoryd/internal/graphstore"
	"github.com/outbrain/memoryd/internal/llm"
	"github.com/outbrain/memoryd/internal/memory"
	"github.com/outbrain/memoryd/internal/reranker"
)

const synthesisSystemPrompt = `You are a personal memory assistant. Answer the question using ONLY the provided memory records and knowledge graph context. If the context is insufficient to answer, say so plainly and set confidence to 0.0. Never invent memories.`

// SynthesisResult is the synthesizer's output: an answer grounded in the
// supplied evidence, a confidence in [0,1], and a short reasoning summary.
type SynthesisResult struct {
	Answer           string
	Confidence       float32
	ReasoningSummary string
}

// Synthesizer generates the final answer from the reranked records and the
// expanded subgraph. It never returns an error: an unconfigured or degraded
// oracle produces a clearly marked zero-confidence result instead.
type Synthesizer struct {
	oracle llm.Oracle
	model  string
}

// NewSynthesizer creates an answer synthesizer. A nil oracle is allowed and
// yields placeholder answers.
func NewSynthesizer(oracle llm.Oracle, model string) *Synthesizer {
	return &Synthesizer{oracle: oracle, model: model}
}

type synthesisResponse struct {
	Answer           string  `json:"answer"`
	Confidence       float32 `json:"confidence"`
	ReasoningSummary string  `json:"reasoning_summary"`
}

// Synthesize builds the grounding context and asks the oracle for a
// structured answer. Parse failures produce a deterministic error-shaped
// result rather than an exception.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, records []reranker.ScoredCandidate, graph *graphstore.Subgraph, history []memory.Message) SynthesisResult {
	if s.oracle == nil {
		return SynthesisResult{
			Answer:           "Answer generation is not configured.",
			Confidence:       0.0,
			ReasoningSummary: "no generative oracle configured",
		}
	}

	prompt := buildSynthesisPrompt(question, records, graph, history)

	response, err := s.oracle.Generate(ctx, prompt, llm.GenerateOptions{
		Model:        s.model,
		SystemPrompt: synthesisSystemPrompt,
		Temperature:  0.2,
		MaxTokens:    1024,
	})
	if err != nil {
		return SynthesisResult{
			Answer:           "I couldn't generate an answer right now.",
			Confidence:       0.0,
			ReasoningSummary: fmt.Sprintf("generation failed: %v", err),
		}
	}

	var parsed synthesisResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		return SynthesisResult{
			Answer:           "I couldn't interpret the generated answer.",
			Confidence:       0.0,
			ReasoningSummary: fmt.Sprintf("response could not be parsed: %v", err),
		}
	}

	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}
	if parsed.Answer == "" {
		parsed.Answer = "I couldn't generate an answer."
	}

	return SynthesisResult{
		Answer:           parsed.Answer,
		Confidence:       parsed.Confidence,
		ReasoningSummary: parsed.ReasoningSummary,
	}
}

// buildSynthesisPrompt renders the records, the subgraph, and any session
// history into the grounding context.
func buildSynthesisPrompt(question string, records []reranker.ScoredCandidate, graph *graphstore.Subgraph, history []memory.Message) string {
	var sb strings.Builder

	if len(history) > 0 {
		sb.WriteString("## Conversation History\n")
		sb.WriteString(memory.FormatForPrompt(history))
		sb.WriteString("\n")
	}

	sb.WriteString("## Memory Records\n\n")
	if len(records) == 0 {
		sb.WriteString("(no records found)\n\n")
	}
	for i, rec := range records {
		fmt.Fprintf(&sb, "[Record %d]", i+1)
		if rec.Title != "" {
			fmt.Fprintf(&sb, " (Title: %s)", rec.Title)
		}
		if rec.Date != "" {
			fmt.Fprintf(&sb, " (Date: %s)", rec.Date)
		}
		sb.WriteString("\n")
		sb.WriteString(rec.Content)
		sb.WriteString("\n\n")
	}

	if graph != nil && len(graph.Nodes) > 0 {
		sb.WriteString("## Knowledge Graph Context\n\nEntities:\n")
		names := make(map[string]string, len(graph.Nodes))
		for _, node := range graph.Nodes {
			name := nodeDisplay(node)
			names[node.ElementID] = name
			fmt.Fprintf(&sb, "- (%s) %s\n", strings.Join(node.Labels, ","), name)
		}
		if len(graph.Edges) > 0 {
			sb.WriteString("\nRelationships:\n")
			for _, edge := range graph.Edges {
				src, dst := names[edge.SourceID], names[edge.TargetID]
				if src == "" || dst == "" {
					continue
				}
				fmt.Fprintf(&sb, "- %s -[%s]-> %s\n", src, edge.Type, dst)
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Question\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	sb.WriteString(`Respond with ONLY valid JSON in this exact format:
{"answer": "...", "confidence": 0.0, "reasoning_summary": "..."}

confidence is a number between 0.0 and 1.0 reflecting how well the context supports the answer.`)

	return sb.String()
}

// nodeDisplay picks a human-readable name for a graph node.
func nodeDisplay(node graphstore.Node) string {
	for _, key := range []string{"name", "summary", "title", "recordId"} {
		if v, ok := node.Props[key].(string); ok && v != "" {
			return v
		}
	}
	if len(node.Labels) > 0 {
		return node.Labels[0]
	}
	return node.ElementID
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
