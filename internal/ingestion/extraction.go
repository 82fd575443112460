package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/outbrain/memoryd/internal/graphstore"
	"github.com/outbrain/memoryd/internal/llm"
)

const extractionSystemPrompt = `You extract structured facts from personal memory records. Identify the events described, the people involved, the actions taken, and the outcomes, plus the overall emotions. Be literal: only extract what the text states.`

// Extractor turns free-form record text into the entity graph stored in
// Neo4j.
type Extractor struct {
	oracle llm.Oracle
	model  string
}

// NewExtractor creates an entity extractor backed by the given oracle.
func NewExtractor(oracle llm.Oracle, model string) *Extractor {
	return &Extractor{oracle: oracle, model: model}
}

type extractedEvent struct {
	Summary  string   `json:"summary"`
	People   []string `json:"people"`
	Actions  []string `json:"actions"`
	Outcomes []string `json:"outcomes"`
}

type extractionResponse struct {
	Events   []extractedEvent `json:"events"`
	Emotions []string         `json:"emotions"`
}

// Extract asks the oracle to pull events, people, actions, outcomes, and
// emotions out of the record text.
func (e *Extractor) Extract(ctx context.Context, text string) (*graphstore.RecordGraph, error) {
	if e.oracle == nil {
		return nil, fmt.Errorf("no extraction oracle configured")
	}

	prompt := fmt.Sprintf(`Extract structured facts from this memory record:

%s

Respond with ONLY valid JSON in this exact format:
{"events": [{"summary": "...", "people": ["..."], "actions": ["..."], "outcomes": ["..."]}], "emotions": ["..."]}`, text)

	response, err := e.oracle.Generate(ctx, prompt, llm.GenerateOptions{
		Model:        e.model,
		SystemPrompt: extractionSystemPrompt,
		Temperature:  0.0,
		MaxTokens:    1024,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	var parsed extractionResponse
	if err := json.Unmarshal([]byte(stripFences(response)), &parsed); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}

	graph := &graphstore.RecordGraph{Emotions: parsed.Emotions}
	for _, ev := range parsed.Events {
		graph.Events = append(graph.Events, graphstore.EventGraph{
			Summary:  ev.Summary,
			People:   ev.People,
			Actions:  ev.Actions,
			Outcomes: ev.Outcomes,
		})
	}
	return graph, nil
}

func stripFences(response string) string {
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
