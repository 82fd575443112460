// Package retrieval holds the candidate model shared by the search, fusion,
// reranking, and reasoning stages, together with the rank-fusion and recency
// reweighting algorithms that turn raw search hits into a single ranking.
package retrieval

// Candidate is a retrieved memory record projection flowing through the
// retrieval pipeline. Score is stage-dependent: raw vector similarity after
// vector search, a lexical rank score after text search, a fused score after
// rank fusion, and a blended score after recency reweighting. Scores are only
// comparable to other candidates processed through the same stage.
type Candidate struct {
	// ID is the storage identifier, stable and unique per underlying record.
	ID string

	// RecordID is the domain record identifier (distinct from the storage
	// identifier) used for knowledge-graph lookups. May be empty for
	// candidates that never went through graph ingestion.
	RecordID string

	Title   string
	Content string

	// Date is the record's timestamp as stored: either a date-only string
	// (YYYY-MM-DD) or full RFC 3339. May be empty.
	Date string

	Score float32
}
