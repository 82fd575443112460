// Package vectorstore provides vector similarity search over the memory
// records collection.
package vectorstore

import (
	"context"
	"errors"

	"github.com/outbrain/memoryd/internal/retrieval"
)

// ErrNotConnected is returned when the backing store is unreachable. The
// reasoning pipeline treats it as fatal for the primary vector search.
var ErrNotConnected = errors.New("vector store not connected")

// Point is a record's embedding plus the payload projected back out of
// search results.
type Point struct {
	// ID is the storage identifier of the record (shared with the record
	// repository).
	ID string

	// RecordID is the domain identifier used for graph lookups.
	RecordID string

	// UserID scopes the point to its owner. Every search must filter on it.
	UserID string

	Title   string
	Content string
	Date    string
	Vector  []float32
}

// VectorStore defines the vector search capability consumed by the
// reasoning pipeline and the ingestion pipeline.
type VectorStore interface {
	// EnsureCollection creates the records collection if it does not exist.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert inserts or updates record points.
	Upsert(ctx context.Context, points []Point) error

	// Search returns the topK most similar candidates scoped to userID,
	// ranked by similarity descending. Cross-user results are a correctness
	// bug, not a tuning concern: the filter is mandatory.
	Search(ctx context.Context, userID string, vector []float32, topK int) ([]retrieval.Candidate, error)

	// Delete removes the point belonging to a record.
	Delete(ctx context.Context, recordID string) error

	// Close releases the underlying client connection.
	Close() error
}
