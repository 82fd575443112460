// Package repository defines the memory record domain model and its
// persistence interface.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/outbrain/memoryd/internal/retrieval"
)

// ErrNotFound is returned when a requested record does not exist or has been
// soft-deleted.
var ErrNotFound = errors.New("not found")

// ErrTextIndexMissing is returned by TextSearch when the full-text index is
// not provisioned. It is recoverable: the reasoning pipeline falls back to
// vector-only search.
var ErrTextIndexMissing = errors.New("text search index missing")

// Record is a personal memory entry.
type Record struct {
	// ID is the storage identifier exposed to callers.
	ID uuid.UUID

	// RecordID is the domain identifier used as the graph lookup key.
	RecordID string

	UserID  string
	Title   string
	Content string

	// Feel holds the user-tagged emotions for the entry.
	Feel []string

	// Date is the entry's own date, YYYY-MM-DD.
	Date string

	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
}

// RecordUpdate carries the mutable fields of a record; nil means unchanged.
type RecordUpdate struct {
	Title   *string
	Content *string
	Feel    *[]string
	Date    *string
}

// RecordRepository defines record persistence and lexical search. All reads
// are scoped by user and exclude soft-deleted records.
type RecordRepository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context, userID string) ([]*Record, error)
	Update(ctx context.Context, id uuid.UUID, upd RecordUpdate) (*Record, error)

	// SoftDelete marks the record deleted without removing the row.
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// TextSearch performs keyword search over title and content scoped to
	// userID, ranked by lexical relevance descending.
	TextSearch(ctx context.Context, userID, query string, topK int) ([]retrieval.Candidate, error)
}
