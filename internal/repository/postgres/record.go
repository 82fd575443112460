package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/outbrain/memoryd/internal/repository"
	"github.com/outbrain/memoryd/internal/retrieval"
)

const recordColumns = `id, record_id, user_id, title, content, feel, date, created_at, updated_at, deleted_at`

// RecordRepo implements repository.RecordRepository.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new record repository.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// Create inserts a new record.
func (r *RecordRepo) Create(ctx context.Context, rec *repository.Record) error {
	query := `
		INSERT INTO records (id, record_id, user_id, title, content, feel, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		rec.ID, rec.RecordID, rec.UserID, rec.Title, rec.Content,
		rec.Feel, rec.Date, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its storage identifier, excluding
// soft-deleted rows.
func (r *RecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1 AND deleted_at IS NULL`
	return r.scanRecord(r.db.Pool.QueryRow(ctx, query, id))
}

// List retrieves a user's records, newest first.
func (r *RecordRepo) List(ctx context.Context, userID string) ([]*repository.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*repository.Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// Update applies the non-nil fields of upd and returns the updated record.
func (r *RecordRepo) Update(ctx context.Context, id uuid.UUID, upd repository.RecordUpdate) (*repository.Record, error) {
	rec, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		rec.Title = *upd.Title
	}
	if upd.Content != nil {
		rec.Content = *upd.Content
	}
	if upd.Feel != nil {
		rec.Feel = *upd.Feel
	}
	if upd.Date != nil {
		rec.Date = *upd.Date
	}
	now := time.Now().UTC()
	rec.UpdatedAt = &now

	query := `
		UPDATE records
		SET title = $2, content = $3, feel = $4, date = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		rec.ID, rec.Title, rec.Content, rec.Feel, rec.Date, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

// SoftDelete marks the record deleted without removing the row.
func (r *RecordRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE records SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.db.Pool.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// TextSearch performs full-text search over title and content, scoped to a
// single user and ranked by ts_rank descending. A missing tsvector column or
// index surfaces as repository.ErrTextIndexMissing so the caller can degrade
// to vector-only retrieval.
func (r *RecordRepo) TextSearch(ctx context.Context, userID, query string, topK int) ([]retrieval.Candidate, error) {
	sql := `
		SELECT id, record_id, title, content, date, created_at,
		       ts_rank(search_tsv, plainto_tsquery('simple', $2)) AS rank
		FROM records
		WHERE user_id = $1
		  AND deleted_at IS NULL
		  AND search_tsv @@ plainto_tsquery('simple', $2)
		ORDER BY rank DESC
		LIMIT $3
	`
	rows, err := r.db.Pool.Query(ctx, sql, userID, query, topK)
	if err != nil {
		if isMissingIndexErr(err) {
			return nil, repository.ErrTextIndexMissing
		}
		return nil, fmt.Errorf("failed to run text search: %w", err)
	}
	defer rows.Close()

	var candidates []retrieval.Candidate
	for rows.Next() {
		var (
			id        uuid.UUID
			c         retrieval.Candidate
			createdAt time.Time
		)
		if err := rows.Scan(&id, &c.RecordID, &c.Title, &c.Content, &c.Date, &createdAt, &c.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		c.ID = id.String()
		if c.Date == "" {
			c.Date = createdAt.UTC().Format(time.RFC3339)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		if isMissingIndexErr(err) {
			return nil, repository.ErrTextIndexMissing
		}
		return nil, fmt.Errorf("failed to run text search: %w", err)
	}
	return candidates, nil
}

// isMissingIndexErr reports whether the error means the full-text column,
// table, or search configuration is absent (undefined column/table/object).
func isMissingIndexErr(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "42703", "42P01", "42704":
		return true
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RecordRepo) scanRecord(row rowScanner) (*repository.Record, error) {
	var rec repository.Record
	err := row.Scan(
		&rec.ID, &rec.RecordID, &rec.UserID, &rec.Title, &rec.Content,
		&rec.Feel, &rec.Date, &rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}
	return &rec, nil
}

// Ensure RecordRepo implements repository.RecordRepository.
var _ repository.RecordRepository = (*RecordRepo)(nil)
