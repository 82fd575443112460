package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/outbrain/memoryd/internal/embedder"
	"github.com/outbrain/memoryd/internal/graphstore"
	"github.com/outbrain/memoryd/internal/repository"
	"github.com/outbrain/memoryd/internal/vectorstore"
)

// CreateRecordRequest is the input for storing a new memory record.
type CreateRecordRequest struct {
	UserID  string
	Title   string
	Content string
	Feel    []string
	Date    string
}

// Pipeline persists records across the three stores: Postgres is the system
// of record, Qdrant holds the embedding, Neo4j holds the extracted entity
// graph. Postgres and Qdrant writes are required; the graph write is best
// effort.
type Pipeline struct {
	records   repository.RecordRepository
	vectors   vectorstore.VectorStore
	graph     graphstore.GraphStore // optional
	embedder  embedder.Embedder
	extractor *Extractor // optional
	logger    *slog.Logger
}

// NewPipeline wires the ingestion pipeline. graph and extractor may be nil,
// which skips entity extraction.
func NewPipeline(
	records repository.RecordRepository,
	vectors vectorstore.VectorStore,
	graph graphstore.GraphStore,
	emb embedder.Embedder,
	extractor *Extractor,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		records:   records,
		vectors:   vectors,
		graph:     graph,
		embedder:  emb,
		extractor: extractor,
		logger:    logger,
	}
}

// CreateRecord stores a record and fans it out to the vector and graph
// stores.
func (p *Pipeline) CreateRecord(ctx context.Context, req CreateRecordRequest) (*repository.Record, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("record content is required")
	}

	vector, err := p.embedder.Embed(ctx, embeddingText(req.Title, req.Content))
	if err != nil {
		return nil, fmt.Errorf("embed record: %w", err)
	}

	rec := &repository.Record{
		ID:        uuid.New(),
		RecordID:  uuid.NewString(),
		UserID:    req.UserID,
		Title:     req.Title,
		Content:   req.Content,
		Feel:      req.Feel,
		Date:      req.Date,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("store record: %w", err)
	}

	point := vectorstore.Point{
		ID:       rec.ID.String(),
		RecordID: rec.RecordID,
		UserID:   rec.UserID,
		Title:    rec.Title,
		Content:  rec.Content,
		Date:     recordDate(rec),
		Vector:   vector,
	}
	if err := p.vectors.Upsert(ctx, []vectorstore.Point{point}); err != nil {
		return nil, fmt.Errorf("index record: %w", err)
	}

	p.extractToGraph(ctx, rec)

	p.logger.Info("record created",
		slog.String("record_id", rec.RecordID),
		slog.String("user_id", rec.UserID))
	return rec, nil
}

// UpdateRecord applies the update and refreshes the derived stores.
func (p *Pipeline) UpdateRecord(ctx context.Context, id uuid.UUID, upd repository.RecordUpdate) (*repository.Record, error) {
	rec, err := p.records.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	vector, err := p.embedder.Embed(ctx, embeddingText(rec.Title, rec.Content))
	if err != nil {
		return nil, fmt.Errorf("re-embed record: %w", err)
	}
	point := vectorstore.Point{
		ID:       rec.ID.String(),
		RecordID: rec.RecordID,
		UserID:   rec.UserID,
		Title:    rec.Title,
		Content:  rec.Content,
		Date:     recordDate(rec),
		Vector:   vector,
	}
	if err := p.vectors.Upsert(ctx, []vectorstore.Point{point}); err != nil {
		return nil, fmt.Errorf("reindex record: %w", err)
	}

	p.extractToGraph(ctx, rec)

	return rec, nil
}

// DeleteRecord soft-deletes the record and removes its derived data. Store
// cleanup failures are logged, not surfaced: the soft delete already hides
// the record from retrieval's source of truth.
func (p *Pipeline) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	rec, err := p.records.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := p.records.SoftDelete(ctx, id); err != nil {
		return err
	}

	if err := p.vectors.Delete(ctx, rec.RecordID); err != nil {
		p.logger.Warn("vector cleanup failed",
			slog.String("record_id", rec.RecordID),
			slog.String("error", err.Error()))
	}
	if p.graph != nil {
		if err := p.graph.DeleteRecordGraph(ctx, rec.UserID, rec.RecordID); err != nil {
			p.logger.Warn("graph cleanup failed",
				slog.String("record_id", rec.RecordID),
				slog.String("error", err.Error()))
		}
	}

	p.logger.Info("record deleted",
		slog.String("record_id", rec.RecordID),
		slog.String("user_id", rec.UserID))
	return nil
}

// extractToGraph runs entity extraction and writes the result. Failures are
// logged and swallowed so graph enrichment never blocks ingestion.
func (p *Pipeline) extractToGraph(ctx context.Context, rec *repository.Record) {
	if p.graph == nil || p.extractor == nil {
		return
	}

	extracted, err := p.extractor.Extract(ctx, embeddingText(rec.Title, rec.Content))
	if err != nil {
		p.logger.Warn("entity extraction failed",
			slog.String("record_id", rec.RecordID),
			slog.String("error", err.Error()))
		return
	}
	extracted.RecordID = rec.RecordID
	extracted.Date = recordDate(rec)
	if len(rec.Feel) > 0 {
		extracted.Emotions = append(extracted.Emotions, rec.Feel...)
	}

	if err := p.graph.UpsertRecordGraph(ctx, rec.UserID, extracted); err != nil {
		p.logger.Warn("graph write failed",
			slog.String("record_id", rec.RecordID),
			slog.String("error", err.Error()))
	}
}

func embeddingText(title, content string) string {
	if title == "" {
		return content
	}
	return title + " " + content
}

func recordDate(rec *repository.Record) string {
	if rec.Date != "" {
		return rec.Date
	}
	return rec.CreatedAt.UTC().Format(time.RFC3339)
}
