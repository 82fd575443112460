package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/outbrain/memoryd/internal/auth"
	"github.com/outbrain/memoryd/internal/ingestion"
	"github.com/outbrain/memoryd/internal/reasoning"
	"github.com/outbrain/memoryd/internal/repository"
)

// QuestionService answers questions against a user's records.
type QuestionService interface {
	AnswerQuestion(ctx context.Context, req reasoning.QuestionRequest) (*reasoning.Answer, error)
}

// RecordService handles record writes across all stores.
type RecordService interface {
	CreateRecord(ctx context.Context, req ingestion.CreateRecordRequest) (*repository.Record, error)
	UpdateRecord(ctx context.Context, id uuid.UUID, upd repository.RecordUpdate) (*repository.Record, error)
	DeleteRecord(ctx context.Context, id uuid.UUID) error
}

// RecordReader serves record reads straight from the repository.
type RecordReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Record, error)
	List(ctx context.Context, userID string) ([]*repository.Record, error)
}

// TokenIssuer mints access tokens for users.
type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

type handlers struct {
	questions    QuestionService
	records      RecordService
	reader       RecordReader
	tokens       TokenIssuer
	authDisabled bool
	logger       *slog.Logger
}

type questionRequest struct {
	UserID          string `json:"userId"`
	Text            string `json:"text"`
	SearchSessionID string `json:"searchSessionId"`
}

type graphSnapshotResponse struct {
	NodeCount int `json:"nodeCount"`
	EdgeCount int `json:"edgeCount"`
}

type reasoningPathResponse struct {
	Summary       string                `json:"summary"`
	Records       []string              `json:"records"`
	GraphSnapshot graphSnapshotResponse `json:"graphSnapshot"`
}

type answerResponse struct {
	Answer        string                `json:"answer"`
	Confidence    float32               `json:"confidence"`
	ReasoningPath reasoningPathResponse `json:"reasoningPath"`
}

func (h *handlers) answerQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, ok := h.resolveUser(r, req.UserID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	answer, err := h.questions.AnswerQuestion(r.Context(), reasoning.QuestionRequest{
		UserID:          userID,
		Text:            req.Text,
		SearchSessionID: req.SearchSessionID,
	})
	if err != nil {
		h.logger.Error("question failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	records := answer.ReasoningPath.Records
	if records == nil {
		records = []string{}
	}
	writeJSON(w, http.StatusOK, answerResponse{
		Answer:     answer.Answer,
		Confidence: answer.Confidence,
		ReasoningPath: reasoningPathResponse{
			Summary: answer.ReasoningPath.Summary,
			Records: records,
			GraphSnapshot: graphSnapshotResponse{
				NodeCount: answer.ReasoningPath.GraphSnapshot.NodeCount,
				EdgeCount: answer.ReasoningPath.GraphSnapshot.EdgeCount,
			},
		},
	})
}

type createRecordRequest struct {
	UserID  string   `json:"userId"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Feel    []string `json:"feel"`
	Date    string   `json:"date"`
}

type recordResponse struct {
	ID        string   `json:"id"`
	RecordID  string   `json:"recordId"`
	UserID    string   `json:"userId"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Feel      []string `json:"feel"`
	Date      string   `json:"date"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

func toRecordResponse(rec *repository.Record) recordResponse {
	feel := rec.Feel
	if feel == nil {
		feel = []string{}
	}
	resp := recordResponse{
		ID:        rec.ID.String(),
		RecordID:  rec.RecordID,
		UserID:    rec.UserID,
		Title:     rec.Title,
		Content:   rec.Content,
		Feel:      feel,
		Date:      rec.Date,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.UpdatedAt != nil {
		resp.UpdatedAt = rec.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *handlers) createRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, ok := h.resolveUser(r, req.UserID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	rec, err := h.records.CreateRecord(r.Context(), ingestion.CreateRecordRequest{
		UserID:  userID,
		Title:   req.Title,
		Content: req.Content,
		Feel:    req.Feel,
		Date:    req.Date,
	})
	if err != nil {
		h.logger.Error("record creation failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create record")
		return
	}

	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

func (h *handlers) listRecords(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(r, r.URL.Query().Get("userId"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	records, err := h.reader.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("record list failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

func (h *handlers) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.fetchOwnedRecord(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

type updateRecordRequest struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Feel    *[]string `json:"feel"`
	Date    *string   `json:"date"`
}

func (h *handlers) updateRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.fetchOwnedRecord(w, r)
	if !ok {
		return
	}

	var req updateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.records.UpdateRecord(r.Context(), rec.ID, repository.RecordUpdate{
		Title:   req.Title,
		Content: req.Content,
		Feel:    req.Feel,
		Date:    req.Date,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		h.logger.Error("record update failed", "record_id", rec.RecordID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update record")
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(updated))
}

func (h *handlers) deleteRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.fetchOwnedRecord(w, r)
	if !ok {
		return
	}

	if err := h.records.DeleteRecord(r.Context(), rec.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		h.logger.Error("record delete failed", "record_id", rec.RecordID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type tokenRequest struct {
	UserID string `json:"userId"`
}

func (h *handlers) issueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	token, err := h.tokens.GenerateToken(req.UserID)
	if err != nil {
		h.logger.Error("token issuance failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// fetchOwnedRecord loads the record addressed by the URL and verifies the
// caller owns it. Foreign records read as 404, not 403, to avoid leaking
// their existence.
func (h *handlers) fetchOwnedRecord(w http.ResponseWriter, r *http.Request) (*repository.Record, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return nil, false
	}

	userID, ok := h.resolveUser(r, r.URL.Query().Get("userId"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return nil, false
	}

	rec, err := h.reader.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return nil, false
		}
		h.logger.Error("record fetch failed", "record_id", id.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch record")
		return nil, false
	}
	if rec.UserID != userID {
		writeError(w, http.StatusNotFound, "record not found")
		return nil, false
	}

	return rec, true
}

// resolveUser determines the effective user: the authenticated token user
// when auth is on, otherwise the identity supplied by the request.
func (h *handlers) resolveUser(r *http.Request, requested string) (string, bool) {
	if h.authDisabled {
		return requested, requested != ""
	}
	userID, ok := auth.UserFromContext(r.Context())
	return userID, ok
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
