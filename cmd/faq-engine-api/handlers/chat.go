// Package handlers provides HTTP handlers for the FAQ engine API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/klasshub/faq-engine/internal/monitoring"
	"github.com/klasshub/faq-engine/internal/observability"
	"github.com/klasshub/faq-engine/internal/retrieval"
	"github.com/klasshub/faq-engine/internal/store"
)

// ChatHandler handles chat persistence and lookup requests.
type ChatHandler struct {
	logger   *observability.Logger
	store    *store.ChatStore
	pipeline *retrieval.Pipeline
	audit    *monitoring.AuditStore
}

// NewChatHandler creates a new chat handler. audit may be nil.
func NewChatHandler(logger *observability.Logger, chatStore *store.ChatStore, pipeline *retrieval.Pipeline, audit *monitoring.AuditStore) *ChatHandler {
	return &ChatHandler{
		logger:   logger.WithComponent("chat-handler"),
		store:    chatStore,
		pipeline: pipeline,
		audit:    audit,
	}
}

// SaveRequestDTO is the request body for saving an exchange.
type SaveRequestDTO struct {
	UserID   string `json:"userId"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SaveResponseDTO is the response for a saved exchange.
type SaveResponseDTO struct {
	ID       string `json:"id"`
	Category string `json:"category"`
}

// QueryRequestDTO is the request body for similarity and search lookups.
type QueryRequestDTO struct {
	Query string `json:"query"`
}

// ChatRecordDTO is one record in a search response.
type ChatRecordDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Category  string `json:"category"`
	CreatedAt int64  `json:"createdAt"`
}

// SearchResponseDTO is the response for a candidate search.
type SearchResponseDTO struct {
	Records []ChatRecordDTO `json:"records"`
}

// Save persists a new question/answer exchange.
func (h *ChatHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" || req.Answer == "" {
		writeError(w, http.StatusBadRequest, "question and answer are required")
		return
	}

	record, err := h.store.Save(r.Context(), req.UserID, req.Question, req.Answer)
	if err != nil {
		h.logger.Error().Err(err).Msg("save failed")
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}

	writeJSON(w, http.StatusCreated, SaveResponseDTO{
		ID:       record.ID,
		Category: string(record.Category),
	})
}

// Get fetches one record by ID.
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("fetch failed")
		writeError(w, http.StatusInternalServerError, "fetch failed")
		return
	}

	writeJSON(w, http.StatusOK, recordDTO(record))
}

// Similar runs the best-answer pipeline for a query.
func (h *ChatHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req QueryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	start := time.Now()
	result, err := h.pipeline.FindBestAnswer(r.Context(), req.Query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.audit != nil {
		h.audit.RecordResult(r.Context(), req.Query, result, time.Since(start))
	}

	writeJSON(w, http.StatusOK, result)
}

// Search returns candidate records for a query.
func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req QueryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	records, err := h.pipeline.SearchChat(r.Context(), req.Query)
	if err != nil {
		h.logger.Error().Err(err).Msg("search failed")
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resp := SearchResponseDTO{Records: make([]ChatRecordDTO, 0, len(records))}
	for _, record := range records {
		resp.Records = append(resp.Records, recordDTO(record))
	}
	writeJSON(w, http.StatusOK, resp)
}

func recordDTO(record *store.ChatRecord) ChatRecordDTO {
	return ChatRecordDTO{
		ID:        record.ID,
		UserID:    record.UserID,
		Question:  record.Question,
		Answer:    record.Answer,
		Category:  string(record.Category),
		CreatedAt: record.CreatedAt.UnixMilli(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
