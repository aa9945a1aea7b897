package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/young1lin/flux/internal/models"
	"github.com/young1lin/flux/internal/search"
	"github.com/young1lin/flux/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateConversation handles POST /conversations
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.Create()
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("conversation created", zap.String("conversation_id", c.ID))
	writeJSON(w, http.StatusCreated, models.NewConversationView(c))
}

// ListConversations handles GET /conversations
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := parsePagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, total, err := h.store.List(page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ConversationListResponse{
		Conversations: items,
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
	})
}

func parsePagination(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	page, pageSize := 1, defaultPageSize

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, 0, badRequest(CodeInvalidPagination, "page must be >= 1")
		}
		page = n
	}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			return 0, 0, badRequest(CodeInvalidPagination, "page_size must be between 1 and 100")
		}
		pageSize = n
	}
	return page, pageSize, nil
}

// conversationID reads and validates the {id} path parameter
func conversationID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", badRequest(CodeInvalidConversationID, "invalid conversation ID format")
	}
	return id, nil
}

// GetConversation handles GET /conversations/{id}
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.store.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewConversationView(c))
}

// AddMessage handles POST /conversations/{id}/messages. Every pipeline
// outcome other than a validation or credential failure is persisted,
// errored turns included.
func (h *Handler) AddMessage(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req models.AddMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, badRequest(CodeInvalidBody, "request body must be JSON with a query field"))
		return
	}

	query, err := h.pipeline.ValidateQuery(req.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.store.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if c.MessageCount() >= h.store.MaxMessages() {
		writeError(w, r, badRequest(CodeMessageLimit, "conversation has reached its message limit"))
		return
	}

	log := logger.FromContext(r.Context()).With(zap.String("conversation_id", id))
	turn, err := h.pipeline.Run(r.Context(), query, c.Turns, search.Options{})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.store.AppendTurn(id, turn); err != nil {
		writeError(w, r, err)
		return
	}

	log.Info("message added",
		zap.String("turn_id", turn.ID),
		zap.Bool("answered", turn.Answered()),
		zap.Int("citations", len(turn.Citations)),
	)
	writeJSON(w, http.StatusOK, turn)
}

// DeleteConversation handles DELETE /conversations/{id}
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := conversationID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.Delete(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
