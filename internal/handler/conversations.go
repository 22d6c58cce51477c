// Package handler provides HTTP handlers for the backend stub.
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/middleware"
	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/internal/service"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  logger.OrGlobal(log).Named("handler"),
	}
}

// Get handles GET /api/conversation/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.Get(ctx, middleware.GetUserID(ctx), conversationID)
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load conversation", zap.Error(err), zap.String("conversation_id", conversationID))
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	writeJSON(w, http.StatusOK, model.ConversationResponse{Messages: conv.Exchanges})
}

// History handles GET /api/chat/history/{user_id}
func (h *ConversationHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !middleware.CanAccess(ctx, userID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	entries, err := h.service.History(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err), zap.String("user_id", userID))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, model.HistoryResponse{History: entries})
}
