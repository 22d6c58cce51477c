package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/middleware"
	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/internal/service"
	"github.com/eunoia-wellness/companion/internal/stream"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

const maxRequestBody = 64 << 10

// replyFailed is the error text sent when reply generation fails mid-stream.
const replyFailed = "failed to generate a reply"

// StreamHandler handles the streaming chat endpoint.
type StreamHandler struct {
	messageService *service.MessageService
	logger         *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(msgSvc *service.MessageService, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		messageService: msgSvc,
		logger:         logger.OrGlobal(log).Named("handler"),
	}
}

// Chat handles POST /api/chat. Validation and lookup failures are JSON
// errors; once streaming starts every outcome is an event frame: content
// per token, then either end with the conversation id or error.
func (h *StreamHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateUserID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessage(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID != "" {
		if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if !middleware.CanAccess(ctx, req.UserID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	conv, err := h.messageService.Prepare(ctx, &req)
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	if _, ok := w.(http.Flusher); !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	out := stream.NewWriter(w)
	log := h.logger.With(
		zap.String("user_id", req.UserID),
		zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
	)

	conversationID, err := h.messageService.Reply(ctx, conv, &req, func(token string, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return out.Write(model.ContentEvent(token))
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			log.Info("client went away during reply")
			return
		}
		log.Error("reply failed", zap.Error(err))
		if err := out.Write(model.ErrorEvent(replyFailed)); err != nil {
			log.Warn("failed to write error frame", zap.Error(err))
		}
		return
	}

	if err := out.Write(model.EndEvent(conversationID)); err != nil {
		log.Warn("failed to write end frame", zap.Error(err))
	}
}
