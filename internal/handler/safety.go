package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/middleware"
	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/internal/service"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

// SafetyHandler handles safety endpoints.
type SafetyHandler struct {
	service *service.SafetyService
	logger  *logger.Logger
}

// NewSafetyHandler creates a new safety handler.
func NewSafetyHandler(svc *service.SafetyService, log *logger.Logger) *SafetyHandler {
	return &SafetyHandler{
		service: svc,
		logger:  logger.OrGlobal(log).Named("handler"),
	}
}

// ReportRiskEvent handles POST /api/safety/risk-event
func (h *SafetyHandler) ReportRiskEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var ev model.RiskEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateUserID(ev.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessage(ev.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !middleware.CanAccess(ctx, ev.UserID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	stored, err := h.service.Report(ctx, model.RiskEvent{
		UserID:    ev.UserID,
		RiskLevel: ev.RiskLevel,
		Message:   ev.Message,
	})
	if errors.Is(err, service.ErrInvalidRiskLevel) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to record risk event", zap.Error(err), zap.String("user_id", ev.UserID))
		writeError(w, http.StatusInternalServerError, "failed to record risk event")
		return
	}

	writeJSON(w, http.StatusCreated, model.RiskEventResponse{ID: stored.ID, Status: "recorded"})
}
