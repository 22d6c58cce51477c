package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/internal/store"
	"github.com/eunoia-wellness/companion/pkg/logger"
	"github.com/eunoia-wellness/companion/pkg/metrics"
)

// ErrInvalidRiskLevel is returned for a level outside low..critical.
var ErrInvalidRiskLevel = errors.New("risk_level must be one of low, medium, high, critical")

// SafetyService records risk events raised by or about a user.
type SafetyService struct {
	store  store.Store
	logger *logger.Logger
}

// NewSafetyService creates a new safety service.
func NewSafetyService(st store.Store, log *logger.Logger) *SafetyService {
	return &SafetyService{
		store:  st,
		logger: logger.OrGlobal(log).Named("safety"),
	}
}

// Report stores ev. Urgent levels are logged at error level so they reach
// whoever watches the backend logs.
func (s *SafetyService) Report(ctx context.Context, ev model.RiskEvent) (model.RiskEvent, error) {
	if !ev.RiskLevel.Valid() {
		return model.RiskEvent{}, ErrInvalidRiskLevel
	}

	stored, err := s.store.AddRiskEvent(ctx, ev)
	if err != nil {
		return model.RiskEvent{}, fmt.Errorf("failed to record risk event: %w", err)
	}
	metrics.RiskEventsTotal.WithLabelValues(string(stored.RiskLevel)).Inc()

	fields := []zap.Field{
		zap.String("event_id", stored.ID),
		zap.String("user_id", stored.UserID),
		zap.String("risk_level", string(stored.RiskLevel)),
	}
	if stored.RiskLevel.Urgent() {
		s.logger.Error("urgent risk event reported", fields...)
	} else {
		s.logger.Info("risk event reported", fields...)
	}
	return stored, nil
}

// Events lists the user's risk events, oldest first.
func (s *SafetyService) Events(ctx context.Context, userID string) ([]model.RiskEvent, error) {
	events, err := s.store.RiskEventsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk events: %w", err)
	}
	return events, nil
}
