package model

import "time"

// RiskLevel grades a safety concern raised about a user.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Valid reports whether l is one of the known levels.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Urgent reports whether the level needs a person to follow up.
func (l RiskLevel) Urgent() bool {
	return l == RiskHigh || l == RiskCritical
}

// RiskEvent is the body of POST /api/safety/risk-event. ID and CreatedAt
// are assigned by the backend.
type RiskEvent struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	RiskLevel RiskLevel `json:"risk_level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// RiskEventResponse acknowledges a recorded risk event.
type RiskEventResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
