package logging

import "time"

// #region severity
// Severity grades a concern. Concerns never fail a phase by themselves;
// they are the audit trail for absorbed component failures and corrections.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// #endregion severity

// #region concern
// Concern is one recorded operational event scoped to a session and phase.
type Concern struct {
	SessionID string    `json:"session_id"`
	PhaseIdx  int       `json:"phase_idx"`
	Component string    `json:"component"` // e.g. "competition", "optimizer", "executor"
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// #endregion concern
