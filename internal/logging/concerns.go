package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region schema
const concernSchema = `
CREATE TABLE IF NOT EXISTS concern_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	phase_idx   INTEGER NOT NULL,
	component   TEXT NOT NULL,
	severity    TEXT NOT NULL,
	message     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_concern_log_session
ON concern_log(session_id, phase_idx);
`

// #endregion schema

// #region concern-log
// ConcernLog persists non-fatal component concerns in SQLite.
type ConcernLog struct {
	db *sql.DB
}

// NewConcernLog initializes the concern_log table and returns a ConcernLog.
func NewConcernLog(db *sql.DB) (*ConcernLog, error) {
	if _, err := db.Exec(concernSchema); err != nil {
		return nil, fmt.Errorf("concern schema: %w", err)
	}
	return &ConcernLog{db: db}, nil
}

// #endregion concern-log

// #region record
// Record writes a concern row.
func (c *ConcernLog) Record(entry Concern) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := c.db.Exec(
		`INSERT INTO concern_log (session_id, phase_idx, component, severity, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.PhaseIdx,
		entry.Component,
		string(entry.Severity),
		entry.Message,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record concern: %w", err)
	}
	return nil
}

// #endregion record

// #region list
// List returns the concerns for one session in insertion order.
func (c *ConcernLog) List(sessionID string) ([]Concern, error) {
	rows, err := c.db.Query(
		`SELECT session_id, phase_idx, component, severity, message, created_at
		 FROM concern_log WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list concerns: %w", err)
	}
	defer rows.Close()

	var concerns []Concern
	for rows.Next() {
		var entry Concern
		var severity, createdStr string
		if err := rows.Scan(&entry.SessionID, &entry.PhaseIdx, &entry.Component, &severity, &entry.Message, &createdStr); err != nil {
			return nil, fmt.Errorf("scan concern: %w", err)
		}
		entry.Severity = Severity(severity)
		entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		concerns = append(concerns, entry)
	}
	return concerns, rows.Err()
}

// #endregion list
