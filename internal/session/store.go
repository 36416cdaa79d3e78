package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id  TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS phases (
	session_id  TEXT NOT NULL,
	phase_idx   INTEGER NOT NULL,
	status      TEXT NOT NULL,
	payload     TEXT,
	started_at  TEXT,
	ended_at    TEXT,
	PRIMARY KEY (session_id, phase_idx),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS globals (
	session_id  TEXT NOT NULL,
	key         TEXT NOT NULL,
	value       TEXT NOT NULL,
	PRIMARY KEY (session_id, key),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	session_id   TEXT NOT NULL,
	task_id      TEXT NOT NULL,
	slot_id      TEXT NOT NULL,
	status       TEXT NOT NULL,
	attempts     INTEGER NOT NULL,
	quality      REAL NOT NULL DEFAULT 0,
	artifact_ref TEXT,
	last_error   TEXT,
	updated_at   TEXT NOT NULL,
	PRIMARY KEY (session_id, task_id),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);
`

// #endregion schema

// #region store-struct
// Store manages pipeline sessions in SQLite. Every mutating call commits
// before returning; the caller serializes writers per session.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing database handle. The caller owns the
// handle and the schema. Used for in-memory test databases.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region create-session
// CreateSession inserts a new empty session and returns its id.
func (s *Store) CreateSession() (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, created_at, updated_at) VALUES (?, ?, ?)`,
		id, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// #endregion create-session

// #region load-session
// LoadSession reads a session and all of its phase records.
func (s *Store) LoadSession(id string) (*Session, error) {
	var createdStr, updatedStr string
	err := s.db.QueryRow(
		`SELECT created_at, updated_at FROM sessions WHERE session_id = ?`, id,
	).Scan(&createdStr, &updatedStr)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("load session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	sess := &Session{ID: id}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)

	rows, err := s.db.Query(
		`SELECT phase_idx, status, payload, started_at, ended_at
		 FROM phases WHERE session_id = ? ORDER BY phase_idx`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("load phases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec PhaseRecord
		var status string
		var payload, startedStr, endedStr sql.NullString
		if err := rows.Scan(&rec.Index, &status, &payload, &startedStr, &endedStr); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		rec.Status = PhaseStatus(status)
		if payload.Valid {
			rec.Payload = json.RawMessage(payload.String)
		}
		if startedStr.Valid {
			rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr.String)
		}
		if endedStr.Valid {
			rec.EndedAt, _ = time.Parse(time.RFC3339Nano, endedStr.String)
		}
		sess.Phases = append(sess.Phases, rec)
	}
	return sess, rows.Err()
}

// #endregion load-session

// #region start-phase
// StartPhase transitions a phase to in_progress. All lower-indexed phases
// must be completed. A failed phase may be restarted; a completed one may not.
func (s *Store) StartPhase(id string, phaseIdx int) error {
	sess, err := s.LoadSession(id)
	if err != nil {
		return err
	}

	for i := 0; i < phaseIdx; i++ {
		prior := sess.Phase(i)
		if prior == nil || prior.Status != PhaseCompleted {
			return fmt.Errorf("start phase %d: phase %d not completed: %w", phaseIdx, i, ErrPrecedingPhaseIncomplete)
		}
	}

	if cur := sess.Phase(phaseIdx); cur != nil {
		if cur.Status == PhaseCompleted || cur.Status == PhaseInProgress {
			return fmt.Errorf("start phase %d: status is %s: %w", phaseIdx, cur.Status, ErrPhaseState)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO phases (session_id, phase_idx, status, started_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, phase_idx) DO UPDATE
		 SET status = excluded.status, started_at = excluded.started_at, ended_at = NULL`,
		id, phaseIdx, string(PhaseInProgress), now,
	)
	if err != nil {
		return fmt.Errorf("start phase: %w", err)
	}
	if err := touchSession(tx, id, now); err != nil {
		return err
	}
	return tx.Commit()
}

// #endregion start-phase

// #region complete-phase
// CompletePhase marks an in_progress phase completed and stores its payload.
func (s *Store) CompletePhase(id string, phaseIdx int, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return s.endPhase(id, phaseIdx, PhaseCompleted, string(data))
}

// FailPhase marks an in_progress phase failed with a reason.
func (s *Store) FailPhase(id string, phaseIdx int, reason string) error {
	data, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return fmt.Errorf("marshal reason: %w", err)
	}
	return s.endPhase(id, phaseIdx, PhaseFailed, string(data))
}

func (s *Store) endPhase(id string, phaseIdx int, status PhaseStatus, payload string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE phases SET status = ?, payload = ?, ended_at = ?
		 WHERE session_id = ? AND phase_idx = ? AND status = ?`,
		string(status), payload, now, id, phaseIdx, string(PhaseInProgress),
	)
	if err != nil {
		return fmt.Errorf("end phase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end phase %d as %s: not in progress: %w", phaseIdx, status, ErrPhaseState)
	}
	if err := touchSession(tx, id, now); err != nil {
		return err
	}
	return tx.Commit()
}

// #endregion complete-phase

// #region globals
// SetGlobal stores a cross-phase shared value under a key, JSON-encoded.
func (s *Store) SetGlobal(id, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal global %s: %w", key, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO globals (session_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value`,
		id, key, string(data),
	)
	if err != nil {
		return fmt.Errorf("set global %s: %w", key, err)
	}
	if err := touchSession(tx, id, now); err != nil {
		return err
	}
	return tx.Commit()
}

// GetGlobal loads a shared value into out. Returns ErrNotFound for a
// missing key.
func (s *Store) GetGlobal(id, key string, out interface{}) error {
	var raw string
	err := s.db.QueryRow(
		`SELECT value FROM globals WHERE session_id = ? AND key = ?`, id, key,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("global %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get global %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("unmarshal global %s: %w", key, err)
	}
	return nil
}

// #endregion globals

// #region tasks
// SaveTask upserts a generation task record for post-hoc lookup.
func (s *Store) SaveTask(id string, rec TaskRecord) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(
		`INSERT INTO tasks (session_id, task_id, slot_id, status, attempts, quality, artifact_ref, last_error, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, task_id) DO UPDATE SET
		   status = excluded.status, attempts = excluded.attempts,
		   quality = excluded.quality, artifact_ref = excluded.artifact_ref,
		   last_error = excluded.last_error, updated_at = excluded.updated_at`,
		id, rec.TaskID, rec.SlotID, rec.Status, rec.Attempts, rec.Quality,
		nullIfEmpty(rec.ArtifactRef), nullIfEmpty(rec.LastError), now,
	)
	if err != nil {
		return fmt.Errorf("save task %s: %w", rec.TaskID, err)
	}
	return nil
}

// ListTasks returns all task records for a session, ordered by task id.
func (s *Store) ListTasks(id string) ([]TaskRecord, error) {
	rows, err := s.db.Query(
		`SELECT task_id, slot_id, status, attempts, quality, artifact_ref, last_error, updated_at
		 FROM tasks WHERE session_id = ? ORDER BY task_id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var records []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var artifact, lastErr sql.NullString
		var updatedStr string
		if err := rows.Scan(&rec.TaskID, &rec.SlotID, &rec.Status, &rec.Attempts, &rec.Quality, &artifact, &lastErr, &updatedStr); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if artifact.Valid {
			rec.ArtifactRef = artifact.String
		}
		if lastErr.Valid {
			rec.LastError = lastErr.String
		}
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion tasks

// #region list-sessions
// ListSessions returns the most recent session ids with timestamps.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT session_id, created_at, updated_at FROM sessions
		 ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var createdStr, updatedStr string
		if err := rows.Scan(&sess.ID, &createdStr, &updatedStr); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// #endregion list-sessions

// #region helpers
func touchSession(tx *sql.Tx, id, now string) error {
	res, err := tx.Exec(`UPDATE sessions SET updated_at = ? WHERE session_id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("touch session %s: %w", id, ErrNotFound)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
