package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/lmarceau/cutroom/internal/driver"
	"github.com/lmarceau/cutroom/internal/logging"
	"github.com/lmarceau/cutroom/internal/session"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the session database")
	sessionID := flag.String("session", "", "show single session detail")
	last := flag.Int("last", 20, "show N most recent sessions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/cutroom.db [--session id] [--last N] [--json]")
		os.Exit(2)
	}

	store, err := session.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	concerns, err := logging.NewConcernLog(store.DB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open concern log: %v\n", err)
		os.Exit(1)
	}

	if *sessionID != "" {
		err = runDetailMode(store, concerns, *sessionID, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	SessionID string `json:"session_id"`
	NextPhase string `json:"next_phase"`
	Phases    string `json:"phases"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func runListMode(store *session.Store, last int, jsonOut bool) error {
	sessions, err := store.ListSessions(last)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}

	rows := make([]listRow, len(sessions))
	for i := range sessions {
		// ListSessions returns ids only; phase records need a full load.
		sess, err := store.LoadSession(sessions[i].ID)
		if err != nil {
			return err
		}
		rows[i] = listRow{
			SessionID: sess.ID,
			NextPhase: nextPhaseName(sess),
			Phases:    phaseSummary(sess),
			CreatedAt: sess.CreatedAt.Format("2006-01-02T15:04:05Z"),
			UpdatedAt: sess.UpdatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-12s  %-12s  %-28s  %s\n", "Session", "Next", "Phases", "Updated")
	fmt.Printf("%-12s+-%-12s+-%-28s+-%s\n",
		"------------", "------------", "----------------------------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %-12s  %-28s  %s\n", shortID(r.SessionID), r.NextPhase, r.Phases, r.UpdatedAt)
	}
	return nil
}

// phaseSummary renders the four phase statuses as a compact strip like
// "done done fail -".
func phaseSummary(s *session.Session) string {
	out := ""
	for p := 0; p < driver.NumPhases; p++ {
		if p > 0 {
			out += " "
		}
		ph := s.Phase(p)
		switch {
		case ph == nil:
			out += "-"
		case ph.Status == session.PhaseCompleted:
			out += "done"
		case ph.Status == session.PhaseInProgress:
			out += "run"
		case ph.Status == session.PhaseFailed:
			out += "fail"
		default:
			out += string(ph.Status)
		}
	}
	return out
}

func nextPhaseName(s *session.Session) string {
	for p := 0; p < driver.NumPhases; p++ {
		ph := s.Phase(p)
		if ph == nil || ph.Status != session.PhaseCompleted {
			return driver.PhaseName(p)
		}
	}
	return "done"
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	SessionID string            `json:"session_id"`
	CreatedAt string            `json:"created_at"`
	Phases    []phaseDetail     `json:"phases"`
	Tasks     []taskDetail      `json:"tasks,omitempty"`
	Concerns  []logging.Concern `json:"concerns,omitempty"`
}

type phaseDetail struct {
	Index   int             `json:"index"`
	Name    string          `json:"name"`
	Status  string          `json:"status"`
	Started string          `json:"started,omitempty"`
	Ended   string          `json:"ended,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type taskDetail struct {
	TaskID      string  `json:"task_id"`
	SlotID      string  `json:"slot_id"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	Quality     float64 `json:"quality"`
	ArtifactRef string  `json:"artifact_ref,omitempty"`
	LastError   string  `json:"last_error,omitempty"`
}

func runDetailMode(store *session.Store, concerns *logging.ConcernLog, sessionID string, jsonOut bool) error {
	sess, err := store.LoadSession(sessionID)
	if err != nil {
		return err
	}
	tasks, err := store.ListTasks(sessionID)
	if err != nil {
		return err
	}
	entries, err := concerns.List(sessionID)
	if err != nil {
		return err
	}

	out := detailOutput{
		SessionID: sess.ID,
		CreatedAt: sess.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Concerns:  entries,
	}
	for _, ph := range sess.Phases {
		pd := phaseDetail{
			Index:   ph.Index,
			Name:    driver.PhaseName(ph.Index),
			Status:  string(ph.Status),
			Payload: ph.Payload,
		}
		if !ph.StartedAt.IsZero() {
			pd.Started = ph.StartedAt.Format("2006-01-02T15:04:05Z")
		}
		if !ph.EndedAt.IsZero() {
			pd.Ended = ph.EndedAt.Format("2006-01-02T15:04:05Z")
		}
		out.Phases = append(out.Phases, pd)
	}
	for _, t := range tasks {
		out.Tasks = append(out.Tasks, taskDetail{
			TaskID:      t.TaskID,
			SlotID:      t.SlotID,
			Status:      t.Status,
			Attempts:    t.Attempts,
			Quality:     t.Quality,
			ArtifactRef: t.ArtifactRef,
			LastError:   t.LastError,
		})
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Session:  %s\n", out.SessionID)
	fmt.Printf("Created:  %s\n", out.CreatedAt)

	fmt.Printf("\nPhases:\n")
	for _, pd := range out.Phases {
		fmt.Printf("  %d %-12s %-12s %s\n", pd.Index, pd.Name, pd.Status, pd.Ended)
	}

	if len(out.Tasks) > 0 {
		fmt.Printf("\nTasks:\n")
		fmt.Printf("  %-10s  %-10s  %8s  %7s  %s\n", "Slot", "Status", "Attempts", "Quality", "Artifact")
		for _, t := range out.Tasks {
			fmt.Printf("  %-10s  %-10s  %8d  %7.2f  %s\n", t.SlotID, t.Status, t.Attempts, t.Quality, t.ArtifactRef)
			if t.LastError != "" {
				fmt.Printf("    last error: %s\n", t.LastError)
			}
		}
	}

	if len(out.Concerns) > 0 {
		fmt.Printf("\nConcerns:\n")
		for _, c := range out.Concerns {
			fmt.Printf("  [%s] phase %d %s: %s\n", c.Severity, c.PhaseIdx, c.Component, c.Message)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
