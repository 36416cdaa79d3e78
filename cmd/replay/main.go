package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lmarceau/cutroom/internal/audiofeed"
	"github.com/lmarceau/cutroom/internal/driver"
	"github.com/lmarceau/cutroom/internal/fixture"
	"github.com/lmarceau/cutroom/internal/logging"
	"github.com/lmarceau/cutroom/internal/session"
)

// #region main

func main() {
	scenarioPath := flag.String("scenario", "", "path to fixture scenario YAML")
	audioPath := flag.String("audio", "", "path to audio analysis YAML")
	dbPath := flag.String("db", "", "session database (default: throwaway)")
	flag.Parse()

	if *scenarioPath == "" || *audioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --scenario path/to/scenario.yaml --audio path/to/track.yaml [--db path]")
		os.Exit(2)
	}
	os.Exit(run(*scenarioPath, *audioPath, *dbPath))
}

func run(scenarioPath, audioPath, dbPath string) int {
	sc, err := fixture.Load(scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load scenario: %v\n", err)
		return 2
	}
	an, err := audiofeed.Load(audioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load analysis: %v\n", err)
		return 2
	}

	if dbPath == "" {
		dir, err := os.MkdirTemp("", "cutroom-replay-*")
		if err != nil {
			fmt.Fprintf(os.Stderr, "temp dir: %v\n", err)
			return 2
		}
		defer os.RemoveAll(dir)
		dbPath = filepath.Join(dir, "replay.db")
	}
	store, err := session.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		return 2
	}
	defer store.Close()
	concerns, err := logging.NewConcernLog(store.DB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open concern log: %v\n", err)
		return 2
	}

	svc := fixture.NewServices(sc.Generation)
	d := driver.New(store, concerns, sc.Roster(), svc, svc, nil, nil, driver.DefaultConfig())

	sid, runErr := d.Run(context.Background(), "", an, driver.PhaseConcept, driver.PhaseProduction)
	completed := runErr == nil
	if runErr != nil && !errors.Is(runErr, driver.ErrTasksExhausted) {
		fmt.Fprintf(os.Stderr, "replay run: %v\n", runErr)
		return 2
	}

	return printComparison(store, sid, sc.Expected, completed)
}

// #endregion main

// #region comparison

// printComparison outputs the observed pipeline outcomes against the
// scenario's expectations and returns the exit code.
func printComparison(store *session.Store, sid string, exp fixture.Expectations, completed bool) int {
	conceptWinner := phaseWinner(store, sid, driver.PhaseConcept)
	boardWinner := phaseWinner(store, sid, driver.PhaseStoryboard)

	fmt.Printf("%-20s| %-15s| %-15s| %s\n", "Check", "Expected", "Observed", "Match")
	fmt.Printf("%-20s+%-16s+%-16s+%s\n",
		"--------------------", "----------------", "----------------", "------")

	diverge := 0
	row := func(name, want, got string) {
		match := "OK"
		if want != "" && want != got {
			match = "DIFF"
			diverge++
		}
		if want == "" {
			want = "—"
		}
		fmt.Printf("%-20s| %-15s| %-15s| %s\n", name, want, got, match)
	}

	row("concept winner", exp.ConceptWinner, conceptWinner)
	row("storyboard winner", exp.StoryboardWinner, boardWinner)
	wantCompleted := ""
	if exp.Completed != nil {
		wantCompleted = fmt.Sprintf("%v", *exp.Completed)
	}
	row("completed", wantCompleted, fmt.Sprintf("%v", completed))

	fmt.Printf("\nsession %s: %d divergence(s)\n", sid, diverge)
	if diverge > 0 {
		return 1
	}
	return 0
}

// phaseWinner pulls the winner id out of a competition phase payload.
func phaseWinner(store *session.Store, sid string, phase int) string {
	sess, err := store.LoadSession(sid)
	if err != nil {
		return ""
	}
	ph := sess.Phase(phase)
	if ph == nil || ph.Status != session.PhaseCompleted {
		return ""
	}
	var payload struct {
		WinnerID string `json:"winner_id"`
	}
	if err := json.Unmarshal(ph.Payload, &payload); err != nil {
		return ""
	}
	return payload.WinnerID
}

// #endregion comparison
