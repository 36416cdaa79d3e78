package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmarceau/cutroom/internal/audiofeed"
	"github.com/lmarceau/cutroom/internal/competition"
	"github.com/lmarceau/cutroom/internal/driver"
	"github.com/lmarceau/cutroom/internal/executor"
	"github.com/lmarceau/cutroom/internal/fixture"
	"github.com/lmarceau/cutroom/internal/live"
	"github.com/lmarceau/cutroom/internal/logging"
	"github.com/lmarceau/cutroom/internal/session"
)

// #region main
func main() {
	dbPath := flag.String("db", envOr("CUTROOM_DB", "cutroom.db"), "path to the session database")
	audioPath := flag.String("audio", "", "path to the audio analysis YAML")
	rosterPath := flag.String("roster", "", "path to the director roster YAML (live mode)")
	scenarioPath := flag.String("scenario", "", "path to the fixture scenario YAML (fixture mode)")
	mode := flag.String("mode", "live", "collaborator mode: live or fixture")
	collabURL := flag.String("collab-url", envOr("CUTROOM_COLLAB_URL", "http://localhost:8700"), "collaborator service base URL (live mode)")
	sessionID := flag.String("session", "", "resume an existing session")
	start := flag.Int("start", -1, "first phase to run (default: 0, or the session's next phase)")
	end := flag.Int("end", driver.PhaseProduction, "last phase to run")
	flag.Parse()

	if *audioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: pipeline --audio track.yaml [--roster roster.yaml | --mode fixture --scenario s.yaml] [--session id] [--start N] [--end N]")
		os.Exit(2)
	}

	an, err := audiofeed.Load(*audioPath)
	if err != nil {
		log.Fatalf("load analysis: %v", err)
	}

	store, err := session.NewStore(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	concerns, err := logging.NewConcernLog(store.DB())
	if err != nil {
		log.Fatalf("open concern log: %v", err)
	}

	directors, gen, eval, err := buildCollaborators(*mode, *rosterPath, *scenarioPath, *collabURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	d := driver.New(store, concerns, directors, gen, eval, nil, nil, driver.DefaultConfig())

	startPhase := *start
	if startPhase < 0 {
		startPhase = driver.PhaseConcept
		if *sessionID != "" {
			startPhase, err = d.NextPhase(*sessionID)
			if err != nil {
				log.Fatalf("resolve next phase: %v", err)
			}
			if startPhase >= driver.NumPhases {
				fmt.Printf("session %s: all phases completed\n", *sessionID)
				return
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	began := time.Now()
	sid, err := d.Run(ctx, *sessionID, an, startPhase, *end)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "session %s: interrupted\n", sid)
		} else {
			fmt.Fprintf(os.Stderr, "session %s: %v\n", sid, err)
		}
		os.Exit(1)
	}
	fmt.Printf("session %s: phases %d..%d completed in %s\n", sid, startPhase, *end, time.Since(began).Round(time.Millisecond))
}

// #endregion main

// #region collaborators
func buildCollaborators(mode, rosterPath, scenarioPath, collabURL string) ([]competition.Director, executor.ArtifactGenerationService, executor.QualityEvaluationService, error) {
	switch mode {
	case "live":
		if rosterPath == "" {
			return nil, nil, nil, fmt.Errorf("live mode requires --roster")
		}
		ids, err := competition.LoadRoster(rosterPath)
		if err != nil {
			return nil, nil, nil, err
		}
		client := live.NewClient(collabURL, 90*time.Second)
		svc := live.NewServices(client)
		return live.Directors(ids, client), svc, svc, nil
	case "fixture":
		if scenarioPath == "" {
			return nil, nil, nil, fmt.Errorf("fixture mode requires --scenario")
		}
		sc, err := fixture.Load(scenarioPath)
		if err != nil {
			return nil, nil, nil, err
		}
		svc := fixture.NewServices(sc.Generation)
		return sc.Roster(), svc, svc, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// #endregion collaborators

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
