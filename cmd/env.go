package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-sim/internal/config"
	"github.com/sells-group/procurement-sim/internal/ingest"
	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/resilience"
	"github.com/sells-group/procurement-sim/internal/risk"
	"github.com/sells-group/procurement-sim/internal/scorer"
	"github.com/sells-group/procurement-sim/internal/session"
	"github.com/sells-group/procurement-sim/internal/store"
)

// simEnv holds the loaded ledger session and the optional run store.
type simEnv struct {
	Session *session.Session
	Store   store.Store
}

// Close releases resources held by the environment.
func (e *simEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initSession loads the ledger, builds the configured scorer and, when
// withStore is set, opens the run store. Callers should defer env.Close().
func initSession(ctx context.Context, withStore bool) (*simEnv, error) {
	ledger, err := ingest.LoadLedger(cfg.Ledger.Path, ingest.Options{Sheet: cfg.Ledger.Sheet})
	if err != nil {
		return nil, eris.Wrapf(err, "load ledger %s", cfg.Ledger.Path)
	}

	var contributions []model.Contribution
	if cfg.Ledger.Contributions != "" {
		contributions, err = ingest.LoadContributions(cfg.Ledger.Contributions, "")
		if err != nil {
			return nil, eris.Wrapf(err, "load contributions %s", cfg.Ledger.Contributions)
		}
	}

	sc, err := initScorer(cfg.Scorer)
	if err != nil {
		return nil, err
	}

	env := &simEnv{}
	if withStore {
		if env.Store, err = initStore(ctx); err != nil {
			return nil, err
		}
	}

	env.Session, err = session.New(session.Options{
		Ledger:        ledger,
		Scorer:        sc,
		Simulation:    cfg.Simulation,
		Store:         env.Store,
		Contributions: contributions,
		CacheEntries:  cfg.Cache.MaxEntries,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// initStore opens and migrates the configured run store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open run store")
	}
	return st, nil
}

// initScorer builds the risk scorer named by sc.Kind. Kind "none" yields
// a nil scorer, so only precomputed probabilities can be used.
func initScorer(sc config.ScorerConfig) (risk.Scorer, error) {
	switch sc.Kind {
	case "logistic":
		m, err := scorer.LoadLogisticModel(sc.ModelPath)
		if err != nil {
			return nil, err
		}
		zap.L().Debug("logistic risk model loaded", zap.String("model", m.Name), zap.String("path", sc.ModelPath))
		return m, nil
	case "http":
		backoff := resilience.DefaultBackoff()
		backoff.Attempts = sc.MaxAttempts
		h, err := scorer.NewHTTPScorer(scorer.HTTPOptions{
			URL:        sc.URL,
			Timeout:    time.Duration(sc.TimeoutSecs) * time.Second,
			RatePerSec: sc.RatePerSec,
			BatchSize:  sc.BatchSize,
			Backoff:    backoff,
		})
		if err != nil {
			return nil, err
		}
		return h, nil
	case "none", "":
		zap.L().Warn("no risk scorer configured, precomputed probabilities only")
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported scorer kind: %s", sc.Kind)
	}
}

// addFilterFlags registers the ledger subset flags.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("loc", nil, "restrict the ledger to these locations")
	cmd.Flags().Int("year-from", 0, "restrict the ledger to contracts from this year")
	cmd.Flags().Int("year-to", 0, "restrict the ledger to contracts up to this year")
}

func filterFromFlags(cmd *cobra.Command) model.Filter {
	locs, _ := cmd.Flags().GetStringSlice("loc")
	from, _ := cmd.Flags().GetInt("year-from")
	to, _ := cmd.Flags().GetInt("year-to")
	return model.Filter{Locations: locs, YearFrom: from, YearTo: to}
}
