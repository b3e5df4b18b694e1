// Package session runs the simulation engines against the ledger loaded for
// one analysis session, caching results per ledger subset and parameters and
// optionally persisting run summaries.
package session

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-sim/internal/benchmark"
	"github.com/sells-group/procurement-sim/internal/cache"
	"github.com/sells-group/procurement-sim/internal/config"
	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/risk"
	"github.com/sells-group/procurement-sim/internal/scenario"
	"github.com/sells-group/procurement-sim/internal/simerr"
	"github.com/sells-group/procurement-sim/internal/store"
)

// RequestError marks a request parameter the engines cannot accept, as
// opposed to a condition of the ledger data.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// invalid marks err as a request error unless it is already classified.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := simerr.As(err); ok {
		return err
	}
	return &RequestError{Err: err}
}

// Session owns the read-only ledger and the engine dependencies.
type Session struct {
	ledger *model.Ledger
	scorer risk.Scorer
	cfg    config.SimulationConfig
	store  store.Store

	contributions []model.Contribution

	benchmarks  *cache.Cache[*benchmark.Result]
	mitigations *cache.Cache[*risk.Result]
}

// Options configures New. Scorer and Store may be nil: without a scorer
// only precomputed risk probabilities can be used, and without a store
// Save requests fail. Contributions feed the variable importance ranking.
type Options struct {
	Ledger        *model.Ledger
	Scorer        risk.Scorer
	Simulation    config.SimulationConfig
	Store         store.Store
	Contributions []model.Contribution
	CacheEntries  int
}

// New creates a Session.
func New(opts Options) (*Session, error) {
	if opts.Ledger == nil {
		return nil, eris.New("session: ledger is required")
	}
	return &Session{
		ledger:        opts.Ledger,
		scorer:        opts.Scorer,
		cfg:           opts.Simulation,
		store:         opts.Store,
		contributions: opts.Contributions,
		benchmarks:    cache.New[*benchmark.Result](opts.CacheEntries),
		mitigations:   cache.New[*risk.Result](opts.CacheEntries),
	}, nil
}

// Ledger returns the session ledger.
func (s *Session) Ledger() *model.Ledger { return s.ledger }

// Store returns the run store, or nil.
func (s *Session) Store() store.Store { return s.store }

// CacheStats reports both result caches.
func (s *Session) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		string(model.EngineBenchmark):  s.benchmarks.Stats(),
		string(model.EngineMitigation): s.mitigations.Stats(),
	}
}

// Invalidate drops cached results computed on the filtered ledger.
func (s *Session) Invalidate(f model.Filter) {
	fp := s.subset(f).Fingerprint()
	s.benchmarks.Invalidate(fp)
	s.mitigations.Invalidate(fp)
	zap.L().Debug("session: cache invalidated", zap.String("fingerprint", fp))
}

// Domain returns the observed value domain of the filtered ledger.
func (s *Session) Domain(f model.Filter) scenario.Domain {
	return scenario.DomainOf(s.subset(f))
}

func (s *Session) subset(f model.Filter) *model.Ledger {
	if f.IsZero() {
		return s.ledger
	}
	return s.ledger.Filter(f)
}

func (s *Session) threshold(override *float64) float64 {
	if override != nil {
		return *override
	}
	return s.cfg.RiskThreshold
}

func (s *Session) benchmark(ledger *model.Ledger, q float64) (*benchmark.Result, bool, error) {
	key, err := cache.NewKey(ledger.Fingerprint(), struct {
		Quantile float64 `json:"quantile"`
	}{q})
	if err != nil {
		return nil, false, err
	}
	return s.benchmarks.GetOrCompute(key, func() (*benchmark.Result, error) {
		return benchmark.Apply(ledger, q)
	})
}

func (s *Session) mitigation(ctx context.Context, ledger *model.Ledger, threshold float64) (*risk.Result, bool, error) {
	key, err := cache.NewKey(ledger.Fingerprint(), struct {
		Threshold float64 `json:"threshold"`
	}{threshold})
	if err != nil {
		return nil, false, err
	}
	return s.mitigations.GetOrCompute(key, func() (*risk.Result, error) {
		return risk.Apply(ctx, ledger, s.scorer, threshold)
	})
}

// save persists a run summary and returns its id.
func (s *Session) save(ctx context.Context, engine model.Engine, fingerprint string, params, summary any) (string, error) {
	if s.store == nil {
		return "", invalid(eris.New("session: no run store configured"))
	}
	run, err := store.NewRun(engine, fingerprint, params, summary)
	if err != nil {
		return "", err
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return "", err
	}
	zap.L().Info("session: run saved",
		zap.String("run_id", run.ID),
		zap.String("engine", string(engine)),
	)
	return run.ID, nil
}
