// Package store persists simulation run summaries.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/procurement-sim/internal/model"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Engine      model.Engine `json:"engine,omitempty"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Limit       int          `json:"limit,omitempty"`
	Offset      int          `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// NewRun builds a run record with a fresh id, encoding params and summary.
func NewRun(engine model.Engine, fingerprint string, params, summary any) (*model.Run, error) {
	p, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal params")
	}
	s, err := json.Marshal(summary)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal summary")
	}
	return &model.Run{
		ID:          uuid.New().String(),
		Engine:      engine,
		Params:      p,
		Fingerprint: fingerprint,
		Summary:     s,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

const defaultListLimit = 50

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Open returns the store for driver ("sqlite" or "postgres"), migrated.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	var st Store
	switch driver {
	case "sqlite":
		s, err := NewSQLite(databaseURL)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres":
		s, err := NewPostgres(ctx, databaseURL, nil)
		if err != nil {
			return nil, err
		}
		st = s
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
