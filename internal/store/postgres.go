package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/procurement-sim/internal/db"
	"github.com/sells-group/procurement-sim/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to Postgres with default pool sizing.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sim_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	engine      TEXT NOT NULL,
	params      JSONB NOT NULL,
	fingerprint TEXT NOT NULL,
	summary     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sim_runs_engine ON sim_runs(engine);
CREATE INDEX IF NOT EXISTS idx_sim_runs_fingerprint ON sim_runs(fingerprint);
CREATE INDEX IF NOT EXISTS idx_sim_runs_created_at ON sim_runs(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sim_runs (id, engine, params, fingerprint, summary, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, string(run.Engine), []byte(run.Params), run.Fingerprint, []byte(run.Summary), run.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, engine, params, fingerprint, summary, created_at FROM sim_runs WHERE id = $1`, id)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	var where []string
	var args []any
	if filter.Engine != "" {
		args = append(args, string(filter.Engine))
		where = append(where, fmt.Sprintf("engine = $%d", len(args)))
	}
	if filter.Fingerprint != "" {
		args = append(args, filter.Fingerprint)
		where = append(where, fmt.Sprintf("fingerprint = $%d", len(args)))
	}

	q := `SELECT id, engine, params, fingerprint, summary, created_at FROM sim_runs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.limit(), filter.Offset)
	q += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) DeleteRun(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sim_runs WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete run %s", id)
	}
	return nil
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var engine string
	var params, summary []byte
	if err := row.Scan(&r.ID, &engine, &params, &r.Fingerprint, &summary, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Engine = model.Engine(engine)
	r.Params = params
	r.Summary = summary
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
