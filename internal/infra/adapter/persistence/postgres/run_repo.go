package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/repository"
)

type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(db *sql.DB) repository.RunRepository {
	return &RunRepo{db: db}
}

// Create inserts the run and fills in the generated id. Counters are stored
// as a JSONB document so the schema does not chase the counter set.
func (repo *RunRepo) Create(ctx context.Context, run *entity.RunRecord) error {
	if run == nil {
		return fmt.Errorf("Create: run is nil")
	}
	counters, err := json.Marshal(run.Counters)
	if err != nil {
		return fmt.Errorf("Create: marshal counters: %w", err)
	}

	const query = `
INSERT INTO runs
       (started_at, finished_at, window_hours, top_n, stage, state, counters, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
RETURNING run_id`
	err = repo.db.QueryRowContext(ctx, query,
		run.StartedAt, run.FinishedAt, run.WindowHours, run.TopN,
		string(run.Stage), string(run.State), counters, run.Error,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields. Called on every stage transition so a
// crash leaves the last reached stage visible in the row.
func (repo *RunRepo) Update(ctx context.Context, run *entity.RunRecord) error {
	if run == nil {
		return fmt.Errorf("Update: run is nil")
	}
	counters, err := json.Marshal(run.Counters)
	if err != nil {
		return fmt.Errorf("Update: marshal counters: %w", err)
	}

	const query = `
UPDATE runs SET
       finished_at = $1,
       stage       = $2,
       state       = $3,
       counters    = $4,
       error       = NULLIF($5, '')
WHERE run_id = $6`
	res, err := repo.db.ExecContext(ctx, query,
		run.FinishedAt, string(run.Stage), string(run.State), counters, run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update: no rows affected")
	}
	return nil
}

func (repo *RunRepo) Get(ctx context.Context, runID int64) (*entity.RunRecord, error) {
	const query = `
SELECT run_id, started_at, finished_at, window_hours, top_n, stage, state, counters, COALESCE(error, '')
FROM runs
WHERE run_id = $1
LIMIT 1`
	run, err := scanRun(repo.db.QueryRowContext(ctx, query, runID))
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return run, nil
}

func (repo *RunRepo) Latest(ctx context.Context) (*entity.RunRecord, error) {
	const query = `
SELECT run_id, started_at, finished_at, window_hours, top_n, stage, state, counters, COALESCE(error, '')
FROM runs
ORDER BY started_at DESC, run_id DESC
LIMIT 1`
	run, err := scanRun(repo.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Latest: %w", err)
	}
	return run, nil
}

func (repo *RunRepo) List(ctx context.Context, limit int) ([]*entity.RunRecord, error) {
	const query = `
SELECT run_id, started_at, finished_at, window_hours, top_n, stage, state, counters, COALESCE(error, '')
FROM runs
ORDER BY started_at DESC, run_id DESC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*entity.RunRecord, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("List: Scan: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*entity.RunRecord, error) {
	var run entity.RunRecord
	var stage, state string
	var counters []byte
	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.WindowHours,
		&run.TopN, &stage, &state, &counters, &run.Error)
	if err != nil {
		return nil, err
	}
	run.Stage = entity.Stage(stage)
	run.State = entity.RunState(state)
	if len(counters) > 0 {
		if err := json.Unmarshal(counters, &run.Counters); err != nil {
			return nil, fmt.Errorf("unmarshal counters: %w", err)
		}
	}
	return &run, nil
}
