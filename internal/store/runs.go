package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"github.com/google/uuid"
)

// timeLayout has a fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one completed walkthrough or benchmark.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Dataset     string
	BestParams  map[string]interface{}
	BestCVScore float64
	TestR2      float64
	TestMSE     float64
	TrainRows   int
	TestRows    int
	NFeatures   int
	Duration    time.Duration
}

// InsertRun stores run, filling in a random ID and the current time when
// they are unset. The ID is returned.
func (s *Store) InsertRun(run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	params, err := json.Marshal(run.BestParams)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal best params")
	}

	query := `
		INSERT INTO runs
		(id, created_at, dataset, best_params, best_cv_score, test_r2, test_mse,
		 train_rows, test_rows, n_features, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		run.ID,
		run.CreatedAt.UTC().Format(timeLayout),
		run.Dataset,
		string(params),
		run.BestCVScore,
		run.TestR2,
		run.TestMSE,
		run.TrainRows,
		run.TestRows,
		run.NFeatures,
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return "", translate(err, "failed to insert run "+run.ID)
	}
	return run.ID, nil
}

const selectRun = `
	SELECT id, created_at, dataset, best_params, best_cv_score, test_r2, test_mse,
	       train_rows, test_rows, n_features, duration_ms
	FROM runs
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r          Run
		createdAt  string
		params     string
		durationMs int64
	)
	err := row.Scan(&r.ID, &createdAt, &r.Dataset, &params, &r.BestCVScore, &r.TestR2,
		&r.TestMSE, &r.TrainRows, &r.TestRows, &r.NFeatures, &durationMs)
	if err != nil {
		return nil, err
	}
	r.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for %s", r.ID)
	}
	if err := json.Unmarshal([]byte(params), &r.BestParams); err != nil {
		return nil, errors.Wrapf(err, "failed to parse best_params for %s", r.ID)
	}
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return &r, nil
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(selectRun+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, translate(err, "failed to get run "+id)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := selectRun + " ORDER BY created_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, translate(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, translate(err, "failed to scan run")
		}
		runs = append(runs, r)
	}
	return runs, translate(rows.Err(), "failed to list runs")
}
