package selection

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/detection-selector/internal/metadata"
)

// TrainingRun is one persisted training pass
type TrainingRun struct {
	ID          int          `json:"id"`
	Method      string       `json:"method"`
	EvalMethod  string       `json:"eval_method"`
	TestSize    float64      `json:"test_size"`
	NTrees      int          `json:"n_trees"`
	NNeighbors  int          `json:"n_neighbors"`
	ClfAccuracy float64      `json:"clf_accuracy"`
	Metrics     TrainMetrics `json:"metrics"`
	CreatedAt   string       `json:"created_at"`
}

// RunsRepository persists training runs
type RunsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunsRepository creates a new training-runs repository
func NewRunsRepository(db *sql.DB, log zerolog.Logger) *RunsRepository {
	return &RunsRepository{
		db:  db,
		log: log.With().Str("repo", "training_runs").Logger(),
	}
}

// Create stores a training run. The preprocessed records are kept as a
// msgpack snapshot so a run's exact training set can be inspected later.
func (r *RunsRepository) Create(opts TrainOptions, metrics TrainMetrics, records []metadata.TrainingRecord) (*TrainingRun, error) {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metrics: %w", err)
	}

	var snapshot []byte
	if len(records) > 0 {
		snapshot, err = msgpack.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("failed to encode records snapshot: %w", err)
		}
	}

	createdAt := time.Now().Format("2006-01-02 15:04:05")

	result, err := r.db.Exec(
		`INSERT INTO training_runs (
			method, eval_method, test_size, n_trees, n_neighbors,
			clf_accuracy, metrics_json, records_snapshot, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		opts.Method,
		opts.EvalMethod,
		opts.TestSize,
		opts.NTrees,
		opts.NNeighbors,
		metrics.ClfAccuracy,
		string(metricsJSON),
		snapshot,
		createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert training run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return &TrainingRun{
		ID:          int(id),
		Method:      opts.Method,
		EvalMethod:  opts.EvalMethod,
		TestSize:    opts.TestSize,
		NTrees:      opts.NTrees,
		NNeighbors:  opts.NNeighbors,
		ClfAccuracy: metrics.ClfAccuracy,
		Metrics:     metrics,
		CreatedAt:   createdAt,
	}, nil
}

// GetAll returns training runs, newest first, with optional limit
func (r *RunsRepository) GetAll(limit *int) ([]TrainingRun, error) {
	query := `SELECT id, method, eval_method, test_size, n_trees, n_neighbors,
		clf_accuracy, metrics_json, created_at
		FROM training_runs ORDER BY id DESC`
	if limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *limit)
	}

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query training runs: %w", err)
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Latest returns the most recent training run, or nil if none exist
func (r *RunsRepository) Latest() (*TrainingRun, error) {
	one := 1
	runs, err := r.GetAll(&one)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// LatestSnapshot decodes the records snapshot of the most recent run
func (r *RunsRepository) LatestSnapshot() ([]metadata.TrainingRecord, error) {
	var snapshot []byte
	err := r.db.QueryRow(
		`SELECT records_snapshot FROM training_runs ORDER BY id DESC LIMIT 1`,
	).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read records snapshot: %w", err)
	}
	if len(snapshot) == 0 {
		return nil, nil
	}

	var records []metadata.TrainingRecord
	if err := msgpack.Unmarshal(snapshot, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records snapshot: %w", err)
	}
	return records, nil
}

func scanRun(rows *sql.Rows) (*TrainingRun, error) {
	var run TrainingRun
	var metricsJSON string

	err := rows.Scan(
		&run.ID,
		&run.Method,
		&run.EvalMethod,
		&run.TestSize,
		&run.NTrees,
		&run.NNeighbors,
		&run.ClfAccuracy,
		&metricsJSON,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan training run: %w", err)
	}

	if err := json.Unmarshal([]byte(metricsJSON), &run.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run metrics: %w", err)
	}
	return &run, nil
}
