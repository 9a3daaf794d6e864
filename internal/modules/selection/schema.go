package selection

import "database/sql"

// TrainingRunsSchema records every training pass: the options used, the
// resulting metrics and a snapshot of the preprocessed training records.
const TrainingRunsSchema = `
CREATE TABLE IF NOT EXISTS training_runs (
    id INTEGER PRIMARY KEY,
    method TEXT NOT NULL,
    eval_method TEXT NOT NULL,
    test_size REAL NOT NULL,
    n_trees INTEGER NOT NULL,
    n_neighbors INTEGER NOT NULL,
    clf_accuracy REAL NOT NULL,
    metrics_json TEXT NOT NULL,
    records_snapshot BLOB,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_training_runs_created_at ON training_runs(created_at);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(TrainingRunsSchema)
	return err
}
