package metadata

import "database/sql"

// DetectionMetadataSchema holds one row per labeled time series: the
// hyper-parameter search outcome and features as serialized literals, plus
// the best-model label.
const DetectionMetadataSchema = `
CREATE TABLE IF NOT EXISTS detection_metadata (
    id INTEGER PRIMARY KEY,
    hpt_res TEXT NOT NULL,
    features TEXT NOT NULL,
    best_model TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_detection_metadata_best_model ON detection_metadata(best_model);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(DetectionMetadataSchema)
	return err
}
