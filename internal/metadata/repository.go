package metadata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles metadata persistence
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new metadata repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "metadata").Logger(),
	}
}

// Insert stores one metadata row. The hpt_res and features cells are kept in
// their serialized form; parsing happens at preprocessing time.
func (r *Repository) Insert(hptRes, features, bestModel string) (int64, error) {
	createdAt := time.Now().Format("2006-01-02 15:04:05")

	result, err := r.db.Exec(
		`INSERT INTO detection_metadata (hpt_res, features, best_model, created_at) VALUES (?, ?, ?, ?)`,
		hptRes, features, bestModel, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert metadata row: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// LoadTable reads all metadata rows in insertion order
func (r *Repository) LoadTable() (*Table, error) {
	rows, err := r.db.Query(
		`SELECT hpt_res, features, best_model FROM detection_metadata ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	table := NewTable(RequiredColumns)
	for rows.Next() {
		var hptRes, features, bestModel string
		if err := rows.Scan(&hptRes, &features, &bestModel); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		table.Append(Row{
			ColHptRes:    hptRes,
			ColFeatures:  features,
			ColBestModel: bestModel,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metadata rows: %w", err)
	}

	r.log.Debug().Int("rows", table.Len()).Msg("Loaded metadata table")
	return table, nil
}

// Count returns the number of stored metadata rows
func (r *Repository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM detection_metadata").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count metadata rows: %w", err)
	}
	return count, nil
}
