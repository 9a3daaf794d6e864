package metadata

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// setupTestDB creates an in-memory SQLite database with the metadata schema
func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, InitSchema(db))
	return db
}

func TestRepository_InsertAndLoad(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())

	id, err := repo.Insert(
		"{'statsig': [{'historical_window': 86400}, 0.2]}",
		"{'entropy': 0.5}",
		"statsig",
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = repo.Insert("{'cusum': [{'scan_window': 3600}]}", "{'entropy': 0.9}", "cusum")
	require.NoError(t, err)

	table, err := repo.LoadTable()
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, RequiredColumns, table.Columns)

	// rows come back in insertion order, as serialized cells
	assert.Equal(t, "statsig", table.Rows[0][ColBestModel])
	assert.Equal(t, "cusum", table.Rows[1][ColBestModel])
	_, isString := table.Rows[0][ColHptRes].(string)
	assert.True(t, isString)
}

func TestRepository_LoadedTablePreprocesses(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())
	for i := 0; i < 31; i++ {
		_, err := repo.Insert(
			"{'statsig': [{'historical_window': 86400}, 0.2]}",
			"{'entropy': 0.5}",
			"statsig",
		)
		require.NoError(t, err)
	}

	table, err := repo.LoadTable()
	require.NoError(t, err)

	records, err := Preprocess(table, DefaultScaleParams)
	require.NoError(t, err)
	require.Len(t, records, 31)
	assert.Equal(t, 1.0, records[0].HptRes["statsig"].Params["historical_window"])
}

func TestRepository_Count(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = repo.Insert("{}", "{}", "statsig")
	require.NoError(t, err)

	count, err = repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
