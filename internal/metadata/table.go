package metadata

// Column names every metadata table must carry.
const (
	ColHptRes    = "hpt_res"
	ColFeatures  = "features"
	ColBestModel = "best_model"
)

// RequiredColumns lists the columns the selection service validates at construction.
var RequiredColumns = []string{ColHptRes, ColFeatures, ColBestModel}

// Row is one metadata record. Cells hold either raw serialized values (strings)
// or their parsed forms once Preprocess has run.
type Row map[string]any

// Table is a column-aware collection of metadata rows, one per time series.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable creates an empty table with the given columns
func NewTable(columns []string) *Table {
	return &Table{Columns: columns}
}

// HasColumn reports whether the table declares the given column
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Append adds a row to the table
func (t *Table) Append(r Row) {
	t.Rows = append(t.Rows, r)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}
