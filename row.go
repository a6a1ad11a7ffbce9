package sqlitex

import "math"

// Row is a lightweight, non-owning cursor over the current result position
// of a Statement (spec §3). Copies refer to the same Statement, so
// advancing one copy advances every copy.
type Row struct {
	stmt *Statement
}

// Empty reports whether this Row refers to no statement, or to a statement
// that is not currently active.
func (r *Row) Empty() bool {
	return r == nil || r.stmt == nil || !r.stmt.active
}

// ColumnCount returns the number of columns in the current result set.
func (r *Row) ColumnCount() int {
	if r.Empty() {
		return 0
	}
	return r.stmt.numCols
}

// ColumnName returns the name of column i.
func (r *Row) ColumnName(i int) string {
	if r.Empty() || i < 0 || i >= len(r.stmt.colNames) {
		return ""
	}
	return r.stmt.colNames[i]
}

// col resolves a column name to its index via a linear scan of the current
// result's column names (spec §4.3); it fails with invalid-argument on miss.
func (r *Row) col(name string) (int, error) {
	for i, n := range r.stmt.colNames {
		if n == name {
			return i, nil
		}
	}
	return -1, &Error{Message: "unknown column name: " + name, SQL: r.stmt.sql}
}

// Int64 returns column i as a 64-bit integer; a NULL cell decodes as zero.
func (r *Row) Int64(i int) int64 {
	return engineColumnInt64(r.stmt.stmt, i)
}

// Float64 returns column i as a float; a NULL cell decodes as quiet NaN so
// numeric consumers can treat it as a sentinel (spec §4.3).
func (r *Row) Float64(i int) float64 {
	if engineColumnType(r.stmt.stmt, i) == typeNull {
		return math.NaN()
	}
	return engineColumnDouble(r.stmt.stmt, i)
}

// Text returns column i as a string view, valid until the next step or
// reset of the owning Statement.
func (r *Row) Text(i int) string {
	return engineColumnText(r.stmt.stmt, i)
}

// Blob returns column i as a byte slice view, valid until the next step or
// reset of the owning Statement.
func (r *Row) Blob(i int) []byte {
	return engineColumnBlob(r.stmt.stmt, i)
}

// IsNull reports whether column i holds a NULL value.
func (r *Row) IsNull(i int) bool {
	return engineColumnType(r.stmt.stmt, i) == typeNull
}

// ColumnInt64 is Int64 by column name; it raises invalid-argument on an
// unknown name (col_no_throw in spec terms does not apply here — by-name
// lookup always validates).
func (r *Row) ColumnInt64(name string) (int64, error) {
	i, err := r.col(name)
	if err != nil {
		return 0, err
	}
	return r.Int64(i), nil
}

// ColumnFloat64 is Float64 by column name.
func (r *Row) ColumnFloat64(name string) (float64, error) {
	i, err := r.col(name)
	if err != nil {
		return 0, err
	}
	return r.Float64(i), nil
}

// ColumnText is Text by column name.
func (r *Row) ColumnText(name string) (string, error) {
	i, err := r.col(name)
	if err != nil {
		return "", err
	}
	return r.Text(i), nil
}

// Next advances to the following row using the owning Statement.
func (r *Row) Next() (*Row, error) {
	if r.Empty() {
		return nil, &Error{Message: "next on empty row"}
	}
	return r.stmt.Next()
}
