// Package dataset provides the column-ordered, in-memory dataset the quality
// engine operates on. Operations never mutate the receiver; they return a new
// Dataset sharing row maps where possible, so a Dataset can be handed to
// multiple consumers safely.
package dataset

import (
	"fmt"
	"slices"
)

// Row holds one record as a column-name keyed map. A missing key and an
// explicit nil value are both treated as null by the engine.
type Row map[string]any

// Dataset is an ordered collection of rows with a declared column order.
type Dataset struct {
	columns []string
	rows    []Row
}

// New creates a dataset from a column order and a set of rows.
func New(columns []string, rows []Row) *Dataset {
	return &Dataset{
		columns: slices.Clone(columns),
		rows:    slices.Clone(rows),
	}
}

// FromRecords creates a dataset from generic records, inferring the column
// order from the first record's keys when none is declared up front. Records
// decoded from JSON arrive as map[string]any, so this is the usual entry
// point for API payloads.
func FromRecords(columns []string, records []map[string]any) *Dataset {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = Row(rec)
	}
	if len(columns) == 0 && len(records) > 0 {
		for col := range records[0] {
			columns = append(columns, col)
		}
		slices.Sort(columns)
	}
	return New(columns, rows)
}

// Columns returns the column order.
func (d *Dataset) Columns() []string {
	return slices.Clone(d.columns)
}

// HasColumn reports whether the dataset declares the given column.
func (d *Dataset) HasColumn(name string) bool {
	return slices.Contains(d.columns, name)
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// Row returns the i-th row.
func (d *Dataset) Row(i int) Row {
	return d.rows[i]
}

// Rows returns the underlying rows in order. Callers must not mutate them.
func (d *Dataset) Rows() []Row {
	return d.rows
}

// Value returns the value of a column in the i-th row. A missing key yields
// nil, matching null semantics.
func (d *Dataset) Value(i int, column string) any {
	return d.rows[i][column]
}

// WithColumn returns a dataset with an extra (or replaced) column whose
// per-row values are given in row order. len(values) must equal Len.
func (d *Dataset) WithColumn(name string, values []any) (*Dataset, error) {
	if len(values) != len(d.rows) {
		return nil, fmt.Errorf("column %s has %d values for %d rows", name, len(values), len(d.rows))
	}

	columns := slices.Clone(d.columns)
	if !slices.Contains(columns, name) {
		columns = append(columns, name)
	}

	rows := make([]Row, len(d.rows))
	for i, row := range d.rows {
		next := make(Row, len(row)+1)
		for k, v := range row {
			next[k] = v
		}
		next[name] = values[i]
		rows[i] = next
	}

	return &Dataset{columns: columns, rows: rows}, nil
}

// Where returns the rows for which the predicate holds, preserving order.
func (d *Dataset) Where(pred func(Row) bool) *Dataset {
	var rows []Row
	for _, row := range d.rows {
		if pred(row) {
			rows = append(rows, row)
		}
	}
	return &Dataset{columns: slices.Clone(d.columns), rows: rows}
}

// Drop returns a dataset without the given columns.
func (d *Dataset) Drop(columns ...string) *Dataset {
	keep := make([]string, 0, len(d.columns))
	for _, col := range d.columns {
		if !slices.Contains(columns, col) {
			keep = append(keep, col)
		}
	}

	rows := make([]Row, len(d.rows))
	for i, row := range d.rows {
		next := make(Row, len(keep))
		for _, col := range keep {
			if v, ok := row[col]; ok {
				next[col] = v
			}
		}
		rows[i] = next
	}

	return &Dataset{columns: keep, rows: rows}
}

// Select returns a dataset restricted to the given columns, in the given order.
func (d *Dataset) Select(columns ...string) *Dataset {
	rows := make([]Row, len(d.rows))
	for i, row := range d.rows {
		next := make(Row, len(columns))
		for _, col := range columns {
			if v, ok := row[col]; ok {
				next[col] = v
			}
		}
		rows[i] = next
	}
	return &Dataset{columns: slices.Clone(columns), rows: rows}
}

// Limit returns a dataset with at most n rows.
func (d *Dataset) Limit(n int) *Dataset {
	if n > len(d.rows) {
		n = len(d.rows)
	}
	return &Dataset{columns: slices.Clone(d.columns), rows: slices.Clone(d.rows[:n])}
}

// Records converts the dataset back to generic records, one map per row,
// including only declared columns. Used when rendering API responses.
func (d *Dataset) Records() []map[string]any {
	records := make([]map[string]any, len(d.rows))
	for i, row := range d.rows {
		rec := make(map[string]any, len(d.columns))
		for _, col := range d.columns {
			if v, ok := row[col]; ok {
				rec[col] = v
			} else {
				rec[col] = nil
			}
		}
		records[i] = rec
	}
	return records
}
