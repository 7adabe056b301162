// Package memory provides an in-process attendance table for dry runs and tests.
package memory

import (
	"context"
	"slices"
	"sync"
)

// Table is an in-memory ledger.Table.
type Table struct {
	mu   sync.RWMutex
	rows [][]string

	// Error injection
	RowsError   error
	AppendError error
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// Rows returns a copy of all rows.
func (t *Table) Rows(ctx context.Context) ([][]string, error) {
	if t.RowsError != nil {
		return nil, t.RowsError
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = slices.Clone(r)
	}
	return out, nil
}

// AppendRow stores a copy of row.
func (t *Table) AppendRow(ctx context.Context, row []string) error {
	if t.AppendError != nil {
		return t.AppendError
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, slices.Clone(row))
	return nil
}

// Len returns the number of stored rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
