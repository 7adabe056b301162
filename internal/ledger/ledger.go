// Package ledger records attendance. Each identity gets at most one
// "Present" row per calendar date when duplicate prevention is enabled.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
)

// ErrUnavailable marks failures of the backing store (transport, auth, quota).
// A write that fails with it was neither recorded nor rejected as a duplicate.
var ErrUnavailable = errors.New("attendance ledger unavailable")

// Header is the first row of a tabular ledger.
var Header = []string{"Date", "Time", "Name", "Registration Number", "Status"}

// Record is one attendance row.
type Record struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Name     string `json:"name"`
	Identity string `json:"reg_number"`
	Status   string `json:"status"`
}

// Row returns the record in column order.
func (r Record) Row() []string {
	return []string{r.Date, r.Time, r.Name, r.Identity, r.Status}
}

// RecordFromRow parses a stored row. Rows with fewer than four columns are
// not attendance records.
func RecordFromRow(row []string) (Record, bool) {
	if len(row) < 4 {
		return Record{}, false
	}
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	return Record{
		Date:     cell(0),
		Time:     cell(1),
		Name:     cell(2),
		Identity: cell(3),
		Status:   cell(4),
	}, true
}

// Outcome of a mark-present request that reached the store.
type Outcome int

const (
	Marked Outcome = iota
	Duplicate
)

func (o Outcome) String() string {
	if o == Duplicate {
		return "duplicate"
	}
	return "marked"
}

// Mark is the result of MarkPresent. Record is the row that was written, or
// the row that would have been written for a duplicate.
type Mark struct {
	Outcome Outcome
	Record  Record
}

// Ledger is the attendance store used by the scanner.
type Ledger interface {
	// HasEntry reports whether identity already has a record on date (YYYY-MM-DD).
	HasEntry(ctx context.Context, identity, date string) (bool, error)
	// MarkPresent records identity as present now. Store failures are
	// returned as errors wrapping ErrUnavailable.
	MarkPresent(ctx context.Context, displayName, identity string) (Mark, error)
	// Summary returns the records of a date in insertion order.
	Summary(ctx context.Context, date string) ([]Record, error)
}

// DateOf formats t as a ledger date.
func DateOf(t time.Time) string {
	return t.Format(constants.DateLayout)
}

// ParseDate validates a ledger date string.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(constants.DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return DateOf(t), nil
}

// Stats summarizes one date.
type Stats struct {
	Date  string   `json:"date"`
	Count int      `json:"count"`
	Names []string `json:"students"`
}

// StatsFor counts the records of a date.
func StatsFor(ctx context.Context, l Ledger, date string) (Stats, error) {
	records, err := l.Summary(ctx, date)
	if err != nil {
		return Stats{Date: date}, err
	}
	names := make([]string, 0, len(records))
	for _, r := range records {
		name := r.Name
		if name == "" {
			name = "Unknown"
		}
		names = append(names, name)
	}
	return Stats{Date: date, Count: len(records), Names: names}, nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
