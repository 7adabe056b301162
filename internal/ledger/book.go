package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
)

// Table is a tabular store holding attendance rows below a header row.
type Table interface {
	// Rows returns all data rows (header excluded) in insertion order.
	Rows(ctx context.Context) ([][]string, error)
	// AppendRow adds a row after the last data row.
	AppendRow(ctx context.Context, row []string) error
}

// Book implements Ledger on top of a Table with a check-then-append write.
// The check and the append are serialized within one Book, but are not
// atomic against other writers of the same table.
type Book struct {
	mu                sync.Mutex
	table             Table
	now               func() time.Time
	loc               *time.Location
	preventDuplicates bool
}

// BookOption configures a Book.
type BookOption func(*Book)

// WithClock overrides the time source.
func WithClock(now func() time.Time) BookOption {
	return func(b *Book) { b.now = now }
}

// WithLocation sets the zone used to derive dates and times.
func WithLocation(loc *time.Location) BookOption {
	return func(b *Book) {
		if loc != nil {
			b.loc = loc
		}
	}
}

// WithDuplicatePrevention toggles the one-row-per-day rule (on by default).
func WithDuplicatePrevention(enabled bool) BookOption {
	return func(b *Book) { b.preventDuplicates = enabled }
}

// NewBook creates a ledger over table.
func NewBook(table Table, opts ...BookOption) *Book {
	b := &Book{
		table:             table,
		now:               time.Now,
		loc:               time.Local,
		preventDuplicates: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Today returns the current ledger date.
func (b *Book) Today() string {
	return DateOf(b.now().In(b.loc))
}

func (b *Book) HasEntry(ctx context.Context, identity, date string) (bool, error) {
	rows, err := b.table.Rows(ctx)
	if err != nil {
		return false, unavailable("failed to read attendance", err)
	}
	return containsEntry(rows, identity, date), nil
}

func (b *Book) MarkPresent(ctx context.Context, displayName, identity string) (Mark, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now().In(b.loc)
	record := Record{
		Date:     DateOf(now),
		Time:     now.Format(constants.TimeLayout),
		Name:     displayName,
		Identity: identity,
		Status:   constants.StatusPresent,
	}

	if b.preventDuplicates {
		exists, err := b.HasEntry(ctx, identity, record.Date)
		if err != nil {
			return Mark{Record: record}, err
		}
		if exists {
			return Mark{Outcome: Duplicate, Record: record}, nil
		}
	}

	if err := b.table.AppendRow(ctx, record.Row()); err != nil {
		return Mark{Record: record}, unavailable("failed to append attendance", err)
	}
	return Mark{Outcome: Marked, Record: record}, nil
}

func (b *Book) Summary(ctx context.Context, date string) ([]Record, error) {
	rows, err := b.table.Rows(ctx)
	if err != nil {
		return nil, unavailable("failed to read attendance", err)
	}
	var records []Record
	for _, row := range rows {
		r, ok := RecordFromRow(row)
		if ok && r.Date == date {
			records = append(records, r)
		}
	}
	return records, nil
}

func containsEntry(rows [][]string, identity, date string) bool {
	for _, row := range rows {
		r, ok := RecordFromRow(row)
		if ok && r.Date == date && r.Identity == identity {
			return true
		}
	}
	return false
}
