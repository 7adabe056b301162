package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/ledger"
)

const insertOncePerDay = `
	INSERT INTO attendance (identity, display_name, attendance_date, attendance_time, status, unique_per_day)
	SELECT $1::varchar, $2::text, $3::date, $4::time, $5::varchar, TRUE
	WHERE NOT EXISTS (
		SELECT 1 FROM attendance WHERE identity = $1::varchar AND attendance_date = $3::date
	)
	ON CONFLICT (identity, attendance_date) WHERE unique_per_day DO NOTHING`

const insertAlways = `
	INSERT INTO attendance (identity, display_name, attendance_date, attendance_time, status, unique_per_day)
	VALUES ($1, $2, $3::date, $4::time, $5, FALSE)`

// Ledger implements ledger.Ledger on PostgreSQL.
type Ledger struct {
	pool              *Pool
	now               func() time.Time
	loc               *time.Location
	preventDuplicates bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation sets the zone used to derive dates and times.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithDuplicatePrevention toggles the one-row-per-day rule (on by default).
func WithDuplicatePrevention(enabled bool) Option {
	return func(l *Ledger) { l.preventDuplicates = enabled }
}

// NewLedger creates a ledger on an open pool.
func NewLedger(pool *Pool, opts ...Option) *Ledger {
	l := &Ledger{
		pool:              pool,
		now:               time.Now,
		loc:               time.Local,
		preventDuplicates: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) HasEntry(ctx context.Context, identity, date string) (bool, error) {
	var exists bool
	err := l.pool.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM attendance WHERE identity = $1 AND attendance_date = $2::date)`,
		identity, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check attendance: %w: %w", ledger.ErrUnavailable, err)
	}
	return exists, nil
}

// MarkPresent inserts the record unless one exists for the same identity and
// date. The check and the insert are a single statement.
func (l *Ledger) MarkPresent(ctx context.Context, displayName, identity string) (ledger.Mark, error) {
	now := l.now().In(l.loc)
	record := ledger.Record{
		Date:     ledger.DateOf(now),
		Time:     now.Format(constants.TimeLayout),
		Name:     displayName,
		Identity: identity,
		Status:   constants.StatusPresent,
	}

	query := insertAlways
	if l.preventDuplicates {
		query = insertOncePerDay
	}

	res, err := l.pool.db.ExecContext(ctx, query,
		record.Identity, record.Name, record.Date, record.Time, record.Status)
	if err != nil {
		return ledger.Mark{Record: record}, fmt.Errorf("failed to insert attendance: %w: %w", ledger.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Mark{Record: record}, fmt.Errorf("failed to read insert result: %w: %w", ledger.ErrUnavailable, err)
	}
	if n == 0 {
		return ledger.Mark{Outcome: ledger.Duplicate, Record: record}, nil
	}
	return ledger.Mark{Outcome: ledger.Marked, Record: record}, nil
}

func (l *Ledger) Summary(ctx context.Context, date string) ([]ledger.Record, error) {
	rows, err := l.pool.db.QueryContext(ctx, `
		SELECT to_char(attendance_date, 'YYYY-MM-DD'), to_char(attendance_time, 'HH24:MI:SS'),
		       display_name, identity, status
		FROM attendance
		WHERE attendance_date = $1::date
		ORDER BY id`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w: %w", ledger.ErrUnavailable, err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var r ledger.Record
		if err := rows.Scan(&r.Date, &r.Time, &r.Name, &r.Identity, &r.Status); err != nil {
			return nil, fmt.Errorf("scan attendance row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance rows: %w: %w", ledger.ErrUnavailable, err)
	}
	return records, nil
}
