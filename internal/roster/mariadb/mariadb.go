// Package mariadb looks up student names in an institution MariaDB/MySQL table.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Directory implements roster.Directory on a table with regno and name columns.
type Directory struct {
	db    *sql.DB
	query string
}

// Open connects to MariaDB. table must be a plain identifier.
func Open(dsn, table string) (*Directory, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid roster table name %q", table)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return newDirectory(db, table), nil
}

func newDirectory(db *sql.DB, table string) *Directory {
	return &Directory{
		db:    db,
		query: "SELECT name FROM `" + table + "` WHERE UPPER(regno) = ? LIMIT 1",
	}
}

// Lookup returns the name stored for identity.
func (d *Directory) Lookup(ctx context.Context, identity string) (string, bool, error) {
	var name sql.NullString
	err := d.db.QueryRowContext(ctx, d.query, strings.ToUpper(identity)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query roster: %w", err)
	}
	n := strings.TrimSpace(name.String)
	return n, n != "", nil
}

// Close closes the connection pool.
func (d *Directory) Close() error {
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
