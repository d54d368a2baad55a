// Package reference reads the read-only card catalog database. Every table
// is optional: a missing table yields an empty result, never an error.
package reference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

// Optional tables and views of the reference database.
const (
	TableCardRows          = "card_rows"
	TableCards             = "cards"
	TableSets              = "sets"
	TableFormats           = "formats"
	TableFormatBannedSets  = "format_banned_sets"
	TableFormatBannedCards = "format_banned_cards"
	TableAffiliationIcons  = "affiliation_icons"
	TableAlignments        = "alignments"
	TableTokenIcons        = "token_icons"
	TableEnergyCodes       = "energy_codes"
	TableTZCardMap         = "tz_card_map"
)

// ErrNoLookupTable is returned by lookups when tz_card_map is absent.
var ErrNoLookupTable = errors.New("tz_card_map table is missing from the content database")

// Store is a read-only handle on the reference database.
type Store struct {
	db      *sql.DB
	path    string
	tables  map[string]bool

	mu      sync.Mutex
	columns map[string]map[string]bool
}

// Open opens the reference database at path read-only and records which
// tables and views it has.
func Open(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat reference database: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open reference database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping reference database: %w", err)
	}

	s := &Store{db: db, path: path, columns: make(map[string]map[string]bool)}
	if err := s.loadTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadTables(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type IN ('table', 'view')`)
	if err != nil {
		return fmt.Errorf("failed to list reference tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	s.tables = make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		s.tables[name] = true
	}
	return rows.Err()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HasTable reports whether a table or view exists.
func (s *Store) HasTable(name string) bool {
	return s.tables[name]
}

// HasColumn reports whether a table has a column.
func (s *Store) HasColumn(ctx context.Context, table, column string) bool {
	if !s.HasTable(table) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cols, ok := s.columns[table]
	if !ok {
		cols = make(map[string]bool)
		rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
		if err != nil {
			return false
		}
		for rows.Next() {
			var name string
			if rows.Scan(&name) == nil {
				cols[strings.ToLower(name)] = true
			}
		}
		_ = rows.Close()
		s.columns[table] = cols
	}
	return cols[strings.ToLower(column)]
}

// query runs a query against an optional table. A missing table returns
// nil rows and no error.
func (s *Store) query(ctx context.Context, table, query string, args ...any) (*sql.Rows, error) {
	if !s.HasTable(table) {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return rows, nil
}

// scanAll scans every row with fn and closes rows.
func scanAll(rows *sql.Rows, fn func(*sql.Rows) error) error {
	if rows == nil {
		return nil
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func optString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func optInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
