// Package importer reads collection and trade partner CSV files, resolving
// external card names through the reference lookup table.
package importer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ramonehamilton/prep-area/internal/reference"
	"github.com/ramonehamilton/prep-area/internal/storage/models"
	"github.com/ramonehamilton/prep-area/internal/tokens"
	"github.com/ramonehamilton/prep-area/internal/trade"
)

// ErrEmptyCSV is returned for input without a header row.
var ErrEmptyCSV = errors.New("CSV file is empty")

// MissingColumnError is returned when a required column is absent. It
// aborts the whole import.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("Missing column %q in CSV.", e.Column)
}

// CardSource resolves card pks to catalog records.
type CardSource interface {
	Card(cardPK int) (*models.CardRecord, bool)
}

// Config configures an Importer.
type Config struct {
	Lookup reference.Lookuper // nil when tz_card_map is absent
	Cards  CardSource
	Logger *slog.Logger
}

// Importer parses CSV imports against one reference catalog.
type Importer struct {
	lookup reference.Lookuper
	cards  CardSource
	logger *slog.Logger
}

// New creates an importer.
func New(config Config) *Importer {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Importer{
		lookup: config.Lookup,
		cards:  config.Cards,
		logger: config.Logger,
	}
}

// header maps lowercased column names to indexes.
type header map[string]int

func parseHeader(row []string) header {
	h := make(header, len(row))
	for i, name := range row {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := h[key]; !seen {
			h[key] = i
		}
	}
	return h
}

// find returns the index of the first label present, or -1.
func (h header) find(labels ...string) int {
	for _, label := range labels {
		if idx, ok := h[strings.ToLower(label)]; ok {
			return idx
		}
	}
	return -1
}

func (h header) require(display string, labels ...string) (int, error) {
	if len(labels) == 0 {
		labels = []string{display}
	}
	if idx := h.find(labels...); idx >= 0 {
		return idx, nil
	}
	return -1, &MissingColumnError{Column: display}
}

// unmatchedRows collects rows that matched no card, once per identity.
type unmatchedRows struct {
	seen map[string]struct{}
	rows []trade.RowIdentifier
}

func newUnmatchedRows() *unmatchedRows {
	return &unmatchedRows{seen: make(map[string]struct{}), rows: []trade.RowIdentifier{}}
}

func (u *unmatchedRows) add(set, character, cardName string) {
	key := set + "||" + character + "||" + cardName
	if _, ok := u.seen[key]; ok {
		return
	}
	u.seen[key] = struct{}{}
	u.rows = append(u.rows, trade.RowIdentifier{Set: set, Character: character, CardName: cardName})
}

// readRows parses CSV input and splits off the header.
func readRows(r io.Reader) (header, [][]string, error) {
	rows, err := tokens.ReadCSV(r)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, ErrEmptyCSV
	}
	return parseHeader(rows[0]), rows[1:], nil
}
