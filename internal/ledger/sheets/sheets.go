// Package sheets stores attendance rows in a Google Sheets tab.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/kozaktomas/attendance-scanner/internal/ledger"
)

const (
	gridRows    = 1000
	gridColumns = 5
)

// Config selects the spreadsheet, tab and credentials.
type Config struct {
	SpreadsheetID   string
	TabName         string
	TabPerSession   bool
	CredentialsFile string
	CredentialsJSON string
}

// Table is a ledger.Table backed by one tab of a spreadsheet.
type Table struct {
	svc           *sheets.Service
	spreadsheetID string
	tab           string

	// mu guards the fields learned from the API. Check is served to HTTP
	// clients concurrently with the scanner's own calls.
	mu      sync.Mutex
	sheetID int64
	title   string
}

// SessionTabName returns the tab name used when every run gets its own tab.
func SessionTabName(base string, t time.Time) string {
	return fmt.Sprintf("%s_%s", base, t.Format("20060102_150405"))
}

// New connects to the Sheets API. Extra client options are appended after
// the credential options, so tests can point the client at a fake endpoint.
func New(ctx context.Context, cfg Config, extra ...option.ClientOption) (*Table, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("SHEETS_SPREADSHEET_ID is required for the sheets ledger")
	}

	tab := cfg.TabName
	if tab == "" {
		tab = "ANT"
	}
	if cfg.TabPerSession {
		tab = SessionTabName(tab, time.Now())
	}

	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if len(extra) == 0 {
		credOpt, err := credentialsOption(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, credOpt)
	}
	opts = append(opts, extra...)

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	return &Table{svc: svc, spreadsheetID: cfg.SpreadsheetID, tab: tab}, nil
}

func credentialsOption(cfg Config) (option.ClientOption, error) {
	if cfg.CredentialsJSON != "" {
		return option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)), nil
	}
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("google credentials are required: set GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON")
	}
	if _, err := os.Stat(cfg.CredentialsFile); err != nil {
		return nil, fmt.Errorf("credentials file not found: %s", cfg.CredentialsFile)
	}
	return option.WithCredentialsFile(cfg.CredentialsFile), nil
}

// TabName returns the tab rows are written to.
func (t *Table) TabName() string {
	return t.tab
}

// Title returns the spreadsheet title, known after Setup.
func (t *Table) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title
}

func (t *Table) tabID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sheetID
}

func (t *Table) setTabID(id int64) {
	t.mu.Lock()
	t.sheetID = id
	t.mu.Unlock()
}

// URL returns the browser link to the spreadsheet.
func (t *Table) URL() string {
	return "https://docs.google.com/spreadsheets/d/" + t.spreadsheetID
}

// Setup makes sure the tab exists and carries the formatted header row.
func (t *Table) Setup(ctx context.Context) error {
	found, err := t.lookupTab(ctx)
	if err != nil {
		return err
	}

	if !found {
		if err := t.createTab(ctx); err != nil {
			return err
		}
		slog.Info("created attendance tab", "tab", t.tab, "spreadsheet", t.Title())
	}

	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.rangeOf("A1:E1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if len(resp.Values) > 0 && slices.Equal(toStrings(resp.Values[0]), ledger.Header) {
		return nil
	}

	if err := t.writeHeader(ctx); err != nil {
		return err
	}
	if err := t.formatHeader(ctx); err != nil {
		// Formatting is cosmetic.
		slog.Warn("failed to format header row", "tab", t.tab, "error", err)
	}
	return nil
}

// Check verifies the spreadsheet is reachable with the configured credentials.
func (t *Table) Check(ctx context.Context) error {
	_, err := t.lookupTab(ctx)
	return err
}

func (t *Table) lookupTab(ctx context.Context) (bool, error) {
	ss, err := t.svc.Spreadsheets.Get(t.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("failed to open spreadsheet: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if ss.Properties != nil {
		t.title = ss.Properties.Title
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == t.tab {
			t.sheetID = sh.Properties.SheetId
			return true, nil
		}
	}
	return false, nil
}

func (t *Table) createTab(ctx context.Context) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: t.tab,
					GridProperties: &sheets.GridProperties{
						RowCount:    gridRows,
						ColumnCount: gridColumns,
					},
				},
			},
		}},
	}
	resp, err := t.svc.Spreadsheets.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to create tab %s: %w", t.tab, err)
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		t.setTabID(resp.Replies[0].AddSheet.Properties.SheetId)
	}
	return nil
}

func (t *Table) writeHeader(ctx context.Context) error {
	vr := &sheets.ValueRange{Values: [][]any{toCells(ledger.Header)}}
	if _, err := t.svc.Spreadsheets.Values.Update(t.spreadsheetID, t.rangeOf("A1:E1"), vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

func (t *Table) formatHeader(ctx context.Context) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          t.tabID(),
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   gridColumns,
					ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
						TextFormat:      &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat(backgroundColor,textFormat)",
			},
		}},
	}
	_, err := t.svc.Spreadsheets.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do()
	return err
}

// Rows returns the data rows below the header.
func (t *Table) Rows(ctx context.Context) ([][]string, error) {
	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.rangeOf("A:E")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.tab, err)
	}
	if len(resp.Values) <= 1 {
		return nil, nil
	}
	rows := make([][]string, 0, len(resp.Values)-1)
	for _, v := range resp.Values[1:] {
		rows = append(rows, toStrings(v))
	}
	return rows, nil
}

// AppendRow writes row into the first empty row of column A.
func (t *Table) AppendRow(ctx context.Context, row []string) error {
	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.rangeOf("A:A")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to find next row in %s: %w", t.tab, err)
	}
	next := len(resp.Values) + 1

	vr := &sheets.ValueRange{Values: [][]any{toCells(row)}}
	rng := t.rangeOf(fmt.Sprintf("A%d:E%d", next, next))
	if _, err := t.svc.Spreadsheets.Values.Update(t.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to write row %d in %s: %w", next, t.tab, err)
	}
	return nil
}

// rangeOf builds an A1 range on the tab, quoting the tab name.
func (t *Table) rangeOf(cells string) string {
	return "'" + strings.ReplaceAll(t.tab, "'", "''") + "'!" + cells
}

func toCells(row []string) []any {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

func toStrings(cells []any) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = fmt.Sprint(c)
	}
	return out
}
