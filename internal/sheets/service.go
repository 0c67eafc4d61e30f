// Package sheets exports reconciled item lists to a Google Sheet.
package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"diyscan/internal/logger"
)

// Headers of the item worksheet, columns A to D.
var Headers = []interface{}{"Item", "Label", "Source", "Scanned at"}

const (
	lastColumn = "D"

	// ScannedAtLayout is how the scan time is written to the sheet.
	ScannedAtLayout = "2006-01-02 15:04:05"
)

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string

	// Label is written next to every item. Defaults to "DIY".
	Label string

	// Now stamps the rows of a write.
	Now func() time.Time

	log zerolog.Logger
}

// ItemRow is one worksheet row.
type ItemRow struct {
	Item      string
	Label     string
	Source    string
	ScannedAt string
}

// NewSheetsService creates a Sheets client for the spreadsheet at sheetURL.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return newService(sheetsService, spreadsheetID), nil
}

func newService(sheetsService *sheets.Service, spreadsheetID string) *Service {
	s := &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		Label:         "DIY",
		Now:           time.Now,
		log:           logger.WithComponent("sheets"),
	}
	s.log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Sheets service ready")
	return s
}

func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// sheetRange builds an A1 range on worksheet. The title is always quoted so
// names with spaces or apostrophes work.
func sheetRange(worksheet, cells string) string {
	return "'" + strings.ReplaceAll(worksheet, "'", "''") + "'!" + cells
}

// Rows builds one row per item for a scan of source.
func (s *Service) Rows(source string, items []string) []ItemRow {
	scannedAt := s.Now().Format(ScannedAtLayout)

	rows := make([]ItemRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, ItemRow{
			Item:      item,
			Label:     s.Label,
			Source:    source,
			ScannedAt: scannedAt,
		})
	}
	return rows
}

func (r ItemRow) values() []interface{} {
	return []interface{}{r.Item, r.Label, r.Source, r.ScannedAt}
}

// WriteItems appends the items of one scan to worksheet, creating the
// worksheet and its header row first if needed.
func (s *Service) WriteItems(ctx context.Context, worksheet, source string, items []string) error {
	const op = "WriteItems"

	if len(items) == 0 {
		s.log.Info().Str("sheet", worksheet).Msg("No items to export")
		return nil
	}

	s.log.Info().
		Str("sheet", worksheet).
		Int("rows", len(items)).
		Msg("Writing items to Google Sheet")

	if err := s.ensureSheetWithHeaders(ctx, worksheet); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	var values [][]interface{}
	for _, row := range s.Rows(source, items) {
		values = append(values, row.values())
	}

	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		sheetRange(worksheet, "A:"+lastColumn),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	s.log.Info().
		Int("rows_written", len(values)).
		Msg("Successfully wrote items to Google Sheet")

	return nil
}

func (s *Service) ensureSheetWithHeaders(ctx context.Context, worksheet string) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var sheetID int64
	found := false
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == worksheet {
			sheetID = sheet.Properties.SheetId
			found = true
			break
		}
	}

	if !found {
		s.log.Info().Str("sheet", worksheet).Msg("Creating new sheet")

		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: worksheet}}},
			},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
			sheetID = resp.Replies[0].AddSheet.Properties.SheetId
		}
	}

	headerRange := sheetRange(worksheet, "A1:"+lastColumn+"1")
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	s.log.Info().Str("sheet", worksheet).Msg("Adding headers to sheet")

	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{Headers}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	if err := s.formatHeaders(ctx, sheetID); err != nil {
		s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders makes the header row bold and sizes the columns.
func (s *Service) formatHeaders(ctx context.Context, sheetID int64) error {
	const op = "formatHeaders"

	columns := int64(len(Headers))
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		},
	}

	_, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}
