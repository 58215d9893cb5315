package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"geekbudget/internal/aggregation"
	"geekbudget/internal/budget"
	"geekbudget/internal/log"
	ports "geekbudget/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const backgroundFields = "userEnteredFormat.backgroundColor"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	matrixSheet   string
	tablesSheet   string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.Exporter = (*Client)(nil)

type Options struct {
	SpreadsheetID      string
	ServiceAccountFile string
	ServiceAccountJSON string
	// MatrixSheet defaults to "Budget", TablesSheet to "Expenses".
	MatrixSheet string
	TablesSheet string
}

// New creates a Sheets client authenticated with service account credentials.
// GOOGLE_APPLICATION_CREDENTIALS is used when opts carries none.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	matrixSheet := strings.TrimSpace(opts.MatrixSheet)
	if matrixSheet == "" {
		matrixSheet = "Budget"
	}
	tablesSheet := strings.TrimSpace(opts.TablesSheet)
	if tablesSheet == "" {
		tablesSheet = "Expenses"
	}

	svc, err := newSheetsService(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		matrixSheet:   matrixSheet,
		tablesSheet:   tablesSheet,
		logger:        logger,
	}, nil
}

func credentialsJSON(opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.ServiceAccountJSON)
	file := strings.TrimSpace(opts.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func newSheetsService(ctx context.Context, opts Options, logger *log.Logger) (*gsheet.Service, error) {
	creds, err := credentialsJSON(opts)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(creds), "scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// WriteMatrix replaces the matrix sheet contents.
func (c *Client) WriteMatrix(ctx context.Context, m budget.Matrix) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	return c.replace(ctx, c.matrixSheet, matrixValues(m), nil)
}

// WriteTables replaces the tables sheet contents and paints the heat colours.
func (c *Client) WriteTables(ctx context.Context, tables []aggregation.Table) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	values, fills := tableLayout(tables)
	return c.replace(ctx, c.tablesSheet, values, fills)
}

func (c *Client) replace(ctx context.Context, sheet string, values [][]any, fills []fill) error {
	sheetID, err := c.ensureSheet(ctx, sheet)
	if err != nil {
		return err
	}

	rng := sheetRange(sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	if len(values) > 0 {
		vr := &gsheet.ValueRange{Values: values}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, sheetRange(sheet)+"!A1", vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
	}

	if fills != nil {
		req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: fillRequests(sheetID, fills)}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("format %s: %w", rng, err)
		}
	}

	c.logger.InfoContext(ctx, "Sheet exported",
		log.FieldSpreadsheetID, c.spreadsheetID, log.FieldRange, rng, log.FieldRows, len(values))
	return nil
}

// ensureSheet returns the id of the named sheet, adding it when missing.
func (c *Client) ensureSheet(ctx context.Context, title string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add sheet %s: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add sheet %s: empty reply", title)
	}
	c.logger.InfoContext(ctx, "Sheet created", log.FieldSpreadsheetID, c.spreadsheetID, "sheet", title)
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func sheetRange(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}
