package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"finbot/internal/core"
	"finbot/internal/log"
	ports "finbot/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ensure interface conformance
var (
	_ ports.Source = (*Client)(nil)
	_ ports.Sink   = (*Client)(nil)
)

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client reads and writes the transaction sheet through the Sheets API. Row 1
// holds the column headers; every following row is one transaction.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// New creates a Sheets client using service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Nop()
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Transactions"
	}

	if len(opts) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (c *Client) fullRange() string {
	return fmt.Sprintf("%s!A:I", c.sheetName)
}

func (c *Client) readAll(ctx context.Context) ([][]any, error) {
	rng := c.fullRange()
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// Fetch returns every well-formed row. Malformed rows are dropped and logged.
func (c *Client) Fetch(ctx context.Context) ([]core.Transaction, error) {
	values, err := c.readAll(ctx)
	if err != nil {
		return nil, err
	}
	txs, errs := ports.CoerceAll(rowsToRecords(values))
	for _, e := range errs {
		c.logger.WarnContext(ctx, "Dropping malformed sheet row", log.FieldError, e)
	}
	return txs, nil
}

// Send applies one mutation. ADD appends a row, UPDATE rewrites the row with
// the same id (appending when absent) and DELETE removes it.
func (c *Client) Send(ctx context.Context, action ports.Action, tx core.Transaction) error {
	switch action {
	case ports.ActionAdd:
		return c.appendRow(ctx, tx)
	case ports.ActionUpdate, ports.ActionDelete:
	default:
		return fmt.Errorf("unsupported action %q", action)
	}

	values, err := c.readAll(ctx)
	if err != nil {
		return err
	}
	row := findRow(values, tx.ID)
	if row < 0 {
		if action == ports.ActionDelete {
			return nil
		}
		return c.appendRow(ctx, tx)
	}

	if action == ports.ActionUpdate {
		rng := fmt.Sprintf("%s!A%d:I%d", c.sheetName, row+1, row+1)
		vr := &gsheet.ValueRange{Values: [][]any{txToRow(tx)}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}
	return c.deleteRow(ctx, row)
}

func (c *Client) appendRow(ctx context.Context, tx core.Transaction) error {
	vr := &gsheet.ValueRange{Values: [][]any{txToRow(tx)}}
	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.fullRange(), vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append to %s: %w", c.sheetName, err)
	}
	return nil
}

func (c *Client) deleteRow(ctx context.Context, row int) error {
	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row),
					EndIndex:   int64(row + 1),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d: %w", row+1, err)
	}
	return nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && strings.EqualFold(sh.Properties.Title, c.sheetName) {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheetName)
}
