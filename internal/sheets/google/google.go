package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"retromoney/internal/core"
	"retromoney/internal/log"
	ports "retromoney/internal/sheets"
)

// Ensure interface conformance
var _ ports.ReportWriter = (*Client)(nil)

const DefaultSheet = "Budget"

type Config struct {
	SpreadsheetID      string
	Sheet              string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger
}

// New creates a Sheets client authenticated with a service account.
// Options, when given, replace the credentials so tests can point the client
// at a fake endpoint.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

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

	sheet := strings.TrimSpace(cfg.Sheet)
	if sheet == "" {
		sheet = DefaultSheet
	}
	logger.InfoContext(ctx, "Google Sheets client ready", "sheet", sheet)
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheet: sheet, logger: logger}, nil
}

// credentials reads service account JSON from the inline value, the file,
// or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func credentials(cfg Config) ([]byte, error) {
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline := strings.TrimSpace(cfg.ServiceAccountJSON); inline != "" {
		return []byte(inline), nil
	}
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// ExportReport writes the month's rows. Rows already present for the month
// are overwritten in place when the block has the same size; otherwise the
// old block is cleared and the rows are written after the last used row.
func (c *Client) ExportReport(ctx context.Context, report core.BudgetReport) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rows := ports.Rows(report)
	if len(rows) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A:A", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read column A of %s: %w", c.sheet, err)
	}
	col := toStrings(resp.Values)

	if len(col) == 0 {
		if err := c.write(ctx, 1, [][]any{ports.Header}); err != nil {
			return err
		}
		col = []string{"Month"}
	}

	first, count := findBlock(col, string(report.Month))
	start := len(col) + 1
	switch {
	case count == len(rows):
		start = first
	case count > 0:
		stale := fmt.Sprintf("%s!A%d:G%d", c.sheet, first, first+count-1)
		if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, stale, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do(); err != nil {
			return fmt.Errorf("clear %s: %w", stale, err)
		}
	}

	if err := c.write(ctx, start, rows); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Report exported",
		log.FieldMonth, report.Month,
		"sheet", c.sheet,
		"first_row", start,
		"rows", len(rows))
	return nil
}

func (c *Client) write(ctx context.Context, start int, rows [][]any) error {
	rng := fmt.Sprintf("%s!A%d:G%d", c.sheet, start, start+len(rows)-1)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// findBlock returns the 1-based first row holding month and how many
// consecutive rows follow it.
func findBlock(col []string, month string) (first, count int) {
	for i, v := range col {
		if v != month {
			if count > 0 {
				break
			}
			continue
		}
		if count == 0 {
			first = i + 1
		}
		count++
	}
	return first, count
}

func toStrings(values [][]interface{}) []string {
	out := make([]string, len(values))
	for i, row := range values {
		if len(row) > 0 {
			out[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return out
}
