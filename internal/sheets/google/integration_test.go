//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"retromoney/internal/core"
	"retromoney/internal/log"
)

// Integration tests require a real spreadsheet and service account.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_ExportReport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	cfg := Config{
		SpreadsheetID:      os.Getenv("GOOGLE_SPREADSHEET_ID"),
		Sheet:              os.Getenv("GOOGLE_REPORT_SHEET"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	if cfg.SpreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := New(ctx, cfg, log.Discard())
	require.NoError(t, err)

	month := core.Month("1999-01")
	r := report(month, "Integration A", "Integration B")
	require.NoError(t, client.ExportReport(ctx, r))
	// A second export must land on the same rows.
	require.NoError(t, client.ExportReport(ctx, r))
}
