//go:build integration

package google

import (
	"context"
	"os"
	"testing"

	ports "ledger/internal/sheets"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_WriteWorkbook(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	cfg := Config{
		SpreadsheetID:      spreadsheetID,
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	if cfg.ServiceAccountJSON == "" && cfg.ServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx := context.Background()
	w, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	wb := ports.Workbook{
		Name: "integration.xlsx",
		Sheets: []ports.Sheet{{
			Title:  "ledger-integration",
			Header: []string{"Date", "Amount"},
			Rows:   [][]any{{"2025-01-01", 1.5}},
		}},
	}
	ref, err := w.WriteWorkbook(ctx, wb)
	if err != nil {
		t.Fatalf("WriteWorkbook() error = %v", err)
	}
	t.Logf("Workbook written to %s", ref)

	// A second write replaces the tab contents instead of appending.
	if _, err := w.WriteWorkbook(ctx, wb); err != nil {
		t.Fatalf("second WriteWorkbook() error = %v", err)
	}
	resp, err := w.svc.Spreadsheets.Values.Get(spreadsheetID, quoteTitle("ledger-integration")).Context(ctx).Do()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(resp.Values) != 2 {
		t.Errorf("read back %d rows, want 2", len(resp.Values))
	}
}
