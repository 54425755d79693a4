// Package google writes workbooks into the tabs of a Google spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledger/internal/log"
	ports "ledger/internal/sheets"
)

var _ ports.WorkbookWriter = (*Writer)(nil)

var ErrMissingSpreadsheetID = errors.New("missing spreadsheet id")

// Pixels per character of column width, matching the Sheets default font.
const pixelsPerChar = 7

type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Writer replaces the contents of one tab per workbook sheet. Missing tabs
// are created; other tabs of the spreadsheet are left alone.
type Writer struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

// New creates a Writer authenticated with a service account.
func New(ctx context.Context, config Config, logger *log.Logger) (*Writer, error) {
	if strings.TrimSpace(config.SpreadsheetID) == "" {
		return nil, ErrMissingSpreadsheetID
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, config.SpreadsheetID, logger), nil
}

// NewWithService creates a Writer over an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID string, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Writer{svc: svc, spreadsheetID: spreadsheetID, logger: logger}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither inline JSON nor a file is configured.
func newSheetsService(ctx context.Context, config Config, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(config.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(config.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	logger.DebugContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and timeouts. Used for unauthenticated endpoints such as
// a local emulator.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// NewForEndpoint creates a Writer against a Sheets-compatible endpoint
// without authentication.
func NewForEndpoint(ctx context.Context, endpoint, spreadsheetID string, logger *log.Logger) (*Writer, error) {
	svc, err := gsheet.NewService(ctx,
		goption.WithEndpoint(endpoint),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, logger), nil
}

// WriteWorkbook clears and rewrites the tab of every sheet in wb and returns
// the spreadsheet URL.
func (w *Writer) WriteWorkbook(ctx context.Context, wb ports.Workbook) (string, error) {
	if w.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(wb.Sheets) == 0 {
		return "", errors.New("workbook has no sheets")
	}

	ids, err := w.ensureTabs(ctx, wb.Sheets)
	if err != nil {
		return "", err
	}

	ranges := make([]string, len(wb.Sheets))
	data := make([]*gsheet.ValueRange, len(wb.Sheets))
	for i, s := range wb.Sheets {
		ranges[i] = quoteTitle(s.Title)
		data[i] = &gsheet.ValueRange{Range: quoteTitle(s.Title) + "!A1", Values: s.Values()}
	}

	if _, err := w.svc.Spreadsheets.Values.BatchClear(w.spreadsheetID, &gsheet.BatchClearValuesRequest{Ranges: ranges}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear tabs: %w", err)
	}
	if _, err := w.svc.Spreadsheets.Values.BatchUpdate(w.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("write tabs: %w", err)
	}

	if reqs := widthRequests(wb.Sheets, ids); len(reqs) > 0 {
		if _, err := w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
			Context(ctx).Do(); err != nil {
			// Widths are cosmetic; the values are already written.
			w.logger.WarnContext(ctx, "Failed to set column widths", log.FieldError, err)
		}
	}

	w.logger.InfoContext(ctx, "Workbook written to spreadsheet",
		"workbook", wb.Name,
		"sheets", len(wb.Sheets))

	return "https://docs.google.com/spreadsheets/d/" + w.spreadsheetID, nil
}

// ensureTabs adds the tabs that do not exist yet and returns the sheet id of
// every title.
func (w *Writer) ensureTabs(ctx context.Context, sheets []ports.Sheet) (map[string]int64, error) {
	ss, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet: %w", err)
	}

	ids := make(map[string]int64, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			ids[s.Properties.Title] = s.Properties.SheetId
		}
	}

	var add []*gsheet.Request
	for _, s := range sheets {
		if _, ok := ids[s.Title]; !ok {
			add = append(add, &gsheet.Request{AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: s.Title},
			}})
		}
	}
	if len(add) == 0 {
		return ids, nil
	}

	resp, err := w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: add}).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("add tabs: %w", err)
	}
	for _, r := range resp.Replies {
		if r.AddSheet != nil && r.AddSheet.Properties != nil {
			ids[r.AddSheet.Properties.Title] = r.AddSheet.Properties.SheetId
		}
	}
	return ids, nil
}

func widthRequests(sheets []ports.Sheet, ids map[string]int64) []*gsheet.Request {
	var reqs []*gsheet.Request
	for _, s := range sheets {
		id, ok := ids[s.Title]
		if !ok {
			continue
		}
		for i, width := range s.ColumnWidths {
			reqs = append(reqs, &gsheet.Request{UpdateDimensionProperties: &gsheet.UpdateDimensionPropertiesRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         id,
					Dimension:       "COLUMNS",
					StartIndex:      int64(i),
					EndIndex:        int64(i + 1),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
				Properties: &gsheet.DimensionProperties{PixelSize: int64(width * pixelsPerChar)},
				Fields:     "pixelSize",
			}})
		}
	}
	return reqs
}

// quoteTitle quotes a tab title for A1 notation.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
