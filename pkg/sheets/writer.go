// Package sheets implements the destination writer on top of the Google
// Sheets v4 API: create-if-absent, full clear, batched write, best-effort
// header styling.
package sheets

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/wedof-tools/sheetsync/pkg/clients"
	"github.com/wedof-tools/sheetsync/pkg/errors"
	"github.com/wedof-tools/sheetsync/pkg/normalize"
)

// WriterConfig configures the destination writer.
type WriterConfig struct {
	// SpreadsheetID identifies the destination spreadsheet
	SpreadsheetID string
	// CredentialsPath points at a service account JSON file; ignored when
	// explicit client options are passed (tests)
	CredentialsPath string
	// MaxCellsPerBatch caps the cells sent in a single values.update call
	MaxCellsPerBatch int
	// QuotaRetryAttempts caps retries of destination quota errors
	QuotaRetryAttempts int
}

// Writer replaces destination sheet contents with normalized tables.
//
// A replacement is clear-then-write: two remote calls treated as one logical
// transaction with no rollback available. A failure between the clear and
// the write leaves the sheet empty until the next successful run; callers
// retry from a clean clear, never patch.
type Writer struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	maxCells      int
	quotaRetry    *clients.RetryPolicy
	logger        *zap.Logger

	sheetIDs map[string]int64
}

// NewWriter creates a writer authenticated with the configured service
// account. Tests inject option.WithEndpoint / option.WithoutAuthentication /
// option.WithHTTPClient instead.
func NewWriter(ctx context.Context, cfg WriterConfig, logger *zap.Logger, opts ...option.ClientOption) (*Writer, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "spreadsheet ID is required")
	}

	if len(opts) == 0 {
		if cfg.CredentialsPath == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "service account credentials path is required")
		}
		data, err := os.ReadFile(cfg.CredentialsPath) //nolint:gosec // G304: path is operator-supplied
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read credentials file")
		}
		creds, err := google.CredentialsFromJSON(ctx, data, sheetsapi.SpreadsheetsScope)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse service account credentials")
		}
		opts = []option.ClientOption{option.WithTokenSource(creds.TokenSource)}
	}

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to build sheets service")
	}

	maxCells := cfg.MaxCellsPerBatch
	if maxCells <= 0 {
		maxCells = 40000
	}
	quotaAttempts := cfg.QuotaRetryAttempts
	if quotaAttempts <= 0 {
		quotaAttempts = 3
	}

	return &Writer{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		maxCells:      maxCells,
		quotaRetry:    clients.DefaultRetryPolicy().WithMaxAttempts(quotaAttempts),
		logger:        logger.With(zap.String("component", "sheets_writer")),
		sheetIDs:      make(map[string]int64),
	}, nil
}

// Replace rewrites the named sheet with the table: ensure the sheet exists,
// clear it fully, write header plus rows in batches, then style the header
// as a best-effort visual aid.
func (w *Writer) Replace(ctx context.Context, sheetName string, table *normalize.Table) error {
	sheetID, err := w.ensureSheet(ctx, sheetName)
	if err != nil {
		return err
	}

	if err := w.clear(ctx, sheetName); err != nil {
		return err
	}

	if err := w.write(ctx, sheetName, table); err != nil {
		return err
	}

	// Styling failures never fail the replacement.
	if err := w.formatHeader(ctx, sheetID); err != nil {
		w.logger.Warn("header formatting failed",
			zap.String("sheet", sheetName),
			zap.Error(err))
	}

	w.logger.Info("sheet replaced",
		zap.String("sheet", sheetName),
		zap.Int("rows", table.RowCount()),
		zap.Int("columns", len(table.Header)))
	return nil
}

// Ping verifies the spreadsheet is reachable without mutating it.
func (w *Writer) Ping(ctx context.Context) error {
	err := w.withQuotaRetry(ctx, func() error {
		_, gerr := w.svc.Spreadsheets.Get(w.spreadsheetID).
			Fields("spreadsheetId").Context(ctx).Do()
		return classify(gerr)
	})
	if err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "spreadsheet unreachable")
	}
	return nil
}

// SpreadsheetURL returns the browser URL of the destination spreadsheet.
func (w *Writer) SpreadsheetURL() string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit", w.spreadsheetID)
}

// ensureSheet returns the sheet ID for the title, creating the sheet if the
// spreadsheet does not contain it yet.
func (w *Writer) ensureSheet(ctx context.Context, sheetName string) (int64, error) {
	if id, ok := w.sheetIDs[sheetName]; ok {
		return id, nil
	}

	var spreadsheet *sheetsapi.Spreadsheet
	err := w.withQuotaRetry(ctx, func() error {
		var gerr error
		spreadsheet, gerr = w.svc.Spreadsheets.Get(w.spreadsheetID).
			Fields("sheets.properties").Context(ctx).Do()
		return classify(gerr)
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.TypeOf(err), "failed to list sheets")
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil {
			w.sheetIDs[sheet.Properties.Title] = sheet.Properties.SheetId
		}
	}
	if id, ok := w.sheetIDs[sheetName]; ok {
		return id, nil
	}

	var resp *sheetsapi.BatchUpdateSpreadsheetResponse
	err = w.withQuotaRetry(ctx, func() error {
		var gerr error
		resp, gerr = w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
			Requests: []*sheetsapi.Request{{
				AddSheet: &sheetsapi.AddSheetRequest{
					Properties: &sheetsapi.SheetProperties{Title: sheetName},
				},
			}},
		}).Context(ctx).Do()
		return classify(gerr)
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.TypeOf(err),
			fmt.Sprintf("failed to create sheet %q", sheetName))
	}

	var id int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		id = resp.Replies[0].AddSheet.Properties.SheetId
	}
	w.sheetIDs[sheetName] = id
	w.logger.Info("sheet created", zap.String("sheet", sheetName))
	return id, nil
}

// clear empties the sheet's full content range.
func (w *Writer) clear(ctx context.Context, sheetName string) error {
	err := w.withQuotaRetry(ctx, func() error {
		_, gerr := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID,
			rangeRef(sheetName, "A:ZZ"), &sheetsapi.ClearValuesRequest{}).
			Context(ctx).Do()
		return classify(gerr)
	})
	if err != nil {
		return errors.Wrap(err, errors.TypeOf(err),
			fmt.Sprintf("failed to clear sheet %q", sheetName))
	}
	return nil
}

// write sends the header and rows, split into sequential batches capped at
// maxCells cells each, all logically part of the same replacement.
func (w *Writer) write(ctx context.Context, sheetName string, table *normalize.Table) error {
	values := table.Values()

	rowsPerBatch := 1
	if cols := len(table.Header); cols > 0 {
		rowsPerBatch = w.maxCells / cols
		if rowsPerBatch < 1 {
			rowsPerBatch = 1
		}
	}

	startRow := 1
	for len(values) > 0 {
		n := rowsPerBatch
		if n > len(values) {
			n = len(values)
		}
		batch := values[:n]
		values = values[n:]

		err := w.withQuotaRetry(ctx, func() error {
			_, gerr := w.svc.Spreadsheets.Values.Update(w.spreadsheetID,
				rangeRef(sheetName, fmt.Sprintf("A%d", startRow)),
				&sheetsapi.ValueRange{Values: batch}).
				ValueInputOption("RAW").Context(ctx).Do()
			return classify(gerr)
		})
		if err != nil {
			return errors.Wrap(err, errors.TypeOf(err),
				fmt.Sprintf("failed to write sheet %q at row %d", sheetName, startRow))
		}

		startRow += n
	}

	return nil
}

// formatHeader styles the first row bold on a grey background.
func (w *Writer) formatHeader(ctx context.Context, sheetID int64) error {
	_, err := w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			RepeatCell: &sheetsapi.RepeatCellRequest{
				Range: &sheetsapi.GridRange{
					SheetId:       sheetID,
					StartRowIndex: 0,
					EndRowIndex:   1,
				},
				Cell: &sheetsapi.CellData{
					UserEnteredFormat: &sheetsapi.CellFormat{
						TextFormat: &sheetsapi.TextFormat{Bold: true},
						BackgroundColor: &sheetsapi.Color{
							Red: 0.9, Green: 0.9, Blue: 0.9,
						},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		}},
	}).Context(ctx).Do()
	return classify(err)
}

// withQuotaRetry retries fn only for destination quota errors; permission
// and auth errors surface immediately since retrying cannot succeed.
func (w *Writer) withQuotaRetry(ctx context.Context, fn func() error) error {
	return w.quotaRetry.ExecuteWithCondition(ctx, fn, func(err error) bool {
		return errors.IsType(err, errors.ErrorTypeQuota)
	})
}

// classify maps a Sheets API error onto the sync error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if stderrors.As(err, &gerr) {
		switch {
		case gerr.Code == 429:
			return errors.Wrap(err, errors.ErrorTypeQuota, "destination quota exceeded")
		case gerr.Code == 403 && strings.Contains(strings.ToLower(gerr.Message), "quota"):
			return errors.Wrap(err, errors.ErrorTypeQuota, "destination quota exceeded")
		case gerr.Code == 401 || gerr.Code == 403:
			return errors.Wrap(err, errors.ErrorTypePermission, "destination rejected credentials")
		case gerr.Code == 404:
			return errors.Wrap(err, errors.ErrorTypeNotFound, "spreadsheet not found")
		default:
			return errors.Wrap(err, errors.ErrorTypeConnection,
				fmt.Sprintf("destination request failed (status %d)", gerr.Code))
		}
	}

	return errors.Wrap(err, errors.ErrorTypeConnection, "destination request failed")
}

// rangeRef builds an A1 range reference, quoting the sheet title.
func rangeRef(sheetName, ref string) string {
	escaped := strings.ReplaceAll(sheetName, "'", "''")
	return fmt.Sprintf("'%s'!%s", escaped, ref)
}
