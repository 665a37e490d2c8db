package export

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsWriter writes rows through the Sheets v4 API.
type SheetsWriter struct {
	svc *sheets.Service
}

// CredentialsOption accepts a service account key as inline JSON or as a
// file path.
func CredentialsOption(creds string) option.ClientOption {
	creds = strings.TrimSpace(creds)
	if strings.HasPrefix(creds, "{") {
		return option.WithCredentialsJSON([]byte(creds))
	}
	return option.WithCredentialsFile(creds)
}

// NewSheetsWriter builds a writer scoped to spreadsheets.
func NewSheetsWriter(ctx context.Context, opts ...option.ClientOption) (*SheetsWriter, error) {
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsWriter{svc: svc}, nil
}

// Replace clears sheetRange, then writes rows from its top-left cell.
func (w *SheetsWriter) Replace(ctx context.Context, spreadsheetID, sheetRange string, rows [][]any) error {
	_, err := w.svc.Spreadsheets.Values.Clear(spreadsheetID, sheetRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", sheetRange, err)
	}

	_, err = w.svc.Spreadsheets.Values.Update(spreadsheetID, sheetRange, &sheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", sheetRange, err)
	}
	return nil
}
