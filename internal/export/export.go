// Package export copies camp registrations to Google Sheets.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/sundaybot/internal/catalog"
	"github.com/ashureev/sundaybot/internal/domain"
)

const (
	timestampLayout   = "2006-01-02 15:04:05"
	defaultSheetRange = "Sheet1"
)

// ErrUnknownEvent is returned for an event missing from the catalog.
var ErrUnknownEvent = errors.New("unknown event")

// Header is the first row of every export, in column order.
var Header = []string{
	"Timestamp", "FirstName", "LastName", "DateOfBirth", "Age", "Gender", "ID/Passport", "Phone",
	"SalvationStatus", "Dependents", "Volunteering", "VolunteerDepartment", "IsWorker", "WorkerType",
	"TransportAssistance", "NextOfKinName", "NextOfKinPhone", "CampStay",
}

// Lister reads every registration for an event.
type Lister interface {
	ListRegistrations(ctx context.Context, event domain.EventType) ([]*domain.Registration, error)
}

// Sheet replaces the contents of a spreadsheet range.
type Sheet interface {
	Replace(ctx context.Context, spreadsheetID, sheetRange string, rows [][]any) error
}

// Exporter writes an event's registrations to the spreadsheet named in the catalog.
type Exporter struct {
	regs   Lister
	sheet  Sheet
	cat    *catalog.Catalog
	logger *slog.Logger
}

// New returns an Exporter.
func New(regs Lister, sheet Sheet, cat *catalog.Catalog, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{regs: regs, sheet: sheet, cat: cat, logger: logger.With("component", "export")}
}

// Export overwrites the event's sheet and returns a report for the admin.
// Expected conditions such as an empty event or a missing sheet id are
// reported in the text with a nil error.
func (x *Exporter) Export(ctx context.Context, event domain.EventType) (string, error) {
	ev, ok := x.cat.Event(event)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
	if ev.SpreadsheetID == "" {
		return fmt.Sprintf("Error: no spreadsheet is configured for the *%s*.", ev.Name), nil
	}

	regs, err := x.regs.ListRegistrations(ctx, event)
	if err != nil {
		return "", fmt.Errorf("list registrations: %w", err)
	}
	if len(regs) == 0 {
		return "No registrations found in the database to export.", nil
	}

	sheetRange := ev.SheetRange
	if sheetRange == "" {
		sheetRange = defaultSheetRange
	}

	start := time.Now()
	if err := x.sheet.Replace(ctx, ev.SpreadsheetID, sheetRange, Rows(regs)); err != nil {
		return "", fmt.Errorf("write sheet: %w", err)
	}
	x.logger.Info("Registrations exported", "event", event, "rows", len(regs), "duration", time.Since(start))

	return fmt.Sprintf("✅ Success! Exported %d registrations to '%s'.", len(regs), ev.Name), nil
}

// Rows renders the header followed by one row per registration.
func Rows(regs []*domain.Registration) [][]any {
	rows := make([][]any, 0, len(regs)+1)

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	rows = append(rows, header)

	for _, r := range regs {
		rows = append(rows, row(r))
	}
	return rows
}

func row(r *domain.Registration) []any {
	d := r.Data
	ts := ""
	if !r.CreatedAt.IsZero() {
		ts = r.CreatedAt.UTC().Format(timestampLayout)
	}
	return []any{
		ts, d.FirstName, d.LastName, d.DOB, d.Age, d.Gender, d.IDPassport, d.Phone,
		d.SalvationStatus, d.Dependents, d.VolunteerStatus, d.VolunteerDepartment, d.IsWorker, d.WorkerType,
		d.TransportAssistance, d.NOKName, d.NOKPhone, campStay(d),
	}
}

func campStay(d domain.RegistrationData) string {
	return strings.TrimSpace(d.CampStart + " to " + d.CampEnd)
}
