// Package google exports reports to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"messbook/internal/core"
	"messbook/internal/export"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	summarySheet  string
	membersSheet  string
}

var _ export.ReportWriter = (*Client)(nil)

// New creates a Sheets client using service account credentials from
// the environment (GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS).
func New(ctx context.Context, spreadsheetID, summarySheet, membersSheet string) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		summarySheet:  summarySheet,
		membersSheet:  membersSheet,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var (
		credentialsJSON []byte
		err             error
	)
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

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// WriteReport replaces the summary and members sheets with the report's
// content. Each closed period overwrites the previous export; history
// lives in the database, not the spreadsheet.
func (c *Client) WriteReport(ctx context.Context, r *core.Report) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	if err := c.writeRange(ctx, c.summarySheet, summaryRows(r)); err != nil {
		return "", err
	}
	members := memberRows(r)
	if err := c.writeRange(ctx, c.membersSheet, members); err != nil {
		return "", err
	}

	ref := fmt.Sprintf("%s!A1:H%d", c.membersSheet, len(members))
	slog.InfoContext(ctx, "Exported report to Google Sheets",
		"period_id", r.PeriodID,
		"period_name", r.PeriodName,
		"sheets_ref", ref)
	return ref, nil
}

func (c *Client) writeRange(ctx context.Context, sheet string, rows [][]any) error {
	clearRange := fmt.Sprintf("%s!A:Z", sheet)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", sheet, err)
	}

	dataRange := fmt.Sprintf("%s!A1", sheet)
	vr := &gsheet.ValueRange{Values: rows}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update sheet %s: %w", sheet, err)
	}
	return nil
}

func summaryRows(r *core.Report) [][]any {
	rows := [][]any{
		{"period", r.PeriodName},
		{"generated at", r.GeneratedAt.Format(time.RFC3339)},
	}
	for _, s := range r.Summary {
		rows = append(rows, []any{s.Label, s.Amount.InexactFloat64()})
	}
	return rows
}

func memberRows(r *core.Report) [][]any {
	rows := [][]any{{
		"name", "rank", "contribution", "meal cost", "drink cost",
		"misc distributed", "total consumption", "final balance",
	}}
	for _, m := range r.Members {
		rows = append(rows, financialRow(m))
	}
	rows = append(rows, financialRow(r.Totals))
	return rows
}

func financialRow(m core.MemberFinancial) []any {
	return []any{
		m.Name,
		m.Rank,
		m.Contribution.InexactFloat64(),
		m.MealCost.InexactFloat64(),
		m.DrinkCost.InexactFloat64(),
		m.MiscDistributed.InexactFloat64(),
		m.TotalConsumption.InexactFloat64(),
		m.FinalBalance.InexactFloat64(),
	}
}
