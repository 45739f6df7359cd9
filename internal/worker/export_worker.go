// Package worker turns period-closed events into report exports.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"messbook/internal/amqp"
	"messbook/internal/core"
	"messbook/internal/export"
	applog "messbook/internal/log"
	"messbook/internal/services"
)

// ExportWorker builds the report for a closed period and hands it to
// the configured destination.
type ExportWorker struct {
	reports *services.ReportService
	writer  export.ReportWriter
}

func NewExportWorker(reports *services.ReportService, writer export.ReportWriter) *ExportWorker {
	return &ExportWorker{
		reports: reports,
		writer:  writer,
	}
}

// HandlePeriodClosed processes one period-closed message. Unknown
// period ids are dropped rather than requeued; they will never resolve.
func (w *ExportWorker) HandlePeriodClosed(ctx context.Context, msg *amqp.PeriodClosedMessage) error {
	slog.InfoContext(ctx, "Processing period closed message",
		"period_id", msg.PeriodID,
		"period_name", msg.PeriodName)

	report, err := w.reports.Archived(ctx, msg.PeriodID)
	if errors.Is(err, core.ErrPeriodNotFound) {
		slog.WarnContext(ctx, "Dropping message for unknown period", "period_id", msg.PeriodID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("build report for period %d: %w", msg.PeriodID, err)
	}

	return w.exportReport(ctx, report)
}

// ExportLatest exports the most recently archived period, if any.
// Called at startup to recover from messages missed while the worker
// was down.
func (w *ExportWorker) ExportLatest(ctx context.Context) error {
	periods, err := w.reports.Periods(ctx)
	if err != nil {
		return fmt.Errorf("list periods: %w", err)
	}
	if len(periods) == 0 {
		slog.InfoContext(ctx, "No archived periods to export on startup")
		return nil
	}

	latest := periods[0]
	report, err := w.reports.Archived(ctx, latest.ID)
	if err != nil {
		return fmt.Errorf("build report for period %d: %w", latest.ID, err)
	}
	return w.exportReport(ctx, report)
}

func (w *ExportWorker) exportReport(ctx context.Context, report *core.Report) error {
	fields := applog.NewFields().
		WithOperation(applog.OpExport).
		WithPeriod(report.PeriodID, report.PeriodName)

	ref, err := w.writer.WriteReport(ctx, report)
	if err != nil {
		slog.ErrorContext(ctx, "Report export failed", fields.WithError(err).ToSlice()...)
		return fmt.Errorf("write report %q: %w", report.PeriodName, err)
	}

	fields[applog.FieldSheetsRef] = ref
	slog.InfoContext(ctx, "Exported period report", fields.ToSlice()...)
	return nil
}
