// Package export defines the outbound port for report destinations.
package export

import (
	"context"

	"messbook/internal/core"
)

// ReportWriter delivers a finished report to a destination. The
// returned ref identifies where the report landed, in a form the
// adapter chooses.
type ReportWriter interface {
	WriteReport(ctx context.Context, r *core.Report) (ref string, err error)
}
