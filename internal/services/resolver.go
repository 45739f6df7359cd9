package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"messbook/internal/core"
)

// PeriodResolver maps the earliest unarchived transaction date to
// exactly one archive period, creating one when no period covers it.
type PeriodResolver struct {
	clock core.Clock
}

func NewPeriodResolver(clock core.Clock) *PeriodResolver {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &PeriodResolver{clock: clock}
}

// Resolve finds the period covering earliest. An open period is closed
// with today's date and stamped; a period already closed is reused as
// is, so repeated calls on an unchanged store return the same period.
func (r *PeriodResolver) Resolve(ctx context.Context, store PeriodStore, earliest core.Date) (core.ArchivePeriod, error) {
	now := r.clock.Now()
	today := core.DateOf(now)

	p, err := store.FindPeriodContaining(ctx, earliest)
	switch {
	case err == nil:
		if p.Open() {
			if err := store.ClosePeriod(ctx, p.ID, today, now); err != nil {
				return core.ArchivePeriod{}, fmt.Errorf("close period %d: %w", p.ID, err)
			}
			p.End = today
			p.ArchivedAt = now
		}
		slog.DebugContext(ctx, "Reusing archive period",
			"period_id", p.ID, "name", p.Name)
		return p, nil

	case errors.Is(err, core.ErrPeriodNotFound):
		p = core.ArchivePeriod{
			Name:       fmt.Sprintf("%s_to_%s", earliest, today),
			Start:      earliest,
			End:        today,
			ArchivedAt: now,
		}
		id, err := store.CreatePeriod(ctx, p)
		if err != nil {
			return core.ArchivePeriod{}, fmt.Errorf("create period: %w", err)
		}
		p.ID = id
		slog.InfoContext(ctx, "Created archive period",
			"period_id", p.ID, "name", p.Name)
		return p, nil

	default:
		return core.ArchivePeriod{}, fmt.Errorf("find period for %s: %w", earliest, err)
	}
}
