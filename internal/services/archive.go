package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"messbook/internal/allocation"
	"messbook/internal/core"
)

// EventPublisher notifies downstream consumers that a period was
// closed. Publishing failures never fail the close itself.
type EventPublisher interface {
	PublishPeriodClosed(ctx context.Context, periodID int64, periodName string) error
}

// ArchiveService is the archival coordinator: it runs miscellaneous
// distribution and period close as single atomic batches against the
// store. Runs are serialized internally; the ledger has one writer.
type ArchiveService struct {
	store    Store
	reports  *ReportService
	resolver *PeriodResolver
	clock    core.Clock
	events   EventPublisher

	mu sync.Mutex
}

func NewArchiveService(store Store, reports *ReportService, clock core.Clock, events EventPublisher) *ArchiveService {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &ArchiveService{
		store:    store,
		reports:  reports,
		resolver: NewPeriodResolver(clock),
		clock:    clock,
		events:   events,
	}
}

// DistributeMiscellaneous pro-rates the pooled overhead purchases over
// members by meal count, archives the resulting contribution rows and
// the consumed overhead items, and returns the period they were filed
// under. With no overhead items pending this is a hard failure
// (core.ErrNothingToDistribute); nothing is written.
func (s *ArchiveService) DistributeMiscellaneous(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var periodID int64
	err := s.store.InTx(ctx, func(l Ledger) error {
		// Snapshot before any mutation so rows created during the run
		// cannot change which period the batch belongs to.
		earliest, err := l.FirstTransactionDate(ctx)
		if err != nil {
			return err
		}
		period, err := s.distribute(ctx, l, earliest)
		if err != nil {
			return err
		}
		periodID = period.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.reports.Invalidate(periodID)
	s.publishClosed(ctx, periodID)
	return periodID, nil
}

// distribute runs the miscellaneous distribution inside an open
// transaction: allocate, post contributions, resolve the period,
// mirror the new contribution rows, then mirror and delete the
// overhead items.
func (s *ArchiveService) distribute(ctx context.Context, l Ledger, earliest core.Date) (core.ArchivePeriod, error) {
	miscItems, err := l.MiscellaneousItems(ctx)
	if err != nil {
		return core.ArchivePeriod{}, fmt.Errorf("load miscellaneous items: %w", err)
	}
	counts, err := l.MealCountsByMember(ctx)
	if err != nil {
		return core.ArchivePeriod{}, fmt.Errorf("load meal counts: %w", err)
	}

	perMeal, shares, err := allocation.Miscellaneous(miscItems, counts)
	if err != nil {
		return core.ArchivePeriod{}, err
	}

	today := core.DateOf(s.clock.Now())

	memberIDs := make([]int64, 0, len(shares))
	for id := range shares {
		memberIDs = append(memberIDs, id)
	}
	sort.Slice(memberIDs, func(i, j int) bool { return memberIDs[i] < memberIDs[j] })

	for _, memberID := range memberIDs {
		amount := shares[memberID]
		if err := l.AddMemberDue(ctx, memberID, amount); err != nil {
			return core.ArchivePeriod{}, fmt.Errorf("post allocation to member %d: %w", memberID, err)
		}
		_, err := l.InsertMiscContribution(ctx, core.MiscContribution{
			MemberID:         memberID,
			Amount:           amount,
			MealCount:        counts[memberID],
			DistributionDate: today,
		})
		if err != nil {
			return core.ArchivePeriod{}, fmt.Errorf("record contribution for member %d: %w", memberID, err)
		}
	}

	period, err := s.resolver.Resolve(ctx, l, earliest)
	if err != nil {
		return core.ArchivePeriod{}, err
	}

	if err := l.ArchiveMiscContributionsByDate(ctx, today, period.ID); err != nil {
		return core.ArchivePeriod{}, err
	}

	miscIDs := make([]int64, len(miscItems))
	for i, it := range miscItems {
		miscIDs[i] = it.ID
	}
	if err := l.ArchiveItems(ctx, miscIDs, period.ID); err != nil {
		return core.ArchivePeriod{}, err
	}
	if err := l.DeleteItems(ctx, miscIDs); err != nil {
		return core.ArchivePeriod{}, err
	}

	slog.InfoContext(ctx, "Distributed miscellaneous costs",
		"period_id", period.ID,
		"items", len(miscIDs),
		"members", len(shares),
		"per_meal", perMeal.String())
	return period, nil
}

// FinalizeMonth closes the accounting period: distribute pending
// overhead (skipped when there is nothing to distribute), snapshot
// members, relocate meal and drink records into their mirrors, snapshot
// and reset carried-over stock, then build the closed period's report.
// All writes form one transaction; any failure leaves the live ledger
// untouched.
func (s *ArchiveService) FinalizeMonth(ctx context.Context) (*core.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var periodID int64
	err := s.store.InTx(ctx, func(l Ledger) error {
		earliest, err := l.FirstTransactionDate(ctx)
		if err != nil {
			return err
		}

		period, err := s.distribute(ctx, l, earliest)
		switch {
		case err == nil:
			// Overhead distributed and period resolved in one go.
		case errors.Is(err, core.ErrNothingToDistribute), errors.Is(err, core.ErrNoAllocationBasis):
			slog.InfoContext(ctx, "No miscellaneous distribution at close", "reason", err)
			period, err = s.resolver.Resolve(ctx, l, earliest)
			if err != nil {
				return err
			}
		default:
			return err
		}

		if err := l.ArchiveAllMembers(ctx, period.ID); err != nil {
			return err
		}
		if err := l.ArchiveAllMealRecords(ctx, period.ID); err != nil {
			return err
		}
		if err := l.DeleteAllMealRecords(ctx); err != nil {
			return err
		}
		if err := l.ArchiveAllDrinkRecords(ctx, period.ID); err != nil {
			return err
		}
		if err := l.DeleteAllDrinkRecords(ctx); err != nil {
			return err
		}

		stock, err := l.StockItems(ctx)
		if err != nil {
			return fmt.Errorf("load stock items: %w", err)
		}
		var carryIDs []int64
		for _, it := range stock {
			if it.Remaining != 0 {
				carryIDs = append(carryIDs, it.ID)
			}
		}
		if err := l.ArchiveItems(ctx, carryIDs, period.ID); err != nil {
			return err
		}
		if err := l.ResetStockRemaining(ctx, carryIDs); err != nil {
			return err
		}

		periodID = period.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Month finalized", "period_id", periodID)
	s.reports.Invalidate(periodID)
	s.publishClosed(ctx, periodID)

	return s.reports.Archived(ctx, periodID)
}

func (s *ArchiveService) publishClosed(ctx context.Context, periodID int64) {
	if s.events == nil {
		return
	}
	period, err := s.store.PeriodByID(ctx, periodID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load period for event", "period_id", periodID, "error", err)
		return
	}
	if err := s.events.PublishPeriodClosed(ctx, period.ID, period.Name); err != nil {
		// The close already committed; consumers catch up later.
		slog.ErrorContext(ctx, "Failed to publish period-closed event",
			"period_id", periodID, "error", err)
	}
}
