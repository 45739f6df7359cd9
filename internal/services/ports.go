// Package services orchestrates the ledger's business operations:
// miscellaneous distribution, period archival, report aggregation and
// consumption postings.
package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"messbook/internal/core"
	"messbook/internal/storage"
)

// Ports for the ledger store, grouped by role. *storage.Queries
// satisfies all of them; tests substitute failing wrappers.
type (
	// AllocationReader supplies the inputs of the proportional
	// miscellaneous distribution.
	AllocationReader interface {
		MiscellaneousItems(ctx context.Context) ([]core.Item, error)
		MealCountsByMember(ctx context.Context) (map[int64]int, error)
		FirstTransactionDate(ctx context.Context) (core.Date, error)
	}

	// PeriodStore resolves and mutates archive periods.
	PeriodStore interface {
		FindPeriodContaining(ctx context.Context, d core.Date) (core.ArchivePeriod, error)
		CreatePeriod(ctx context.Context, p core.ArchivePeriod) (int64, error)
		ClosePeriod(ctx context.Context, id int64, end core.Date, archivedAt time.Time) error
		PeriodByID(ctx context.Context, id int64) (core.ArchivePeriod, error)
		ListPeriods(ctx context.Context) ([]core.ArchivePeriod, error)
	}

	// Archiver performs the mirror upserts and live-table resets.
	Archiver interface {
		ArchiveItems(ctx context.Context, ids []int64, periodID int64) error
		DeleteItems(ctx context.Context, ids []int64) error
		ArchiveAllMembers(ctx context.Context, periodID int64) error
		ArchiveAllMealRecords(ctx context.Context, periodID int64) error
		DeleteAllMealRecords(ctx context.Context) error
		ArchiveAllDrinkRecords(ctx context.Context, periodID int64) error
		DeleteAllDrinkRecords(ctx context.Context) error
		ArchiveMiscContributionsByDate(ctx context.Context, date core.Date, periodID int64) error
		ResetStockRemaining(ctx context.Context, ids []int64) error
	}

	// Registrar creates and looks up the ledger's master rows.
	Registrar interface {
		CreateMember(ctx context.Context, m core.Member) (int64, error)
		MemberByID(ctx context.Context, id int64) (core.Member, error)
		CreateItem(ctx context.Context, it core.Item) (int64, error)
	}

	// LiveReader feeds the live (current-period) report.
	LiveReader interface {
		ListMembers(ctx context.Context) ([]core.Member, error)
		ListMealRecords(ctx context.Context) ([]core.MealRecord, error)
		ListDrinkRecords(ctx context.Context) ([]core.DrinkRecord, error)
		StockItems(ctx context.Context) ([]core.Item, error)
	}

	// ArchiveReader feeds reports for closed periods.
	ArchiveReader interface {
		ArchivedMembers(ctx context.Context, periodID int64) ([]core.Member, error)
		ArchivedMealRecords(ctx context.Context, periodID int64) ([]core.MealRecord, error)
		ArchivedDrinkRecords(ctx context.Context, periodID int64) ([]core.DrinkRecord, error)
		ArchivedItems(ctx context.Context, periodID int64) ([]core.Item, error)
		ArchivedMiscContributions(ctx context.Context, periodID int64) ([]core.MiscContribution, error)
	}

	// PostingWriter records consumption events.
	PostingWriter interface {
		ItemByID(ctx context.Context, id int64) (core.Item, error)
		ConsumeItem(ctx context.Context, id int64, qty int64) error
		AddMemberDue(ctx context.Context, id int64, amount decimal.Decimal) error
		InsertMealRecord(ctx context.Context, rec core.MealRecord) (int64, error)
		InsertDrinkRecord(ctx context.Context, rec core.DrinkRecord) (int64, error)
		InsertMealExtra(ctx context.Context, ex core.MealExtra) (int64, error)
		InsertMiscContribution(ctx context.Context, c core.MiscContribution) (int64, error)
	}

	// Ledger is the full store surface the services operate on.
	Ledger interface {
		AllocationReader
		PeriodStore
		Archiver
		Registrar
		LiveReader
		ArchiveReader
		PostingWriter
	}

	// Store is a Ledger that can additionally run a batch of writes as
	// one atomic transaction.
	Store interface {
		Ledger
		InTx(ctx context.Context, fn func(Ledger) error) error
	}
)

// sqlStore adapts *storage.Repository to the Store port.
type sqlStore struct {
	*storage.Repository
}

// NewStore wraps the SQLite repository as the services' Store.
func NewStore(r *storage.Repository) Store {
	return sqlStore{Repository: r}
}

func (s sqlStore) InTx(ctx context.Context, fn func(Ledger) error) error {
	return s.Repository.InTx(ctx, func(q *storage.Queries) error {
		return fn(q)
	})
}
