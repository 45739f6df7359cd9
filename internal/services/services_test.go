package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"messbook/internal/core"
	"messbook/internal/storage"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "messbook.db"))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewStore(repo)
}

func testClock(year, month, day int) core.FixedClock {
	return core.FixedClock{Instant: time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC)}
}

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedMember(t *testing.T, store Store, name, contribution string) int64 {
	t.Helper()
	id, err := store.CreateMember(context.Background(), core.Member{
		Name:         name,
		Rank:         "member",
		Contribution: amount(contribution),
		Registered:   core.NewDate(2024, 3, 1),
	})
	if err != nil {
		t.Fatalf("CreateMember(%q) error = %v", name, err)
	}
	return id
}

func seedItem(t *testing.T, store Store, it core.Item) int64 {
	t.Helper()
	if it.Acquired.IsZero() {
		it.Acquired = core.NewDate(2024, 3, 5)
	}
	id, err := store.CreateItem(context.Background(), it)
	if err != nil {
		t.Fatalf("CreateItem(%q) error = %v", it.Name, err)
	}
	return id
}

func seedMeals(t *testing.T, store Store, memberID int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := store.InsertMealRecord(context.Background(), core.MealRecord{
			MealType:  core.Lunch,
			Date:      core.NewDate(2024, 3, 10+i),
			MemberID:  memberID,
			FinalCost: decimal.Zero,
		})
		if err != nil {
			t.Fatalf("InsertMealRecord() error = %v", err)
		}
	}
}

// faultStore wraps a real store and lets a test swap the in-transaction
// ledger for a failing one.
type faultStore struct {
	Store
	wrap func(Ledger) Ledger
}

func (f faultStore) InTx(ctx context.Context, fn func(Ledger) error) error {
	return f.Store.InTx(ctx, func(l Ledger) error {
		return fn(f.wrap(l))
	})
}
