package services

import (
	"context"
	"errors"
	"testing"

	"messbook/internal/core"
)

type captureEvents struct {
	periodIDs []int64
	names     []string
}

func (c *captureEvents) PublishPeriodClosed(_ context.Context, periodID int64, name string) error {
	c.periodIDs = append(c.periodIDs, periodID)
	c.names = append(c.names, name)
	return nil
}

func newArchiveFixture(t *testing.T, store Store, clock core.Clock, events EventPublisher) *ArchiveService {
	t.Helper()
	return NewArchiveService(store, NewReportService(store, clock), clock, events)
}

// Seeds the canonical distribution scenario: three members with meal
// counts 3, 5 and 2, and 150 worth of miscellaneous purchases.
func seedDistribution(t *testing.T, store Store) (alice, bob, carol int64) {
	t.Helper()
	alice = seedMember(t, store, "alice", "500")
	bob = seedMember(t, store, "bob", "500")
	carol = seedMember(t, store, "carol", "500")
	seedMeals(t, store, alice, 3)
	seedMeals(t, store, bob, 5)
	seedMeals(t, store, carol, 2)
	seedItem(t, store, core.Item{
		Name: "gas refill", Quantity: 1, TotalPrice: amount("100"), Miscellaneous: true,
	})
	seedItem(t, store, core.Item{
		Name: "cleaning supplies", Quantity: 1, TotalPrice: amount("50"), Miscellaneous: true,
	})
	return alice, bob, carol
}

func TestArchiveService_DistributeMiscellaneous(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice, bob, carol := seedDistribution(t, store)

	events := &captureEvents{}
	svc := newArchiveFixture(t, store, testClock(2024, 3, 31), events)

	periodID, err := svc.DistributeMiscellaneous(ctx)
	if err != nil {
		t.Fatalf("DistributeMiscellaneous() error = %v", err)
	}
	if periodID == 0 {
		t.Fatal("DistributeMiscellaneous() returned zero period id")
	}

	wantDues := map[int64]string{alice: "45", bob: "75", carol: "30"}
	for id, want := range wantDues {
		m, err := store.MemberByID(ctx, id)
		if err != nil {
			t.Fatalf("MemberByID(%d) error = %v", id, err)
		}
		if !m.TotalDue.Equal(amount(want)) {
			t.Errorf("member %s total due = %s, want %s", m.Name, m.TotalDue, want)
		}
	}

	misc, err := store.MiscellaneousItems(ctx)
	if err != nil {
		t.Fatalf("MiscellaneousItems() error = %v", err)
	}
	if len(misc) != 0 {
		t.Errorf("live miscellaneous items = %d, want 0 after distribution", len(misc))
	}

	archivedItems, err := store.ArchivedItems(ctx, periodID)
	if err != nil {
		t.Fatalf("ArchivedItems() error = %v", err)
	}
	if len(archivedItems) != 2 {
		t.Errorf("archived items = %d, want 2", len(archivedItems))
	}

	contribs, err := store.ArchivedMiscContributions(ctx, periodID)
	if err != nil {
		t.Fatalf("ArchivedMiscContributions() error = %v", err)
	}
	if len(contribs) != 3 {
		t.Fatalf("archived contributions = %d, want 3", len(contribs))
	}

	period, err := store.PeriodByID(ctx, periodID)
	if err != nil {
		t.Fatalf("PeriodByID() error = %v", err)
	}
	// Earliest transaction is the item purchase on 2024-03-05.
	if got, want := period.Name, "2024-03-05_to_2024-03-31"; got != want {
		t.Errorf("period name = %q, want %q", got, want)
	}

	if len(events.periodIDs) != 1 || events.periodIDs[0] != periodID {
		t.Errorf("published period ids = %v, want [%d]", events.periodIDs, periodID)
	}
}

func TestArchiveService_DistributeMiscellaneous_NothingToDistribute(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedMember(t, store, "alice", "500")
	seedMeals(t, store, alice, 2)

	svc := newArchiveFixture(t, store, testClock(2024, 3, 31), nil)

	_, err := svc.DistributeMiscellaneous(ctx)
	if !errors.Is(err, core.ErrNothingToDistribute) {
		t.Fatalf("DistributeMiscellaneous() error = %v, want ErrNothingToDistribute", err)
	}

	periods, err := store.ListPeriods(ctx)
	if err != nil {
		t.Fatalf("ListPeriods() error = %v", err)
	}
	if len(periods) != 0 {
		t.Errorf("periods after failed distribution = %d, want 0", len(periods))
	}
}

func TestArchiveService_ArchivalUpsertIdempotentUnderRetry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedDistribution(t, store)

	clock := testClock(2024, 3, 31)
	svc := newArchiveFixture(t, store, clock, nil)

	periodID, err := svc.DistributeMiscellaneous(ctx)
	if err != nil {
		t.Fatalf("DistributeMiscellaneous() error = %v", err)
	}

	// Re-run the mirror step for the same rows and period, as a retry
	// after a transient failure would.
	today := core.DateOf(clock.Now())
	if err := store.ArchiveMiscContributionsByDate(ctx, today, periodID); err != nil {
		t.Fatalf("retried ArchiveMiscContributionsByDate() error = %v", err)
	}

	contribs, err := store.ArchivedMiscContributions(ctx, periodID)
	if err != nil {
		t.Fatalf("ArchivedMiscContributions() error = %v", err)
	}
	if len(contribs) != 3 {
		t.Errorf("archived contributions after retry = %d, want 3", len(contribs))
	}
}

type failingArchiveMembers struct {
	Ledger
}

func (f failingArchiveMembers) ArchiveAllMembers(context.Context, int64) error {
	return errors.New("forced store failure")
}

func TestArchiveService_FinalizeMonth_RollsBackOnStoreFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice, _, _ := seedDistribution(t, store)

	faulty := faultStore{
		Store: store,
		wrap:  func(l Ledger) Ledger { return failingArchiveMembers{Ledger: l} },
	}
	svc := newArchiveFixture(t, faulty, testClock(2024, 3, 31), nil)

	if _, err := svc.FinalizeMonth(ctx); err == nil {
		t.Fatal("FinalizeMonth() error = nil, want forced failure")
	}

	// The distribution ran before the failure point; none of it may be
	// visible after rollback.
	m, err := store.MemberByID(ctx, alice)
	if err != nil {
		t.Fatalf("MemberByID() error = %v", err)
	}
	if !m.TotalDue.IsZero() {
		t.Errorf("total due after rollback = %s, want 0", m.TotalDue)
	}

	misc, err := store.MiscellaneousItems(ctx)
	if err != nil {
		t.Fatalf("MiscellaneousItems() error = %v", err)
	}
	if len(misc) != 2 {
		t.Errorf("live miscellaneous items = %d, want 2 after rollback", len(misc))
	}

	periods, err := store.ListPeriods(ctx)
	if err != nil {
		t.Fatalf("ListPeriods() error = %v", err)
	}
	if len(periods) != 0 {
		t.Errorf("periods after rollback = %d, want 0", len(periods))
	}

	meals, err := store.ListMealRecords(ctx)
	if err != nil {
		t.Fatalf("ListMealRecords() error = %v", err)
	}
	if len(meals) != 10 {
		t.Errorf("live meal records = %d, want 10 untouched", len(meals))
	}
}

func TestArchiveService_FinalizeMonth_EmptyStore(t *testing.T) {
	store := newTestStore(t)
	svc := newArchiveFixture(t, store, testClock(2024, 3, 31), nil)

	_, err := svc.FinalizeMonth(context.Background())
	if !errors.Is(err, core.ErrNoTransactionDate) {
		t.Fatalf("FinalizeMonth() error = %v, want ErrNoTransactionDate", err)
	}

	periods, err := store.ListPeriods(context.Background())
	if err != nil {
		t.Fatalf("ListPeriods() error = %v", err)
	}
	if len(periods) != 0 {
		t.Errorf("periods after empty finalize = %d, want 0", len(periods))
	}
}

func TestArchiveService_FinalizeMonth_RereadsRewrittenMirrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedDistribution(t, store)

	clock := testClock(2024, 3, 31)
	reports := NewReportService(store, clock)
	svc := NewArchiveService(store, reports, clock, nil)

	periodID, err := svc.DistributeMiscellaneous(ctx)
	if err != nil {
		t.Fatalf("DistributeMiscellaneous() error = %v", err)
	}

	// An interim read caches the period before members are mirrored.
	interim, err := reports.Archived(ctx, periodID)
	if err != nil {
		t.Fatalf("interim Archived() error = %v", err)
	}
	if len(interim.Members) != 0 {
		t.Fatalf("interim member rows = %d, want 0 before finalize", len(interim.Members))
	}

	report, err := svc.FinalizeMonth(ctx)
	if err != nil {
		t.Fatalf("FinalizeMonth() error = %v", err)
	}
	if report.PeriodID != periodID {
		t.Fatalf("finalize period id = %d, want reused %d", report.PeriodID, periodID)
	}
	if len(report.Members) != 3 {
		t.Errorf("finalized report member rows = %d, want 3", len(report.Members))
	}
	if !report.Totals.MiscDistributed.Equal(amount("150")) {
		t.Errorf("finalized misc total = %s, want 150", report.Totals.MiscDistributed)
	}

	// Later reads see the rewritten mirrors too, not the interim snapshot.
	again, err := reports.Archived(ctx, periodID)
	if err != nil {
		t.Fatalf("Archived() after finalize error = %v", err)
	}
	if len(again.Members) != 3 {
		t.Errorf("re-read member rows = %d, want 3", len(again.Members))
	}
}

func TestArchiveService_FinalizeMonth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice, _, _ := seedDistribution(t, store)

	rice := seedItem(t, store, core.Item{
		Name: "rice", Quantity: 10, TotalPrice: amount("20"), Consumption: 4,
	})
	if _, err := store.InsertDrinkRecord(ctx, core.DrinkRecord{
		Date: core.NewDate(2024, 3, 12), DrinkName: "tea", MemberID: alice,
		Quantity: 2, TotalCost: amount("1.0"),
	}); err != nil {
		t.Fatalf("InsertDrinkRecord() error = %v", err)
	}

	events := &captureEvents{}
	svc := newArchiveFixture(t, store, testClock(2024, 3, 31), events)

	report, err := svc.FinalizeMonth(ctx)
	if err != nil {
		t.Fatalf("FinalizeMonth() error = %v", err)
	}
	if report.PeriodID == 0 {
		t.Fatal("FinalizeMonth() report has zero period id")
	}

	meals, err := store.ListMealRecords(ctx)
	if err != nil {
		t.Fatalf("ListMealRecords() error = %v", err)
	}
	if len(meals) != 0 {
		t.Errorf("live meal records after finalize = %d, want 0", len(meals))
	}
	drinks, err := store.ListDrinkRecords(ctx)
	if err != nil {
		t.Fatalf("ListDrinkRecords() error = %v", err)
	}
	if len(drinks) != 0 {
		t.Errorf("live drink records after finalize = %d, want 0", len(drinks))
	}

	// Carried-over stock keeps its row but restarts depletion at zero.
	it, err := store.ItemByID(ctx, rice)
	if err != nil {
		t.Fatalf("ItemByID() error = %v", err)
	}
	if it.Remaining != 0 {
		t.Errorf("stock remaining after finalize = %d, want 0", it.Remaining)
	}

	archivedMembers, err := store.ArchivedMembers(ctx, report.PeriodID)
	if err != nil {
		t.Fatalf("ArchivedMembers() error = %v", err)
	}
	if len(archivedMembers) != 3 {
		t.Errorf("archived members = %d, want 3", len(archivedMembers))
	}
	archivedMeals, err := store.ArchivedMealRecords(ctx, report.PeriodID)
	if err != nil {
		t.Fatalf("ArchivedMealRecords() error = %v", err)
	}
	if len(archivedMeals) != 10 {
		t.Errorf("archived meal records = %d, want 10", len(archivedMeals))
	}

	if !report.Totals.MiscDistributed.Equal(amount("150")) {
		t.Errorf("report misc distributed total = %s, want 150", report.Totals.MiscDistributed)
	}

	if len(events.periodIDs) != 1 || events.periodIDs[0] != report.PeriodID {
		t.Errorf("published period ids = %v, want [%d]", events.periodIDs, report.PeriodID)
	}
}
