package services

import (
	"context"
	"testing"

	"messbook/internal/core"
)

func TestReportService_Current(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := seedMember(t, store, "alice", "500")
	for _, cost := range []string{"70", "50"} {
		if _, err := store.InsertMealRecord(ctx, core.MealRecord{
			MealType: core.Dinner, Date: core.NewDate(2024, 3, 10),
			MemberID: alice, FinalCost: amount(cost),
		}); err != nil {
			t.Fatalf("InsertMealRecord() error = %v", err)
		}
	}
	if _, err := store.InsertDrinkRecord(ctx, core.DrinkRecord{
		Date: core.NewDate(2024, 3, 11), DrinkName: "tea",
		MemberID: alice, Quantity: 3, TotalCost: amount("30"),
	}); err != nil {
		t.Fatalf("InsertDrinkRecord() error = %v", err)
	}
	if err := store.AddMemberDue(ctx, alice, amount("45")); err != nil {
		t.Fatalf("AddMemberDue() error = %v", err)
	}
	// Non-miscellaneous stock on hand: 6 remaining at unit price 2.
	seedItem(t, store, core.Item{Name: "rice", Quantity: 10, TotalPrice: amount("20"), Consumption: 4})

	svc := NewReportService(store, testClock(2024, 3, 31))
	report, err := svc.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}

	if len(report.Members) != 1 {
		t.Fatalf("member rows = %d, want 1", len(report.Members))
	}
	row := report.Members[0]
	checks := []struct {
		name string
		got  string
		want string
	}{
		{"contribution", row.Contribution.String(), "500"},
		{"meal cost", row.MealCost.String(), "120"},
		{"drink cost", row.DrinkCost.String(), "30"},
		{"misc distributed", row.MiscDistributed.String(), "45"},
		{"total consumption", row.TotalConsumption.String(), "195"},
		{"final balance", row.FinalBalance.String(), "305"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}

	wantSummary := map[string]string{
		core.LabelTotalContributions:   "500",
		core.LabelTotalMealCost:        "120",
		core.LabelTotalDrinkCost:       "30",
		core.LabelTotalMiscDistributed: "45",
		core.LabelTotalConsumption:     "195",
		core.LabelRemainingInventory:   "12",
		core.LabelExpectedCashBalance:  "305",
		core.LabelFinalMemberBalance:   "305",
	}
	for _, s := range report.Summary {
		want, ok := wantSummary[s.Label]
		if !ok {
			t.Errorf("unexpected summary row %q", s.Label)
			continue
		}
		if s.Amount.String() != want {
			t.Errorf("summary %q = %s, want %s", s.Label, s.Amount, want)
		}
	}
	if len(report.Summary) != len(wantSummary) {
		t.Errorf("summary rows = %d, want %d", len(report.Summary), len(wantSummary))
	}
}

func TestReportService_TotalsSumRoundedFigures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Meal costs that each round up: 3 members at 0.33 round to 0.3.
	for _, name := range []string{"alice", "bob", "carol"} {
		id := seedMember(t, store, name, "10")
		if _, err := store.InsertMealRecord(ctx, core.MealRecord{
			MealType: core.Lunch, Date: core.NewDate(2024, 3, 10),
			MemberID: id, FinalCost: amount("0.33"),
		}); err != nil {
			t.Fatalf("InsertMealRecord() error = %v", err)
		}
	}

	svc := NewReportService(store, testClock(2024, 3, 31))
	report, err := svc.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}

	// 3 x 0.3, not round(0.99): totals add the rounded member figures.
	if got := report.Totals.MealCost.String(); got != "0.9" {
		t.Errorf("totals meal cost = %s, want 0.9", got)
	}
	if got := report.Totals.Name; got != "total" {
		t.Errorf("totals row name = %q, want %q", got, "total")
	}
}

func TestReportService_ArchivedUsesMirrorsAndCache(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedDistribution(t, store)

	clock := testClock(2024, 3, 31)
	reports := NewReportService(store, clock)
	svc := NewArchiveService(store, reports, clock, nil)

	report, err := svc.FinalizeMonth(ctx)
	if err != nil {
		t.Fatalf("FinalizeMonth() error = %v", err)
	}

	// Mutate the live tables; the archived report must not change.
	seedMember(t, store, "dave", "999")

	again, err := reports.Archived(ctx, report.PeriodID)
	if err != nil {
		t.Fatalf("Archived() error = %v", err)
	}
	if len(again.Members) != 3 {
		t.Errorf("archived member rows = %d, want 3", len(again.Members))
	}
	if !again.Totals.MiscDistributed.Equal(amount("150")) {
		t.Errorf("archived misc total = %s, want 150", again.Totals.MiscDistributed)
	}
	if again.PeriodName != report.PeriodName {
		t.Errorf("period name = %q, want %q", again.PeriodName, report.PeriodName)
	}
}
