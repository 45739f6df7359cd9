package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"messbook/internal/cache"
	"messbook/internal/core"
)

const (
	reportCacheSize = 32
	reportCacheTTL  = time.Hour
)

// ReportService aggregates the ledger into display/export reports.
// Live reports always hit the store; archived periods are immutable, so
// their reports are cached.
type ReportService struct {
	store    Store
	clock    core.Clock
	archived *cache.LRU[*core.Report]
}

func NewReportService(store Store, clock core.Clock) *ReportService {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &ReportService{
		store:    store,
		clock:    clock,
		archived: cache.NewLRU[*core.Report](reportCacheSize, reportCacheTTL),
	}
}

// Current builds the report over the live tables.
func (s *ReportService) Current(ctx context.Context) (*core.Report, error) {
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	meals, err := s.store.ListMealRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load meal records: %w", err)
	}
	drinks, err := s.store.ListDrinkRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load drink records: %w", err)
	}
	stock, err := s.store.StockItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stock items: %w", err)
	}
	return s.build(0, "current", members, meals, drinks, stock), nil
}

// Archived builds the report for a closed period from its mirror
// tables. Results are cached; the archival coordinator invalidates the
// entry whenever it rewrites a period's mirrors.
func (s *ReportService) Archived(ctx context.Context, periodID int64) (*core.Report, error) {
	key := cacheKey(periodID)
	if r, ok := s.archived.Get(key); ok {
		return r, nil
	}

	period, err := s.store.PeriodByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ArchivedMembers(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("load archived members: %w", err)
	}
	meals, err := s.store.ArchivedMealRecords(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("load archived meal records: %w", err)
	}
	drinks, err := s.store.ArchivedDrinkRecords(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("load archived drink records: %w", err)
	}
	items, err := s.store.ArchivedItems(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("load archived items: %w", err)
	}
	var stock []core.Item
	for _, it := range items {
		if !it.Miscellaneous {
			stock = append(stock, it)
		}
	}

	r := s.build(periodID, period.Name, members, meals, drinks, stock)
	s.archived.Set(key, r)
	return r, nil
}

// Invalidate drops the cached report for a period. Must be called
// after every committed transaction that rewrote the period's mirrors,
// or later reads would serve the pre-rewrite snapshot.
func (s *ReportService) Invalidate(periodID int64) {
	s.archived.Delete(cacheKey(periodID))
}

// Cache exposes the archived-report cache for cleanup registration.
func (s *ReportService) Cache() cache.Cleaner {
	return s.archived
}

func cacheKey(periodID int64) string {
	return strconv.FormatInt(periodID, 10)
}

// Periods lists the archive periods, newest first.
func (s *ReportService) Periods(ctx context.Context) ([]core.ArchivePeriod, error) {
	return s.store.ListPeriods(ctx)
}

// build aggregates raw rows into a report. Every member figure is
// rounded to the minor unit first; totals are the sums of the rounded
// figures, so the drift introduced by rounding stays visible instead of
// being reconciled away.
func (s *ReportService) build(periodID int64, name string, members []core.Member, meals []core.MealRecord, drinks []core.DrinkRecord, stock []core.Item) *core.Report {
	mealCosts := make(map[int64]decimal.Decimal, len(members))
	for _, rec := range meals {
		mealCosts[rec.MemberID] = mealCosts[rec.MemberID].Add(rec.FinalCost)
	}
	drinkCosts := make(map[int64]decimal.Decimal, len(members))
	for _, rec := range drinks {
		drinkCosts[rec.MemberID] = drinkCosts[rec.MemberID].Add(rec.TotalCost)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

	rows := make([]core.MemberFinancial, 0, len(members))
	totals := core.MemberFinancial{Name: "total"}
	for _, m := range members {
		row := core.MemberFinancial{
			MemberID:        m.ID,
			Name:            m.Name,
			Rank:            m.Rank,
			Contribution:    core.RoundMinor(m.Contribution),
			MealCost:        core.RoundMinor(mealCosts[m.ID]),
			DrinkCost:       core.RoundMinor(drinkCosts[m.ID]),
			MiscDistributed: core.RoundMinor(m.TotalDue),
		}
		row.TotalConsumption = row.MealCost.Add(row.DrinkCost).Add(row.MiscDistributed)
		row.FinalBalance = row.Contribution.Sub(row.TotalConsumption)
		rows = append(rows, row)

		totals.Contribution = totals.Contribution.Add(row.Contribution)
		totals.MealCost = totals.MealCost.Add(row.MealCost)
		totals.DrinkCost = totals.DrinkCost.Add(row.DrinkCost)
		totals.MiscDistributed = totals.MiscDistributed.Add(row.MiscDistributed)
		totals.TotalConsumption = totals.TotalConsumption.Add(row.TotalConsumption)
		totals.FinalBalance = totals.FinalBalance.Add(row.FinalBalance)
	}

	inventory := decimal.Zero
	for _, it := range stock {
		value := it.Price.Mul(decimal.NewFromInt(it.Remaining))
		inventory = inventory.Add(value)
	}
	inventory = core.RoundMinor(inventory)

	summary := []core.SummaryRow{
		{Label: core.LabelTotalContributions, Amount: totals.Contribution},
		{Label: core.LabelTotalMealCost, Amount: totals.MealCost},
		{Label: core.LabelTotalDrinkCost, Amount: totals.DrinkCost},
		{Label: core.LabelTotalMiscDistributed, Amount: totals.MiscDistributed},
		{Label: core.LabelTotalConsumption, Amount: totals.TotalConsumption},
		{Label: core.LabelRemainingInventory, Amount: inventory},
		{Label: core.LabelExpectedCashBalance, Amount: totals.Contribution.Sub(totals.TotalConsumption)},
		{Label: core.LabelFinalMemberBalance, Amount: totals.FinalBalance},
	}

	return &core.Report{
		PeriodID:    periodID,
		PeriodName:  name,
		GeneratedAt: s.clock.Now(),
		Summary:     summary,
		Members:     rows,
		Totals:      totals,
	}
}
