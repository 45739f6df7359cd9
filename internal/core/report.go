package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary row labels, in report order.
const (
	LabelTotalContributions   = "total contributions"
	LabelTotalMealCost        = "total meal cost"
	LabelTotalDrinkCost       = "total drink cost"
	LabelTotalMiscDistributed = "total miscellaneous distributed"
	LabelTotalConsumption     = "total consumption"
	LabelRemainingInventory   = "remaining inventory value"
	LabelExpectedCashBalance  = "expected cash balance"
	LabelFinalMemberBalance   = "final member balance"
)

type (
	// SummaryRow is one labelled figure in the report header.
	SummaryRow struct {
		Label  string
		Amount decimal.Decimal
	}

	// MemberFinancial is one member's breakdown. All amounts carry
	// minor-unit rounding already applied.
	MemberFinancial struct {
		MemberID         int64
		Name             string
		Rank             string
		Contribution     decimal.Decimal
		MealCost         decimal.Decimal
		DrinkCost        decimal.Decimal
		MiscDistributed  decimal.Decimal
		TotalConsumption decimal.Decimal
		FinalBalance     decimal.Decimal
	}

	// Report is the aggregated financial snapshot handed to display
	// and export collaborators. PeriodID is zero for a live report.
	Report struct {
		PeriodID    int64
		PeriodName  string
		GeneratedAt time.Time
		Summary     []SummaryRow
		Members     []MemberFinancial
		// Totals holds the column-wise sums of the rounded member
		// figures; no reconciliation against unrounded totals is done.
		Totals MemberFinancial
	}
)
