// Package allocation computes cost-sharing distributions. Everything
// here is pure: inputs in, amounts out, no store access.
package allocation

import (
	"github.com/shopspring/decimal"

	"messbook/internal/core"
)

// Miscellaneous pro-rates the pooled cost of the given overhead items
// across members by meal count. It returns the cost per meal and each
// member's share rounded to the ledger's minor unit.
//
// The rounded shares are not reconciled back to the pooled total; the
// drift is bounded by half a minor unit per member.
func Miscellaneous(miscItems []core.Item, mealCounts map[int64]int) (perMeal decimal.Decimal, shares map[int64]decimal.Decimal, err error) {
	if len(miscItems) == 0 {
		return decimal.Zero, nil, core.ErrNothingToDistribute
	}
	totalMeals := 0
	for _, n := range mealCounts {
		totalMeals += n
	}
	if totalMeals <= 0 {
		return decimal.Zero, nil, core.ErrNoAllocationBasis
	}

	total := decimal.Zero
	for _, it := range miscItems {
		total = total.Add(it.TotalPrice)
	}

	perMeal = total.Div(decimal.NewFromInt(int64(totalMeals)))
	shares = make(map[int64]decimal.Decimal, len(mealCounts))
	for memberID, n := range mealCounts {
		shares[memberID] = core.RoundMinor(perMeal.Mul(decimal.NewFromInt(int64(n))))
	}
	return perMeal, shares, nil
}

// PerMember splits a single pooled cost equally across the attending
// members. Used for both a meal's item cost and a meal's ad-hoc
// miscellaneous charge.
func PerMember(total decimal.Decimal, memberCount int) (decimal.Decimal, error) {
	if memberCount == 0 {
		return decimal.Zero, core.ErrNoMembersSelected
	}
	return core.RoundMinor(total.Div(decimal.NewFromInt(int64(memberCount)))), nil
}
