package allocation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"messbook/internal/core"
)

func miscItem(total string) core.Item {
	return core.Item{
		Name:          "overhead",
		TotalPrice:    decimal.RequireFromString(total),
		Miscellaneous: true,
	}
}

func TestMiscellaneous(t *testing.T) {
	tests := []struct {
		name        string
		items       []core.Item
		mealCounts  map[int64]int
		wantPerMeal string
		wantShares  map[int64]string
		wantErr     error
	}{
		{
			name:        "pro-rated by meal count",
			items:       []core.Item{miscItem("100.0"), miscItem("50.0")},
			mealCounts:  map[int64]int{1: 3, 2: 5, 3: 2},
			wantPerMeal: "15",
			wantShares:  map[int64]string{1: "45", 2: "75", 3: "30"},
		},
		{
			name:        "single member takes everything",
			items:       []core.Item{miscItem("42.5")},
			mealCounts:  map[int64]int{7: 4},
			wantPerMeal: "10.625",
			wantShares:  map[int64]string{7: "42.5"},
		},
		{
			name:       "no items",
			items:      nil,
			mealCounts: map[int64]int{1: 3},
			wantErr:    core.ErrNothingToDistribute,
		},
		{
			name:       "no meal records",
			items:      []core.Item{miscItem("10")},
			mealCounts: map[int64]int{},
			wantErr:    core.ErrNoAllocationBasis,
		},
		{
			name:       "zero meal counts",
			items:      []core.Item{miscItem("10")},
			mealCounts: map[int64]int{1: 0, 2: 0},
			wantErr:    core.ErrNoAllocationBasis,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perMeal, shares, err := Miscellaneous(tt.items, tt.mealCounts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Miscellaneous() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Miscellaneous() unexpected error: %v", err)
			}
			if want := decimal.RequireFromString(tt.wantPerMeal); !perMeal.Equal(want) {
				t.Errorf("perMeal = %s, want %s", perMeal, want)
			}
			for memberID, wantStr := range tt.wantShares {
				want := decimal.RequireFromString(wantStr)
				if got := shares[memberID]; !got.Equal(want) {
					t.Errorf("share[%d] = %s, want %s", memberID, got, want)
				}
			}
		})
	}
}

func TestMiscellaneousDriftBounded(t *testing.T) {
	// Uneven splits accumulate at most half a minor unit of rounding
	// drift per member; the sum is never reconciled.
	items := []core.Item{miscItem("100.0")}
	mealCounts := map[int64]int{1: 1, 2: 1, 3: 1, 4: 1, 5: 1, 6: 1, 7: 1}

	_, shares, err := Miscellaneous(items, mealCounts)
	if err != nil {
		t.Fatalf("Miscellaneous() unexpected error: %v", err)
	}

	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s)
	}
	drift := sum.Sub(decimal.RequireFromString("100.0")).Abs()
	limit := decimal.RequireFromString("0.05").Mul(decimal.NewFromInt(int64(len(mealCounts))))
	if drift.GreaterThan(limit) {
		t.Errorf("rounding drift %s exceeds %s", drift, limit)
	}
}

func TestPerMember(t *testing.T) {
	tests := []struct {
		name        string
		total       string
		memberCount int
		want        string
		wantErr     error
	}{
		{name: "even split", total: "90", memberCount: 3, want: "30"},
		{name: "uneven split rounds half-up", total: "100", memberCount: 3, want: "33.3"},
		{name: "half rounds up", total: "0.3", memberCount: 2, want: "0.2"},
		{name: "zero members", total: "50", memberCount: 0, wantErr: core.ErrNoMembersSelected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PerMember(decimal.RequireFromString(tt.total), tt.memberCount)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("PerMember() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("PerMember() unexpected error: %v", err)
			}
			if want := decimal.RequireFromString(tt.want); !got.Equal(want) {
				t.Errorf("PerMember() = %s, want %s", got, want)
			}
		})
	}
}
