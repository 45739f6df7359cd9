package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"messbook/internal/allocation"
	"messbook/internal/core"
)

// MealPosting describes one meal event: which items were consumed, an
// optional ad-hoc miscellaneous amount, and who attended.
type MealPosting struct {
	Date      core.Date
	MealType  core.MealType
	Items     map[int64]int64
	Extra     decimal.Decimal
	MemberIDs []int64
}

func (p MealPosting) validate() error {
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if err := p.MealType.Validate(); err != nil {
		return err
	}
	if len(p.MemberIDs) == 0 {
		return core.ErrNoMembersSelected
	}
	if p.Extra.IsNegative() {
		return core.ErrInvalidAmount
	}
	return nil
}

// PostingService records consumption events against the live ledger.
type PostingService struct {
	store Store
}

func NewPostingService(store Store) *PostingService {
	return &PostingService{store: store}
}

// RecordMeal posts one meal event as a single transaction: deplete the
// consumed items, split their cost equally over the attending members
// and insert one meal record per member. An extra amount is split the
// same way, posted to each member's dues and recorded as a meal extra
// tied to the member's meal record. A meal with no items is valid; it
// still counts toward the member's meal tally.
func (s *PostingService) RecordMeal(ctx context.Context, p MealPosting) error {
	if err := p.validate(); err != nil {
		return err
	}

	members := append([]int64(nil), p.MemberIDs...)
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

	itemIDs := make([]int64, 0, len(p.Items))
	for id := range p.Items {
		itemIDs = append(itemIDs, id)
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i] < itemIDs[j] })

	err := s.store.InTx(ctx, func(l Ledger) error {
		total := decimal.Zero
		for _, itemID := range itemIDs {
			qty := p.Items[itemID]
			if qty <= 0 {
				continue
			}
			item, err := l.ItemByID(ctx, itemID)
			if err != nil {
				return err
			}
			if err := l.ConsumeItem(ctx, itemID, qty); err != nil {
				return fmt.Errorf("consume %s: %w", item.Name, err)
			}
			total = total.Add(item.Price.Mul(decimal.NewFromInt(qty)))
		}

		itemShare, err := allocation.PerMember(total, len(members))
		if err != nil {
			return err
		}
		extraShare := decimal.Zero
		if p.Extra.IsPositive() {
			extraShare, err = allocation.PerMember(p.Extra, len(members))
			if err != nil {
				return err
			}
		}

		for _, memberID := range members {
			recID, err := l.InsertMealRecord(ctx, core.MealRecord{
				MealType:  p.MealType,
				Date:      p.Date,
				MemberID:  memberID,
				FinalCost: itemShare,
			})
			if err != nil {
				return fmt.Errorf("record meal for member %d: %w", memberID, err)
			}
			if !p.Extra.IsPositive() {
				continue
			}
			if err := l.AddMemberDue(ctx, memberID, extraShare); err != nil {
				return fmt.Errorf("post extra to member %d: %w", memberID, err)
			}
			_, err = l.InsertMealExtra(ctx, core.MealExtra{
				Date:         p.Date,
				Amount:       extraShare,
				MealType:     p.MealType,
				MealRecordID: recID,
				MemberID:     memberID,
			})
			if err != nil {
				return fmt.Errorf("record extra for member %d: %w", memberID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Recorded meal",
		"date", p.Date.String(),
		"meal_type", string(p.MealType),
		"members", len(members),
		"items", len(itemIDs))
	return nil
}

// RecordDrink posts one drink consumption: deplete the drink item and
// insert a drink record carrying the cost.
func (s *PostingService) RecordDrink(ctx context.Context, date core.Date, itemID, memberID, qty int64) error {
	if err := date.Validate(); err != nil {
		return err
	}
	if qty <= 0 {
		return core.ErrInvalidAmount
	}

	err := s.store.InTx(ctx, func(l Ledger) error {
		item, err := l.ItemByID(ctx, itemID)
		if err != nil {
			return err
		}
		if !item.Drink {
			return fmt.Errorf("item %q: %w", item.Name, core.ErrNotFound)
		}
		if err := l.ConsumeItem(ctx, itemID, qty); err != nil {
			return fmt.Errorf("consume %s: %w", item.Name, err)
		}
		cost := core.RoundMinor(item.Price.Mul(decimal.NewFromInt(qty)))
		_, err = l.InsertDrinkRecord(ctx, core.DrinkRecord{
			Date:      date,
			DrinkName: item.Name,
			MemberID:  memberID,
			Quantity:  qty,
			TotalCost: cost,
		})
		return err
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Recorded drink",
		"date", date.String(), "item_id", itemID, "member_id", memberID, "quantity", qty)
	return nil
}
