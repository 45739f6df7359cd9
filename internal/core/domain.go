package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
)

// DateLayout is the canonical storage format for ledger dates.
const DateLayout = "2006-01-02"

type (
	MealType string

	Date struct {
		time.Time
	}

	// Member is a mess subscriber. Contribution is the credit paid in,
	// TotalDue accumulates every cost posted against the member.
	Member struct {
		ID           int64
		Name         string
		Rank         string
		Contribution decimal.Decimal
		TotalDue     decimal.Decimal
		Registered   Date
	}

	// Item is a purchased stock item. Remaining tracks depletable stock
	// (quantity - consumption at every stable state). The two flags
	// classify items as overhead (miscellaneous) or drinks.
	Item struct {
		ID            int64
		Name          string
		Quantity      int64
		Price         decimal.Decimal
		TotalPrice    decimal.Decimal
		Consumption   int64
		Remaining     int64
		Miscellaneous bool
		Drink         bool
		Acquired      Date
	}

	// MealRecord is one member's share of one meal event.
	MealRecord struct {
		ID        int64
		MealType  MealType
		Date      Date
		MemberID  int64
		FinalCost decimal.Decimal
	}

	DrinkRecord struct {
		ID        int64
		Date      Date
		DrinkName string
		MemberID  int64
		Quantity  int64
		TotalCost decimal.Decimal
	}

	// MealExtra is an ad-hoc miscellaneous charge tied to a single meal
	// event, split equally across the attending members.
	MealExtra struct {
		ID           int64
		Date         Date
		Amount       decimal.Decimal
		MealType     MealType
		MealRecordID int64
		MemberID     int64
	}

	// MiscContribution is one member's allocated share of the pooled
	// miscellaneous costs, pro-rated by meal count.
	MiscContribution struct {
		ID               int64
		MemberID         int64
		Amount           decimal.Decimal
		MealCount        int
		DistributionDate Date
	}

	// ArchivePeriod groups archived snapshots under a date range. A zero
	// End marks the period as still open; at most one open period exists.
	ArchivePeriod struct {
		ID         int64
		Name       string
		Start      Date
		End        Date
		ArchivedAt time.Time
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEmptyName           = errors.New("empty name")
	ErrDuplicateMember     = errors.New("member already exists")
	ErrNotFound            = errors.New("not found")
	ErrNoMembersSelected   = errors.New("no members selected")
	ErrNoAllocationBasis   = errors.New("no meal records to allocate against")
	ErrNothingToDistribute = errors.New("no miscellaneous items to distribute")
	ErrNoTransactionDate   = errors.New("no transaction dates in live tables")
	ErrInsufficientStock   = errors.New("requested quantity exceeds remaining stock")
	ErrPeriodNotFound      = errors.New("archive period not found")
)

// NewDate builds a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses the canonical YYYY-MM-DD storage format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Before reports whether d is strictly earlier than other by calendar day.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

func (mt MealType) Validate() error {
	switch mt {
	case Breakfast, Lunch, Dinner:
		return nil
	default:
		return errors.New("invalid meal type")
	}
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	if m.Contribution.IsNegative() {
		return ErrInvalidAmount
	}
	return m.Registered.Validate()
}

func (it Item) Validate() error {
	if strings.TrimSpace(it.Name) == "" {
		return ErrEmptyName
	}
	if it.Quantity < 0 || it.Consumption < 0 {
		return errors.New("negative quantity")
	}
	if it.Price.IsNegative() || it.TotalPrice.IsNegative() {
		return ErrInvalidAmount
	}
	return it.Acquired.Validate()
}

// Normalize applies the ledger's self-correction rules: remaining is
// always quantity minus consumption, and the unit price is re-derived
// from the total when the two disagree. Returns true if anything changed.
func (it *Item) Normalize() bool {
	changed := false
	if want := it.Quantity - it.Consumption; it.Remaining != want {
		it.Remaining = want
		changed = true
	}
	if it.Quantity > 0 {
		unit := it.TotalPrice.Div(decimal.NewFromInt(it.Quantity))
		if !it.Price.Equal(unit) {
			it.Price = unit
			changed = true
		}
	}
	return changed
}

// Open reports whether the period has not been closed yet.
func (p ArchivePeriod) Open() bool {
	return p.End.IsZero()
}
