package storage

import (
	"context"
	"fmt"

	"messbook/internal/core"
)

func (q *Queries) InsertMealRecord(ctx context.Context, rec core.MealRecord) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO meal_records (meal_type, date, member_id, final_cost) VALUES (?, ?, ?, ?)",
		string(rec.MealType), rec.Date.String(), rec.MemberID, decToDB(rec.FinalCost))
	if err != nil {
		return 0, fmt.Errorf("insert meal record: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) InsertDrinkRecord(ctx context.Context, rec core.DrinkRecord) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO drink_records (date, drink_name, member_id, quantity, total_cost) VALUES (?, ?, ?, ?, ?)",
		rec.Date.String(), rec.DrinkName, rec.MemberID, rec.Quantity, decToDB(rec.TotalCost))
	if err != nil {
		return 0, fmt.Errorf("insert drink record: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) InsertMealExtra(ctx context.Context, ex core.MealExtra) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO meal_extras (date, amount, meal_type, meal_record_id, member_id) VALUES (?, ?, ?, ?, ?)",
		ex.Date.String(), decToDB(ex.Amount), string(ex.MealType), ex.MealRecordID, ex.MemberID)
	if err != nil {
		return 0, fmt.Errorf("insert meal extra: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) InsertMiscContribution(ctx context.Context, c core.MiscContribution) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO misc_contributions (member_id, amount, meal_count, distribution_date) VALUES (?, ?, ?, ?)",
		c.MemberID, decToDB(c.Amount), c.MealCount, c.DistributionDate.String())
	if err != nil {
		return 0, fmt.Errorf("insert misc contribution: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) ListMealRecords(ctx context.Context) ([]core.MealRecord, error) {
	return q.listMealRecords(ctx,
		"SELECT meal_record_id, meal_type, date, member_id, final_cost FROM meal_records")
}

func (q *Queries) listMealRecords(ctx context.Context, query string, args ...any) ([]core.MealRecord, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list meal records: %w", err)
	}
	defer rows.Close()

	var recs []core.MealRecord
	for rows.Next() {
		var (
			rec      core.MealRecord
			mealType string
			date     string
			cost     string
		)
		if err := rows.Scan(&rec.ID, &mealType, &date, &rec.MemberID, &cost); err != nil {
			return nil, fmt.Errorf("scan meal record: %w", err)
		}
		rec.MealType = core.MealType(mealType)
		if rec.Date, err = core.ParseDate(date); err != nil {
			return nil, err
		}
		if rec.FinalCost, err = decFromDB(cost); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (q *Queries) ListDrinkRecords(ctx context.Context) ([]core.DrinkRecord, error) {
	return q.listDrinkRecords(ctx,
		"SELECT drink_record_id, date, drink_name, member_id, quantity, total_cost FROM drink_records")
}

func (q *Queries) listDrinkRecords(ctx context.Context, query string, args ...any) ([]core.DrinkRecord, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list drink records: %w", err)
	}
	defer rows.Close()

	var recs []core.DrinkRecord
	for rows.Next() {
		var (
			rec  core.DrinkRecord
			date string
			cost string
		)
		if err := rows.Scan(&rec.ID, &date, &rec.DrinkName, &rec.MemberID, &rec.Quantity, &cost); err != nil {
			return nil, fmt.Errorf("scan drink record: %w", err)
		}
		if rec.Date, err = core.ParseDate(date); err != nil {
			return nil, err
		}
		if rec.TotalCost, err = decFromDB(cost); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// MiscContributionsByDate returns the live contribution rows stamped
// with the given distribution date.
func (q *Queries) MiscContributionsByDate(ctx context.Context, date core.Date) ([]core.MiscContribution, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT contribution_id, member_id, amount, meal_count, distribution_date
		 FROM misc_contributions WHERE distribution_date = ?`, date.String())
	if err != nil {
		return nil, fmt.Errorf("list misc contributions: %w", err)
	}
	defer rows.Close()

	var contributions []core.MiscContribution
	for rows.Next() {
		var (
			c      core.MiscContribution
			amount string
			d      string
		)
		if err := rows.Scan(&c.ID, &c.MemberID, &amount, &c.MealCount, &d); err != nil {
			return nil, fmt.Errorf("scan misc contribution: %w", err)
		}
		if c.Amount, err = decFromDB(amount); err != nil {
			return nil, err
		}
		if c.DistributionDate, err = core.ParseDate(d); err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}

// MealCountsByMember is the allocation basis for the proportional
// miscellaneous distribution.
func (q *Queries) MealCountsByMember(ctx context.Context) (map[int64]int, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT member_id, COUNT(*) FROM meal_records GROUP BY member_id")
	if err != nil {
		return nil, fmt.Errorf("count meals by member: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			memberID int64
			n        int
		)
		if err := rows.Scan(&memberID, &n); err != nil {
			return nil, fmt.Errorf("scan meal count: %w", err)
		}
		counts[memberID] = n
	}
	return counts, rows.Err()
}

// FirstTransactionDate returns the earliest date across meal records,
// drink records and items; core.ErrNoTransactionDate when all three are
// empty.
func (q *Queries) FirstTransactionDate(ctx context.Context) (core.Date, error) {
	var earliest core.Date
	for _, query := range []string{
		"SELECT MIN(date) FROM meal_records",
		"SELECT MIN(date) FROM drink_records",
		"SELECT MIN(date) FROM items",
	} {
		var raw *string
		if err := q.db.QueryRowContext(ctx, query).Scan(&raw); err != nil {
			return core.Date{}, fmt.Errorf("read earliest date: %w", err)
		}
		if raw == nil {
			continue
		}
		d, err := core.ParseDate(*raw)
		if err != nil {
			return core.Date{}, err
		}
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	if earliest.IsZero() {
		return core.Date{}, core.ErrNoTransactionDate
	}
	return earliest, nil
}

// clearable whitelists the live tables the bulk-clear operation may touch.
var clearable = map[string]bool{
	"members":       true,
	"items":         true,
	"meal_records":  true,
	"drink_records": true,
	"meal_extras":   true,
}

func (q *Queries) ClearTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if !clearable[table] {
			return fmt.Errorf("table %q cannot be cleared", table)
		}
		if _, err := q.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
