package storage

import (
	"context"
	"fmt"

	"messbook/internal/core"
)

// Mirror upserts follow one shape: delete any prior mirror row for the
// same (original id, period), then copy the live row under the period
// key. Column lists are static per entity; nothing is generated from
// schema introspection.

// ArchiveItems mirrors the given live item rows under the period key.
func (q *Queries) ArchiveItems(ctx context.Context, ids []int64, periodID int64) error {
	if len(ids) == 0 {
		return nil
	}
	ph := placeholders(len(ids))
	args := append([]any{periodID}, idArgs(ids)...)

	_, err := q.db.ExecContext(ctx,
		"DELETE FROM items_archive WHERE period_id = ? AND item_id IN ("+ph+")", args...)
	if err != nil {
		return fmt.Errorf("clear item mirrors: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO items_archive (item_id, item_name, quantity, price, total_price, consumption, remaining, is_miscellaneous, is_drink, date, period_id)
		 SELECT item_id, item_name, quantity, price, total_price, consumption, remaining, is_miscellaneous, is_drink, date, ?
		 FROM items WHERE item_id IN (`+ph+")", args...)
	if err != nil {
		return fmt.Errorf("archive items: %w", err)
	}
	return nil
}

// ArchiveAllMembers snapshots every member row under the period key so
// an archived report is self-contained.
func (q *Queries) ArchiveAllMembers(ctx context.Context, periodID int64) error {
	_, err := q.db.ExecContext(ctx,
		"DELETE FROM members_archive WHERE period_id = ? AND member_id IN (SELECT member_id FROM members)", periodID)
	if err != nil {
		return fmt.Errorf("clear member mirrors: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO members_archive (member_id, name, rank, contribution, total_due, date, period_id)
		 SELECT member_id, name, rank, contribution, total_due, date, ? FROM members`, periodID)
	if err != nil {
		return fmt.Errorf("archive members: %w", err)
	}
	return nil
}

func (q *Queries) ArchiveAllMealRecords(ctx context.Context, periodID int64) error {
	_, err := q.db.ExecContext(ctx,
		"DELETE FROM meal_records_archive WHERE period_id = ? AND meal_record_id IN (SELECT meal_record_id FROM meal_records)", periodID)
	if err != nil {
		return fmt.Errorf("clear meal record mirrors: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO meal_records_archive (meal_record_id, meal_type, date, member_id, final_cost, period_id)
		 SELECT meal_record_id, meal_type, date, member_id, final_cost, ? FROM meal_records`, periodID)
	if err != nil {
		return fmt.Errorf("archive meal records: %w", err)
	}
	return nil
}

func (q *Queries) DeleteAllMealRecords(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM meal_records"); err != nil {
		return fmt.Errorf("clear meal records: %w", err)
	}
	return nil
}

func (q *Queries) ArchiveAllDrinkRecords(ctx context.Context, periodID int64) error {
	_, err := q.db.ExecContext(ctx,
		"DELETE FROM drink_records_archive WHERE period_id = ? AND drink_record_id IN (SELECT drink_record_id FROM drink_records)", periodID)
	if err != nil {
		return fmt.Errorf("clear drink record mirrors: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO drink_records_archive (drink_record_id, date, drink_name, member_id, quantity, total_cost, period_id)
		 SELECT drink_record_id, date, drink_name, member_id, quantity, total_cost, ? FROM drink_records`, periodID)
	if err != nil {
		return fmt.Errorf("archive drink records: %w", err)
	}
	return nil
}

func (q *Queries) DeleteAllDrinkRecords(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM drink_records"); err != nil {
		return fmt.Errorf("clear drink records: %w", err)
	}
	return nil
}

// ArchiveMiscContributionsByDate mirrors the contribution rows stamped
// with the given distribution date.
func (q *Queries) ArchiveMiscContributionsByDate(ctx context.Context, date core.Date, periodID int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM misc_contributions_archive WHERE period_id = ?
		 AND contribution_id IN (SELECT contribution_id FROM misc_contributions WHERE distribution_date = ?)`,
		periodID, date.String())
	if err != nil {
		return fmt.Errorf("clear contribution mirrors: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO misc_contributions_archive (contribution_id, member_id, amount, meal_count, distribution_date, period_id)
		 SELECT contribution_id, member_id, amount, meal_count, distribution_date, ?
		 FROM misc_contributions WHERE distribution_date = ?`,
		periodID, date.String())
	if err != nil {
		return fmt.Errorf("archive misc contributions: %w", err)
	}
	return nil
}

// Archived reads, used by the report aggregator for closed periods.

func (q *Queries) ArchivedItems(ctx context.Context, periodID int64) ([]core.Item, error) {
	return q.listItems(ctx,
		"SELECT "+itemColumns+" FROM items_archive WHERE period_id = ?", periodID)
}

func (q *Queries) ArchivedMembers(ctx context.Context, periodID int64) ([]core.Member, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+memberColumns+" FROM members_archive WHERE period_id = ? ORDER BY name", periodID)
	if err != nil {
		return nil, fmt.Errorf("list archived members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archived member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (q *Queries) ArchivedMealRecords(ctx context.Context, periodID int64) ([]core.MealRecord, error) {
	return q.listMealRecords(ctx,
		"SELECT meal_record_id, meal_type, date, member_id, final_cost FROM meal_records_archive WHERE period_id = ?",
		periodID)
}

func (q *Queries) ArchivedDrinkRecords(ctx context.Context, periodID int64) ([]core.DrinkRecord, error) {
	return q.listDrinkRecords(ctx,
		"SELECT drink_record_id, date, drink_name, member_id, quantity, total_cost FROM drink_records_archive WHERE period_id = ?",
		periodID)
}

func (q *Queries) ArchivedMiscContributions(ctx context.Context, periodID int64) ([]core.MiscContribution, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT contribution_id, member_id, amount, meal_count, distribution_date
		 FROM misc_contributions_archive WHERE period_id = ?`, periodID)
	if err != nil {
		return nil, fmt.Errorf("list archived contributions: %w", err)
	}
	defer rows.Close()

	var contributions []core.MiscContribution
	for rows.Next() {
		var (
			c      core.MiscContribution
			amount string
			date   string
		)
		if err := rows.Scan(&c.ID, &c.MemberID, &amount, &c.MealCount, &date); err != nil {
			return nil, fmt.Errorf("scan archived contribution: %w", err)
		}
		if c.Amount, err = decFromDB(amount); err != nil {
			return nil, err
		}
		if c.DistributionDate, err = core.ParseDate(date); err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}
