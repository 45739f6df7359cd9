package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"messbook/internal/core"
)

const memberColumns = "member_id, name, rank, contribution, total_due, date"

func scanMember(row interface{ Scan(...any) error }) (core.Member, error) {
	var (
		m            core.Member
		contribution string
		totalDue     string
		date         string
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Rank, &contribution, &totalDue, &date); err != nil {
		return core.Member{}, err
	}
	var err error
	if m.Contribution, err = decFromDB(contribution); err != nil {
		return core.Member{}, err
	}
	if m.TotalDue, err = decFromDB(totalDue); err != nil {
		return core.Member{}, err
	}
	if m.Registered, err = core.ParseDate(date); err != nil {
		return core.Member{}, err
	}
	return m, nil
}

func (q *Queries) CreateMember(ctx context.Context, m core.Member) (int64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	var n int64
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM members WHERE name = ?", m.Name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("check member name: %w", err)
	}
	if n > 0 {
		return 0, core.ErrDuplicateMember
	}

	res, err := q.db.ExecContext(ctx,
		"INSERT INTO members (name, rank, contribution, total_due, date) VALUES (?, ?, ?, ?, ?)",
		m.Name, m.Rank, decToDB(m.Contribution), decToDB(m.TotalDue), m.Registered.String())
	if err != nil {
		return 0, fmt.Errorf("insert member: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) MemberByID(ctx context.Context, id int64) (core.Member, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM members WHERE member_id = ?", id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, core.ErrNotFound
	}
	if err != nil {
		return core.Member{}, fmt.Errorf("get member %d: %w", id, err)
	}
	return m, nil
}

func (q *Queries) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+memberColumns+" FROM members ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (q *Queries) UpdateMember(ctx context.Context, m core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE members SET name = ?, rank = ?, contribution = ?, total_due = ? WHERE member_id = ?",
		m.Name, m.Rank, decToDB(m.Contribution), decToDB(m.TotalDue), m.ID)
	if err != nil {
		return fmt.Errorf("update member %d: %w", m.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q *Queries) DeleteMember(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM members WHERE member_id = ?", id)
	if err != nil {
		return fmt.Errorf("delete member %d: %w", id, err)
	}
	return nil
}

// AddMemberDue increments a member's accumulated debit. The amount is
// read, added in Go and written back; money columns never see SQL
// arithmetic.
func (q *Queries) AddMemberDue(ctx context.Context, id int64, amount decimal.Decimal) error {
	var current string
	err := q.db.QueryRowContext(ctx, "SELECT total_due FROM members WHERE member_id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read total_due for member %d: %w", id, err)
	}
	due, err := decFromDB(current)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, "UPDATE members SET total_due = ? WHERE member_id = ?",
		decToDB(due.Add(amount)), id)
	if err != nil {
		return fmt.Errorf("update total_due for member %d: %w", id, err)
	}
	return nil
}
