package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"messbook/internal/core"
)

const periodTimeLayout = "2006-01-02 15:04:05"

func scanPeriod(row interface{ Scan(...any) error }) (core.ArchivePeriod, error) {
	var (
		p          core.ArchivePeriod
		start      string
		end        *string
		archivedAt *string
	)
	if err := row.Scan(&p.ID, &p.Name, &start, &end, &archivedAt); err != nil {
		return core.ArchivePeriod{}, err
	}
	var err error
	if p.Start, err = core.ParseDate(start); err != nil {
		return core.ArchivePeriod{}, err
	}
	if end != nil {
		if p.End, err = core.ParseDate(*end); err != nil {
			return core.ArchivePeriod{}, err
		}
	}
	if archivedAt != nil {
		t, err := time.Parse(periodTimeLayout, *archivedAt)
		if err != nil {
			return core.ArchivePeriod{}, fmt.Errorf("decode archived_at: %w", err)
		}
		p.ArchivedAt = t
	}
	return p, nil
}

// FindPeriodContaining looks up the archive period whose date range
// covers d; open periods (NULL end date) match any date at or after
// their start.
func (q *Queries) FindPeriodContaining(ctx context.Context, d core.Date) (core.ArchivePeriod, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT period_id, name, start_date, end_date, archived_at FROM archive_periods
		 WHERE start_date <= ? AND (end_date IS NULL OR end_date >= ?)`,
		d.String(), d.String())
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ArchivePeriod{}, core.ErrPeriodNotFound
	}
	if err != nil {
		return core.ArchivePeriod{}, fmt.Errorf("find period for %s: %w", d, err)
	}
	return p, nil
}

func (q *Queries) CreatePeriod(ctx context.Context, p core.ArchivePeriod) (int64, error) {
	var end any
	if !p.End.IsZero() {
		end = p.End.String()
	}
	var archivedAt any
	if !p.ArchivedAt.IsZero() {
		archivedAt = p.ArchivedAt.Format(periodTimeLayout)
	}
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO archive_periods (name, start_date, end_date, archived_at) VALUES (?, ?, ?, ?)",
		p.Name, p.Start.String(), end, archivedAt)
	if err != nil {
		return 0, fmt.Errorf("insert archive period: %w", err)
	}
	return res.LastInsertId()
}

// ClosePeriod stamps the end date and archival time on an open period.
// Already-closed periods are left untouched, which makes repeated
// resolution within a day a no-op.
func (q *Queries) ClosePeriod(ctx context.Context, id int64, end core.Date, archivedAt time.Time) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE archive_periods SET end_date = ?, archived_at = ? WHERE period_id = ? AND end_date IS NULL",
		end.String(), archivedAt.Format(periodTimeLayout), id)
	if err != nil {
		return fmt.Errorf("close period %d: %w", id, err)
	}
	return nil
}

func (q *Queries) PeriodByID(ctx context.Context, id int64) (core.ArchivePeriod, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT period_id, name, start_date, end_date, archived_at FROM archive_periods WHERE period_id = ?", id)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ArchivePeriod{}, core.ErrPeriodNotFound
	}
	if err != nil {
		return core.ArchivePeriod{}, fmt.Errorf("get period %d: %w", id, err)
	}
	return p, nil
}

// ListPeriods returns archive periods newest first.
func (q *Queries) ListPeriods(ctx context.Context) ([]core.ArchivePeriod, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT period_id, name, start_date, end_date, archived_at FROM archive_periods ORDER BY archived_at DESC, period_id DESC")
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	var periods []core.ArchivePeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}
