package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"messbook/internal/core"
)

const itemColumns = "item_id, item_name, quantity, price, total_price, consumption, remaining, is_miscellaneous, is_drink, date"

func scanItem(row interface{ Scan(...any) error }) (core.Item, error) {
	var (
		it          core.Item
		price       string
		totalPrice  string
		misc, drink int64
		date        string
	)
	err := row.Scan(&it.ID, &it.Name, &it.Quantity, &price, &totalPrice,
		&it.Consumption, &it.Remaining, &misc, &drink, &date)
	if err != nil {
		return core.Item{}, err
	}
	if it.Price, err = decFromDB(price); err != nil {
		return core.Item{}, err
	}
	if it.TotalPrice, err = decFromDB(totalPrice); err != nil {
		return core.Item{}, err
	}
	if it.Acquired, err = core.ParseDate(date); err != nil {
		return core.Item{}, err
	}
	it.Miscellaneous = misc != 0
	it.Drink = drink != 0
	return it, nil
}

func (q *Queries) CreateItem(ctx context.Context, it core.Item) (int64, error) {
	if err := it.Validate(); err != nil {
		return 0, err
	}
	it.Normalize()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO items (item_name, quantity, price, total_price, consumption, remaining, is_miscellaneous, is_drink, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.Name, it.Quantity, decToDB(it.Price), decToDB(it.TotalPrice),
		it.Consumption, it.Remaining, boolToDB(it.Miscellaneous), boolToDB(it.Drink), it.Acquired.String())
	if err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateItem(ctx context.Context, it core.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	it.Normalize()
	res, err := q.db.ExecContext(ctx,
		`UPDATE items SET item_name = ?, quantity = ?, price = ?, total_price = ?, consumption = ?,
		        remaining = ?, is_miscellaneous = ?, is_drink = ?, date = ?
		 WHERE item_id = ?`,
		it.Name, it.Quantity, decToDB(it.Price), decToDB(it.TotalPrice), it.Consumption,
		it.Remaining, boolToDB(it.Miscellaneous), boolToDB(it.Drink), it.Acquired.String(), it.ID)
	if err != nil {
		return fmt.Errorf("update item %d: %w", it.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q *Queries) DeleteItem(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM items WHERE item_id = ?", id)
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	return nil
}

func (q *Queries) ItemByID(ctx context.Context, id int64) (core.Item, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE item_id = ?", id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Item{}, core.ErrNotFound
	}
	if err != nil {
		return core.Item{}, fmt.Errorf("get item %d: %w", id, err)
	}
	return it, nil
}

func (q *Queries) ItemByName(ctx context.Context, name string) (core.Item, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE item_name = ?", name)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Item{}, core.ErrNotFound
	}
	if err != nil {
		return core.Item{}, fmt.Errorf("get item %q: %w", name, err)
	}
	return it, nil
}

func (q *Queries) listItems(ctx context.Context, query string, args ...any) ([]core.Item, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (q *Queries) ListItems(ctx context.Context) ([]core.Item, error) {
	return q.listItems(ctx, "SELECT "+itemColumns+" FROM items ORDER BY date DESC, item_name")
}

// MiscellaneousItems returns the overhead purchases awaiting distribution.
func (q *Queries) MiscellaneousItems(ctx context.Context) ([]core.Item, error) {
	return q.listItems(ctx, "SELECT "+itemColumns+" FROM items WHERE is_miscellaneous = 1")
}

// StockItems returns non-miscellaneous purchases (meal items and drinks).
func (q *Queries) StockItems(ctx context.Context) ([]core.Item, error) {
	return q.listItems(ctx, "SELECT "+itemColumns+" FROM items WHERE is_miscellaneous = 0")
}

// MealItems returns consumable items offered at meals.
func (q *Queries) MealItems(ctx context.Context) ([]core.Item, error) {
	return q.listItems(ctx, "SELECT "+itemColumns+" FROM items WHERE is_miscellaneous = 0 AND is_drink = 0")
}

func (q *Queries) DrinkItems(ctx context.Context) ([]core.Item, error) {
	return q.listItems(ctx, "SELECT "+itemColumns+" FROM items WHERE is_drink = 1")
}

// ConsumeItem depletes stock for one item. Fails with
// core.ErrInsufficientStock before touching the row when the request
// exceeds what remains.
func (q *Queries) ConsumeItem(ctx context.Context, id int64, qty int64) error {
	it, err := q.ItemByID(ctx, id)
	if err != nil {
		return err
	}
	if qty <= 0 || qty > it.Remaining {
		return fmt.Errorf("item %q: %w", it.Name, core.ErrInsufficientStock)
	}
	_, err = q.db.ExecContext(ctx,
		"UPDATE items SET consumption = consumption + ?, remaining = remaining - ? WHERE item_id = ?",
		qty, qty, id)
	if err != nil {
		return fmt.Errorf("consume item %d: %w", id, err)
	}
	return nil
}

// ResetStockRemaining zeroes the remaining counter on non-miscellaneous
// rows so a new period starts its consumption tracking from scratch.
func (q *Queries) ResetStockRemaining(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := "UPDATE items SET remaining = 0 WHERE is_miscellaneous = 0 AND item_id IN (" + placeholders(len(ids)) + ")"
	if _, err := q.db.ExecContext(ctx, query, idArgs(ids)...); err != nil {
		return fmt.Errorf("reset remaining: %w", err)
	}
	return nil
}

func (q *Queries) DeleteItems(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := "DELETE FROM items WHERE item_id IN (" + placeholders(len(ids)) + ")"
	if _, err := q.db.ExecContext(ctx, query, idArgs(ids)...); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	return nil
}
