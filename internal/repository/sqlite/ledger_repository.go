package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"inventorycounter/internal/model"
)

// LedgerRepository implements repository.LedgerRepository for SQLite.
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new SQLite ledger repository.
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Load returns every item's quantity.
func (r *LedgerRepository) Load(ctx context.Context) (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `SELECT item_name, quantity FROM inventory`)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	ledger := make(map[string]int)
	for rows.Next() {
		var name string
		var quantity int
		if err := rows.Scan(&name, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}
		ledger[name] = quantity
	}
	return ledger, rows.Err()
}

// Save upserts an item's quantity. Each call is its own transaction.
func (r *LedgerRepository) Save(ctx context.Context, item string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("refusing negative quantity %d for %s", quantity, item)
	}

	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO inventory (item_name, quantity, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(item_name) DO UPDATE SET quantity = excluded.quantity, updated_at = excluded.updated_at
	`, item, quantity)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", item, err)
	}
	return nil
}

// GetAll returns every item ordered by name.
func (r *LedgerRepository) GetAll(ctx context.Context) ([]model.Item, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT item_name, quantity, updated_at FROM inventory ORDER BY item_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.Name, &item.Quantity, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get returns one item, or nil when it has never been stocked.
func (r *LedgerRepository) Get(ctx context.Context, name string) (*model.Item, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var item model.Item
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT item_name, quantity, updated_at FROM inventory WHERE item_name = ?
	`, name).Scan(&item.Name, &item.Quantity, &item.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}
