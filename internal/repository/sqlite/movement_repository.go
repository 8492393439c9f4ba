package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"inventorycounter/internal/model"
)

// MovementRepository implements repository.MovementRepository for SQLite.
type MovementRepository struct {
	db *DB
}

// NewMovementRepository creates a new SQLite movement repository.
func NewMovementRepository(db *DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// InsertBatch adds multiple movements in a single transaction.
func (r *MovementRepository) InsertBatch(ctx context.Context, movements []model.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO movements (session_id, item_name, action, delta, quantity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range movements {
		if _, err := stmt.ExecContext(ctx, m.SessionID, m.Item, m.Action, m.Delta, m.Quantity, m.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert movement: %w", err)
		}
	}

	return tx.Commit()
}

// GetRecent returns the newest movements first.
func (r *MovementRepository) GetRecent(ctx context.Context, limit int) ([]model.Movement, error) {
	if limit <= 0 {
		limit = 50
	}

	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, session_id, item_name, action, delta, quantity, created_at
		FROM movements ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

// GetBySession returns the movements one session produced.
func (r *MovementRepository) GetBySession(ctx context.Context, sessionID string) ([]model.Movement, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, session_id, item_name, action, delta, quantity, created_at
		FROM movements WHERE session_id = ? ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

func scanMovements(rows *sql.Rows) ([]model.Movement, error) {
	var movements []model.Movement
	for rows.Next() {
		var m model.Movement
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Item, &m.Action, &m.Delta, &m.Quantity, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
