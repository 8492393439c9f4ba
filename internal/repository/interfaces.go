package repository

import (
	"context"

	"inventorycounter/internal/model"
)

// LedgerRepository persists item quantities keyed by item name.
type LedgerRepository interface {
	// Load returns every item's quantity.
	Load(ctx context.Context) (map[string]int, error)
	// Save upserts one item; repeating it with the same value is harmless.
	Save(ctx context.Context, item string, quantity int) error

	GetAll(ctx context.Context) ([]model.Item, error)
	Get(ctx context.Context, item string) (*model.Item, error)
}

// MovementRepository journals reconciled items.
type MovementRepository interface {
	InsertBatch(ctx context.Context, movements []model.Movement) error

	GetRecent(ctx context.Context, limit int) ([]model.Movement, error)
	GetBySession(ctx context.Context, sessionID string) ([]model.Movement, error)
}

// EvidenceRepository indexes evidence frames written to disk.
type EvidenceRepository interface {
	Insert(ctx context.Context, evidence *model.Evidence) (int64, error)

	GetByID(ctx context.Context, id int64) (*model.Evidence, error)
	GetAll(ctx context.Context, filter model.EvidenceFilter) ([]model.Evidence, error)
}
