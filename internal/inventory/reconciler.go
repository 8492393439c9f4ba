// Package inventory applies counted tallies to the stock ledger.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"inventorycounter/internal/logger"
)

// Action is what a reconciliation does to stock.
type Action string

const (
	CheckIn  Action = "check-in"
	CheckOut Action = "check-out"
)

// ParseAction accepts "check-in"/"checkin" and "check-out"/"checkout".
func ParseAction(s string) (Action, error) {
	switch s {
	case "check-in", "checkin":
		return CheckIn, nil
	case "check-out", "checkout":
		return CheckOut, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

var ErrUnknownAction = errors.New("unknown inventory action")

// PersistError means the store refused a quantity. The in-memory ledger was
// not changed for Item.
type PersistError struct {
	Item     string
	Quantity int
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s=%d: %v", e.Item, e.Quantity, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsPersistError reports whether err is or wraps a *PersistError.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}

// Store is the ledger persistence. Save must be an idempotent upsert keyed by item.
type Store interface {
	Load(ctx context.Context) (map[string]int, error)
	Save(ctx context.Context, item string, quantity int) error
}

// Result describes one Apply call.
type Result struct {
	Action    Action         `json:"action"`
	Updated   map[string]int `json:"updated"`   // item -> new quantity
	Applied   map[string]int `json:"applied"`   // item -> count moved
	Rejected  []string       `json:"rejected"`  // check-out over stock
	Unapplied []string       `json:"unapplied"` // not reached because of a persist failure
}

// Reconciler owns the in-memory ledger. Every change is saved to the store
// before it becomes visible in memory.
type Reconciler struct {
	mu     sync.Mutex
	ledger map[string]int
	store  Store
	logger *logger.Logger
}

// NewReconciler loads the ledger from store.
func NewReconciler(ctx context.Context, store Store, logger *logger.Logger) (*Reconciler, error) {
	ledger, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	if ledger == nil {
		ledger = make(map[string]int)
	}
	logger.Info("📦 Inventory loaded: %d item(s)", len(ledger))

	return &Reconciler{
		ledger: ledger,
		store:  store,
		logger: logger,
	}, nil
}

// Apply adds (check-in) or removes (check-out) each tallied count. Items are
// independent: a check-out that would go negative is rejected for that item
// only. A store failure stops the batch and returns a *PersistError; items
// applied before it stay applied.
func (r *Reconciler) Apply(ctx context.Context, tally map[string]int, action Action) (Result, error) {
	if action != CheckIn && action != CheckOut {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	result := Result{
		Action:  action,
		Updated: make(map[string]int),
		Applied: make(map[string]int),
	}

	items := make([]string, 0, len(tally))
	for item, count := range tally {
		if count > 0 {
			items = append(items, item)
		}
	}
	sort.Strings(items)

	for i, item := range items {
		count := tally[item]
		current := r.ledger[item]

		var quantity int
		switch action {
		case CheckIn:
			quantity = current + count
		case CheckOut:
			if current < count {
				r.logger.Warning("Not enough %s in inventory to check out (have %d, need %d)", item, current, count)
				result.Rejected = append(result.Rejected, item)
				continue
			}
			quantity = current - count
		}

		if err := r.store.Save(ctx, item, quantity); err != nil {
			result.Unapplied = append(result.Unapplied, items[i:]...)
			r.logger.Error("Failed to save %s=%d: %v", item, quantity, err)
			return result, &PersistError{Item: item, Quantity: quantity, Err: err}
		}

		r.ledger[item] = quantity
		result.Updated[item] = quantity
		result.Applied[item] = count
	}

	r.logger.Info("✅ %s applied: %d updated, %d rejected", action, len(result.Updated), len(result.Rejected))
	return result, nil
}
