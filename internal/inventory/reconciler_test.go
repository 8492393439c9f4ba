package inventory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"inventorycounter/internal/logger"
)

type saveCall struct {
	item     string
	quantity int
}

type fakeStore struct {
	initial map[string]int
	saves   []saveCall
	failOn  string
	loadErr error
}

func (f *fakeStore) Load(ctx context.Context) (map[string]int, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make(map[string]int, len(f.initial))
	for k, v := range f.initial {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) Save(ctx context.Context, item string, quantity int) error {
	if item == f.failOn {
		return errors.New("disk full")
	}
	f.saves = append(f.saves, saveCall{item, quantity})
	return nil
}

func newReconciler(t *testing.T, store *fakeStore) *Reconciler {
	t.Helper()
	r, err := NewReconciler(context.Background(), store, logger.Discard())
	if err != nil {
		t.Fatalf("NewReconciler failed: %v", err)
	}
	return r
}

func TestApply_CheckInAddsAndPersistsOnce(t *testing.T) {
	store := &fakeStore{initial: map[string]int{"apple": 2}}
	r := newReconciler(t, store)

	result, err := r.Apply(context.Background(), map[string]int{"apple": 3}, CheckIn)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if result.Updated["apple"] != 5 {
		t.Errorf("Expected apple=5, got %d", result.Updated["apple"])
	}
	if r.ledger["apple"] != 5 {
		t.Errorf("Expected ledger apple=5, got %d", r.ledger["apple"])
	}
	if !reflect.DeepEqual(store.saves, []saveCall{{"apple", 5}}) {
		t.Errorf("Expected one save apple=5, got %+v", store.saves)
	}
}

func TestApply_CheckInNewItem(t *testing.T) {
	store := &fakeStore{}
	r := newReconciler(t, store)

	if _, err := r.Apply(context.Background(), map[string]int{"box": 1}, CheckIn); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if r.ledger["box"] != 1 {
		t.Errorf("Expected box=1, got %d", r.ledger["box"])
	}
}

func TestApply_CheckOutOverStockRejected(t *testing.T) {
	store := &fakeStore{initial: map[string]int{"apple": 2}}
	r := newReconciler(t, store)

	result, err := r.Apply(context.Background(), map[string]int{"apple": 5}, CheckOut)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if !reflect.DeepEqual(result.Rejected, []string{"apple"}) {
		t.Errorf("Expected apple rejected, got %v", result.Rejected)
	}
	if r.ledger["apple"] != 2 {
		t.Errorf("Ledger must be unchanged, got %d", r.ledger["apple"])
	}
	if len(store.saves) != 0 {
		t.Errorf("Expected no persist call, got %+v", store.saves)
	}
}

func TestApply_CheckOutPartialBatch(t *testing.T) {
	store := &fakeStore{initial: map[string]int{"apple": 2, "box": 10}}
	r := newReconciler(t, store)

	result, err := r.Apply(context.Background(), map[string]int{"apple": 5, "box": 4}, CheckOut)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if result.Updated["box"] != 6 || r.ledger["box"] != 6 {
		t.Errorf("Expected box=6, got result %d ledger %d", result.Updated["box"], r.ledger["box"])
	}
	if !reflect.DeepEqual(result.Rejected, []string{"apple"}) {
		t.Errorf("Expected apple rejected, got %v", result.Rejected)
	}
}

func TestApply_CheckOutExactStockReachesZero(t *testing.T) {
	store := &fakeStore{initial: map[string]int{"apple": 3}}
	r := newReconciler(t, store)

	if _, err := r.Apply(context.Background(), map[string]int{"apple": 3}, CheckOut); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if r.ledger["apple"] != 0 {
		t.Errorf("Expected apple=0, got %d", r.ledger["apple"])
	}
}

func TestApply_PersistFailureStopsBatch(t *testing.T) {
	store := &fakeStore{initial: map[string]int{"apple": 1}, failOn: "box"}
	r := newReconciler(t, store)

	tally := map[string]int{"apple": 1, "box": 2, "crate": 3}
	result, err := r.Apply(context.Background(), tally, CheckIn)

	if !IsPersistError(err) {
		t.Fatalf("Expected PersistError, got %v", err)
	}
	var pe *PersistError
	errors.As(err, &pe)
	if pe.Item != "box" {
		t.Errorf("Expected failing item box, got %s", pe.Item)
	}

	if r.ledger["apple"] != 2 {
		t.Errorf("Applied item must stay applied, got apple=%d", r.ledger["apple"])
	}
	if r.ledger["box"] != 0 || r.ledger["crate"] != 0 {
		t.Errorf("Unsaved items must not change in memory, got %v", r.ledger)
	}
	if !reflect.DeepEqual(result.Unapplied, []string{"box", "crate"}) {
		t.Errorf("Expected box and crate unapplied, got %v", result.Unapplied)
	}
}

func TestApply_UnknownAction(t *testing.T) {
	r := newReconciler(t, &fakeStore{})

	_, err := r.Apply(context.Background(), map[string]int{"apple": 1}, Action("move"))
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Expected ErrUnknownAction, got %v", err)
	}
}

func TestNewReconciler_LoadError(t *testing.T) {
	_, err := NewReconciler(context.Background(), &fakeStore{loadErr: errors.New("locked")}, logger.Discard())
	if err == nil {
		t.Error("Expected load error")
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		input   string
		want    Action
		wantErr bool
	}{
		{"check-in", CheckIn, false},
		{"checkin", CheckIn, false},
		{"check-out", CheckOut, false},
		{"checkout", CheckOut, false},
		{"restock", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAction(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseAction(%q) = %q, %v", tt.input, got, err)
		}
	}
}
