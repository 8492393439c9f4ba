package session

import (
	"context"
	"errors"
	"testing"

	"inventorycounter/internal/inventory"
)

type fakeReconciler struct {
	calls   int
	tallies []map[string]int
	actions []inventory.Action
	err     error
}

func (f *fakeReconciler) Apply(ctx context.Context, tally map[string]int, action inventory.Action) (inventory.Result, error) {
	f.calls++
	copied := make(map[string]int, len(tally))
	for k, v := range tally {
		copied[k] = v
	}
	f.tallies = append(f.tallies, copied)
	f.actions = append(f.actions, action)
	return inventory.Result{Action: action, Updated: copied}, f.err
}

func TestStop_IdleEmptyTallyNothingToReconcile(t *testing.T) {
	r := &fakeReconciler{}
	s := New(r)

	outcome, err := s.Stop(context.Background(), inventory.CheckIn)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !outcome.NothingDetected {
		t.Error("Expected NothingDetected")
	}
	if r.calls != 0 {
		t.Errorf("Expected no reconciliation, got %d calls", r.calls)
	}
	if outcome.Message() != "No items detected to process." {
		t.Errorf("Unexpected message %q", outcome.Message())
	}
}

func TestSession_CountAndStop(t *testing.T) {
	r := &fakeReconciler{}
	s := New(r)

	if !s.Start() {
		t.Fatal("Expected Start to transition")
	}
	s.OnFrame([]string{"box", "apple"})
	s.OnFrame([]string{"box"})

	if s.Tally().Summary() != "apple: 1, box: 2" {
		t.Errorf("Unexpected summary %q", s.Tally().Summary())
	}

	outcome, err := s.Stop(context.Background(), inventory.CheckOut)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if s.State() != Idle {
		t.Errorf("Expected Idle after stop, got %s", s.State())
	}
	if r.calls != 1 || r.actions[0] != inventory.CheckOut {
		t.Fatalf("Expected one check-out reconciliation, got %d %v", r.calls, r.actions)
	}
	if r.tallies[0]["box"] != 2 || r.tallies[0]["apple"] != 1 {
		t.Errorf("Unexpected tally handed over: %v", r.tallies[0])
	}
	if outcome.Counted.Total() != 3 || outcome.SessionID == "" {
		t.Errorf("Unexpected outcome %+v", outcome)
	}
	if s.Tally().Total() != 0 {
		t.Errorf("Expected tally cleared, got %v", s.Tally())
	}
}

func TestOnFrame_IgnoredWhileIdle(t *testing.T) {
	s := New(&fakeReconciler{})

	s.OnFrame([]string{"box"})

	if s.Tally().Total() != 0 {
		t.Errorf("Frames outside a session must be discarded, got %v", s.Tally())
	}
}

func TestStart_WhileCountingIsNoop(t *testing.T) {
	s := New(&fakeReconciler{})

	s.Start()
	id := s.ID()
	s.OnFrame([]string{"box"})

	if s.Start() {
		t.Error("Second Start should report no transition")
	}
	if s.ID() != id {
		t.Error("Second Start must keep the session ID")
	}
	if s.Tally()["box"] != 1 {
		t.Errorf("Second Start must keep the tally, got %v", s.Tally())
	}
}

func TestStart_NewSessionGetsNewID(t *testing.T) {
	s := New(&fakeReconciler{})

	s.Start()
	first := s.ID()
	s.Stop(context.Background(), inventory.CheckIn)
	s.Start()

	if s.ID() == first {
		t.Error("Expected a new session ID")
	}
}

func TestStop_ReconcilerErrorReported(t *testing.T) {
	r := &fakeReconciler{err: &inventory.PersistError{Item: "box", Err: errors.New("io")}}
	s := New(r)

	s.Start()
	s.OnFrame([]string{"box"})
	outcome, err := s.Stop(context.Background(), inventory.CheckIn)

	if !inventory.IsPersistError(err) {
		t.Fatalf("Expected PersistError, got %v", err)
	}
	if outcome.Error == "" || s.State() != Idle {
		t.Errorf("Expected error in outcome and Idle state, got %+v / %s", outcome, s.State())
	}
}

func TestStop_UnknownActionKeepsCounting(t *testing.T) {
	s := New(&fakeReconciler{})
	s.Start()
	s.OnFrame([]string{"box"})

	_, err := s.Stop(context.Background(), inventory.Action("move"))

	if !errors.Is(err, inventory.ErrUnknownAction) {
		t.Fatalf("Expected ErrUnknownAction, got %v", err)
	}
	if s.State() != Counting || s.Tally()["box"] != 1 {
		t.Error("Unknown action must not change the session")
	}
}
