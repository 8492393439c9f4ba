// Package session holds the start/stop counting state machine.
//
// A Session is Idle until Start, accumulates newly seen labels into a tally
// while Counting, and on Stop hands the tally to a Reconciler and returns to
// Idle. Session is not safe for concurrent use.
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"inventorycounter/internal/inventory"
)

// State is the session lifecycle position.
type State int

const (
	Idle State = iota
	Counting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Counting:
		return "counting"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Tally counts newly seen instances per class.
type Tally map[string]int

// Total returns the sum of all counts.
func (t Tally) Total() int {
	total := 0
	for _, count := range t {
		total += count
	}
	return total
}

// Clone returns an independent copy.
func (t Tally) Clone() Tally {
	out := make(Tally, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Summary renders "box: 2, apple: 1" sorted by class, or "No item detected".
func (t Tally) Summary() string {
	if len(t) == 0 {
		return "No item detected"
	}
	classes := make([]string, 0, len(t))
	for class := range t {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	parts := make([]string, len(classes))
	for i, class := range classes {
		parts[i] = fmt.Sprintf("%s: %d", class, t[class])
	}
	return strings.Join(parts, ", ")
}

// Reconciler applies a tally to inventory.
type Reconciler interface {
	Apply(ctx context.Context, tally map[string]int, action inventory.Action) (inventory.Result, error)
}

// Outcome is what Stop reports to the user.
type Outcome struct {
	SessionID       string            `json:"session_id"`
	Action          inventory.Action  `json:"action"`
	Counted         Tally             `json:"counted"`
	NothingDetected bool              `json:"nothing_detected"`
	Result          *inventory.Result `json:"result,omitempty"`
	Error           string            `json:"error,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	StoppedAt       time.Time         `json:"stopped_at"`
}

// Message is the one-line status shown after a stop.
func (o Outcome) Message() string {
	switch {
	case o.NothingDetected:
		return "No items detected to process."
	case o.Error != "":
		return fmt.Sprintf("%s failed: %s", o.Action, o.Error)
	case o.Result != nil && len(o.Result.Rejected) > 0:
		return fmt.Sprintf("%s completed, not enough stock for: %s", o.Action, strings.Join(o.Result.Rejected, ", "))
	}
	return fmt.Sprintf("%s completed", o.Action)
}

type Session struct {
	state      State
	tally      Tally
	id         string
	startedAt  time.Time
	reconciler Reconciler
	now        func() time.Time
}

// New creates an Idle session that reconciles through r.
func New(r Reconciler) *Session {
	return &Session{
		state:      Idle,
		tally:      make(Tally),
		reconciler: r,
		now:        time.Now,
	}
}

// Start moves Idle to Counting with a fresh tally and session ID. It returns
// false and changes nothing when already Counting.
func (s *Session) Start() bool {
	if s.state == Counting {
		return false
	}
	s.state = Counting
	s.tally = make(Tally)
	s.id = uuid.NewString()
	s.startedAt = s.now()
	return true
}

// OnFrame adds newly seen labels to the tally. Ignored while Idle.
func (s *Session) OnFrame(labels []string) {
	if s.state != Counting {
		return
	}
	for _, label := range labels {
		s.tally[label]++
	}
}

// Stop returns to Idle. A non-empty tally is reconciled with action and
// cleared. The returned error is the reconciler's (see inventory.PersistError);
// the Outcome is filled in either way. An unknown action changes nothing.
func (s *Session) Stop(ctx context.Context, action inventory.Action) (Outcome, error) {
	if action != inventory.CheckIn && action != inventory.CheckOut {
		return Outcome{}, fmt.Errorf("%w: %q", inventory.ErrUnknownAction, action)
	}
	s.state = Idle

	outcome := Outcome{
		SessionID: s.id,
		Action:    action,
		Counted:   s.tally.Clone(),
		StartedAt: s.startedAt,
		StoppedAt: s.now(),
	}

	if s.tally.Total() == 0 {
		outcome.NothingDetected = true
		return outcome, nil
	}

	result, err := s.reconciler.Apply(ctx, s.tally, action)
	s.tally = make(Tally)
	outcome.Result = &result
	if err != nil {
		outcome.Error = err.Error()
		return outcome, err
	}
	return outcome, nil
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// ID returns the current or last session ID, empty before the first Start.
func (s *Session) ID() string {
	return s.id
}

// Tally returns a copy of the running tally.
func (s *Session) Tally() Tally {
	return s.tally.Clone()
}
