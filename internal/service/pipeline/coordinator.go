// Package pipeline runs the detection loop and the fixed-cadence display loop
// around one counting session.
//
// The detection loop is the only writer of the latest predictions, the
// tracker and the tally, all guarded by one mutex. After every change it
// publishes an immutable Snapshot; the display loop reads only that snapshot
// and never waits on the mutex.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"inventorycounter/internal/config"
	"inventorycounter/internal/dto"
	"inventorycounter/internal/inventory"
	"inventorycounter/internal/logger"
	"inventorycounter/internal/model"
	"inventorycounter/internal/service/ai"
	"inventorycounter/internal/service/metrics"
	"inventorycounter/internal/session"
	"inventorycounter/internal/tracker"
)

// FrameSource yields encoded camera frames. ok is false on a transient miss.
type FrameSource interface {
	NextFrame() (frame dto.Frame, ok bool)
}

// Detector runs object detection on one JPEG frame.
type Detector interface {
	Detect(ctx context.Context, jpeg []byte) ([]dto.Detection, error)
}

// Display receives a view every tick and the outcome of every stop.
type Display interface {
	Render(view View)
	Report(outcome session.Outcome)
}

// Evidence keeps frames that produced newly seen instances.
type Evidence interface {
	AddFrame(sessionID string, jpeg []byte, labels []string)
}

// Journal records reconciled items.
type Journal interface {
	InsertBatch(ctx context.Context, movements []model.Movement) error
}

type Options struct {
	IOUThreshold        float64
	ConfidenceThreshold float64 // display only
	CountMinConfidence  float64 // detections below are not tracked
	InferenceTimeout    time.Duration
	TickInterval        time.Duration
	FrameRetryDelay     time.Duration
}

// OptionsFromConfig copies the pipeline settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		IOUThreshold:        cfg.IOUThreshold,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		CountMinConfidence:  cfg.CountMinConfidence,
		InferenceTimeout:    cfg.InferenceTimeout,
		TickInterval:        cfg.TickInterval,
		FrameRetryDelay:     cfg.FrameRetryDelay,
	}
}

const persistTimeout = 30 * time.Second

// Deps are the collaborators. Display, Evidence, Journal, Metrics and Logger
// may be nil.
type Deps struct {
	Frames     FrameSource
	Detector   Detector
	Reconciler session.Reconciler
	Display    Display
	Evidence   Evidence
	Journal    Journal
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
}

// Snapshot is the published pipeline state. It is never mutated after publication.
type Snapshot struct {
	Frame       dto.Frame
	Detections  []dto.Detection
	Instances   []tracker.TrackedInstance
	State       session.State
	SessionID   string
	Tally       session.Tally
	LastOutcome *session.Outcome
	UpdatedAt   time.Time
}

type Coordinator struct {
	opts     Options
	frames   FrameSource
	detector Detector
	display  Display
	evidence Evidence
	journal  Journal
	metrics  *metrics.Metrics
	logger   *logger.Logger

	mu          sync.Mutex
	session     *session.Session
	tracker     *tracker.Tracker
	latest      []dto.Detection
	frame       dto.Frame
	lastOutcome *session.Outcome
	generation  uint64 // bumped by every Start

	snapshot atomic.Pointer[Snapshot]
	wake     chan struct{}
}

// NewCoordinator builds an idle coordinator.
func NewCoordinator(opts Options, deps Deps) *Coordinator {
	c := &Coordinator{
		opts:     opts,
		frames:   deps.Frames,
		detector: deps.Detector,
		display:  deps.Display,
		evidence: deps.Evidence,
		journal:  deps.Journal,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		session:  session.New(deps.Reconciler),
		tracker:  tracker.New(opts.IOUThreshold),
		wake:     make(chan struct{}, 1),
	}
	if c.metrics == nil {
		c.metrics = metrics.New()
	}
	if c.logger == nil {
		c.logger = logger.Discard()
	}
	if c.opts.TickInterval <= 0 {
		c.opts.TickInterval = 25 * time.Millisecond
	}
	if c.opts.InferenceTimeout <= 0 {
		c.opts.InferenceTimeout = 30 * time.Second
	}
	c.publishLocked()
	return c
}

// Run starts both loops and blocks until ctx is done and both have exited.
func (c *Coordinator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.detectionLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.displayLoop(ctx)
	}()

	c.logger.Info("🚀 Pipeline running (tick %s, inference timeout %s)", c.opts.TickInterval, c.opts.InferenceTimeout)
	wg.Wait()
	c.logger.Info("Pipeline stopped")
}

// Start begins a counting session. It returns false when one is already running.
func (c *Coordinator) Start() bool {
	c.mu.Lock()
	started := c.session.Start()
	if started {
		c.generation++
		c.tracker.Reset()
		c.latest = nil
		c.lastOutcome = nil
		c.publishLocked()
	}
	id := c.session.ID()
	c.mu.Unlock()

	if !started {
		return false
	}

	c.metrics.SessionsStarted.Add(1)
	c.metrics.SetCounting(true)
	c.logger.Info("▶️ Counting session %s started", id)

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

// Stop ends the session and reconciles its tally with action. The outcome is
// reported to the display and, when items were applied, journaled. Cancelling
// ctx does not abort the ledger writes. A persistence failure is returned as
// *inventory.PersistError alongside the outcome.
func (c *Coordinator) Stop(ctx context.Context, action inventory.Action) (session.Outcome, error) {
	// The session is gone once stopped, so its writes outlive the caller.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	c.mu.Lock()
	outcome, err := c.session.Stop(ctx, action)
	if errors.Is(err, inventory.ErrUnknownAction) {
		c.mu.Unlock()
		return outcome, err
	}
	c.tracker.Reset()
	c.latest = nil
	c.lastOutcome = &outcome
	c.publishLocked()
	c.mu.Unlock()

	c.metrics.SetCounting(false)
	if outcome.Result != nil {
		c.metrics.Reconciliations.Add(1)
		c.metrics.ItemsRejected.Add(uint64(len(outcome.Result.Rejected)))
		c.record(ctx, outcome)
	}
	if err != nil {
		c.metrics.PersistFailures.Add(1)
		c.logger.Error("Session %s %s failed: %v", outcome.SessionID, action, err)
	} else {
		c.logger.Info("⏹️ Session %s stopped: %s", outcome.SessionID, outcome.Message())
	}

	if c.display != nil {
		c.display.Report(outcome)
	}
	return outcome, err
}

// Snapshot returns the latest published state.
func (c *Coordinator) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// View returns the display view of the latest published state.
func (c *Coordinator) View() View {
	return buildView(c.snapshot.Load(), c.opts.ConfidenceThreshold)
}

func (c *Coordinator) counting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State() == session.Counting
}

func (c *Coordinator) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Coordinator) detectionLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !c.counting() {
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
			}
			continue
		}
		c.step(ctx)
	}
}

// step runs one acquire → infer → track iteration.
func (c *Coordinator) step(ctx context.Context) {
	generation := c.currentGeneration()

	frame, ok := c.frames.NextFrame()
	if !ok {
		c.metrics.FramesMissed.Add(1)
		c.logger.Debug("No frame available, retrying in %s", c.opts.FrameRetryDelay)
		sleep(ctx, c.opts.FrameRetryDelay)
		return
	}
	c.metrics.FramesRead.Add(1)

	detections := c.infer(ctx, frame)
	c.apply(generation, frame, detections)
}

// infer calls the detector with the configured timeout. Any failure yields no detections.
func (c *Coordinator) infer(ctx context.Context, frame dto.Frame) []dto.Detection {
	inferCtx, cancel := context.WithTimeout(ctx, c.opts.InferenceTimeout)
	defer cancel()

	started := time.Now()
	detections, err := c.detector.Detect(inferCtx, frame.JPEG)
	c.metrics.UpdateInferenceLatency(time.Since(started))

	if err != nil {
		if ai.IsContractError(err) {
			c.metrics.ContractViolations.Add(1)
			c.logger.Error("Detector returned malformed data for frame %d: %v", frame.Seq, err)
		} else if ctx.Err() == nil {
			c.metrics.InferenceErrors.Add(1)
			c.logger.Warning("Inference failed for frame %d: %v", frame.Seq, err)
		}
		return nil
	}
	return detections
}

func (c *Coordinator) apply(generation uint64, frame dto.Frame, detections []dto.Detection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State() != session.Counting || c.generation != generation {
		c.metrics.FramesDiscarded.Add(1)
		return
	}

	c.frame = frame
	c.latest = detections

	newlySeen := c.tracker.Update(dto.FilterByConfidence(detections, c.opts.CountMinConfidence))
	labels := tracker.Labels(newlySeen)
	c.session.OnFrame(labels)

	if len(newlySeen) > 0 {
		c.metrics.NewlySeen.Add(uint64(len(newlySeen)))
		c.logger.Info("🆕 Frame %d: %d new item(s) %v", frame.Seq, len(newlySeen), labels)
		if c.evidence != nil {
			c.evidence.AddFrame(c.session.ID(), frame.JPEG, labels)
		}
	}

	c.publishLocked()
}

// publishLocked stores a fresh snapshot. Callers hold c.mu.
func (c *Coordinator) publishLocked() {
	c.snapshot.Store(&Snapshot{
		Frame:       c.frame,
		Detections:  c.latest,
		Instances:   c.tracker.Instances(),
		State:       c.session.State(),
		SessionID:   c.session.ID(),
		Tally:       c.session.Tally(),
		LastOutcome: c.lastOutcome,
		UpdatedAt:   time.Now(),
	})
}

func (c *Coordinator) displayLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.display == nil {
				continue
			}
			c.display.Render(buildView(c.snapshot.Load(), c.opts.ConfidenceThreshold))
			c.metrics.ViewsRendered.Add(1)
		}
	}
}

// record journals one movement per applied item. Failures are logged only;
// the ledger itself is already saved.
func (c *Coordinator) record(ctx context.Context, outcome session.Outcome) {
	if c.journal == nil || len(outcome.Result.Applied) == 0 {
		return
	}

	items := make([]string, 0, len(outcome.Result.Applied))
	for item := range outcome.Result.Applied {
		items = append(items, item)
	}
	sort.Strings(items)

	movements := make([]model.Movement, 0, len(items))
	for _, item := range items {
		delta := outcome.Result.Applied[item]
		if outcome.Action == inventory.CheckOut {
			delta = -delta
		}
		movements = append(movements, model.Movement{
			SessionID: outcome.SessionID,
			Item:      item,
			Action:    string(outcome.Action),
			Delta:     delta,
			Quantity:  outcome.Result.Updated[item],
			CreatedAt: outcome.StoppedAt,
		})
	}

	if err := c.journal.InsertBatch(ctx, movements); err != nil {
		c.logger.Error("Failed to journal session %s: %v", outcome.SessionID, err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
