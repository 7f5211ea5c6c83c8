// Package coalesce buffers monitor edits and telemetry and hands them to a
// sink as one change-set per quiet period, or immediately on teardown.
package coalesce

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/grademonitor-api/internal/models"
)

// DefaultDelay is the quiet period before buffered edits are flushed.
const DefaultDelay = 2 * time.Minute

// Sink receives flushed batches. Deliver must not block for long; it is
// called without any coalescer lock held.
type Sink interface {
	Deliver(batch models.ChangeBatch)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(batch models.ChangeBatch)

// Deliver calls f.
func (f SinkFunc) Deliver(batch models.ChangeBatch) {
	f(batch)
}

// Option configures a Coalescer.
type Option func(*Coalescer)

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(c *Coalescer) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithScheduler replaces the runtime timers.
func WithScheduler(s Scheduler) Option {
	return func(c *Coalescer) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coalescer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFlushObserver registers a callback invoked with the trigger ("timer" or
// "teardown") of every delivered batch.
func WithFlushObserver(fn func(trigger string)) Option {
	return func(c *Coalescer) {
		c.observe = fn
	}
}

// Coalescer collects pending changes for one monitor scope.
type Coalescer struct {
	scope     models.MonitorScope
	sink      Sink
	delay     time.Duration
	scheduler Scheduler
	logger    *zap.Logger
	observe   func(trigger string)

	mu               sync.Mutex
	estimations      map[int64]float64
	estimationsDirty bool
	checked          map[int64]bool
	checkedDirty     bool
	goal             *int
	showAverage      *bool
	schemeUpdateSeen *bool
	logs             []models.LogEntry
	timer            Timer
	generation       uint64
}

// New constructs a Coalescer delivering to sink.
func New(scope models.MonitorScope, sink Sink, opts ...Option) *Coalescer {
	c := &Coalescer{
		scope:       scope,
		sink:        sink,
		delay:       DefaultDelay,
		scheduler:   SystemScheduler(),
		logger:      zap.NewNop(),
		estimations: make(map[int64]float64),
		checked:     make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEstimation buffers an item estimate.
func (c *Coalescer) SetEstimation(itemID int64, percent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.estimations[itemID] = percent
	c.estimationsDirty = true
	c.armLocked()
}

// SetChecked buffers an item inclusion flag.
func (c *Coalescer) SetChecked(itemID int64, checked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checked[itemID] = checked
	c.checkedDirty = true
	c.armLocked()
}

// SetGoal buffers the desired grade.
func (c *Coalescer) SetGoal(goal int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goal = &goal
	c.armLocked()
}

// SetShowAverage buffers the class average visibility.
func (c *Coalescer) SetShowAverage(show bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showAverage = &show
	c.armLocked()
}

// SetSchemeUpdateSeen buffers the dismissal of the scheme notice.
func (c *Coalescer) SetSchemeUpdateSeen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := true
	c.schemeUpdateSeen = &seen
	c.armLocked()
}

// Log queues telemetry for the next flush. It does not arm the timer.
func (c *Coalescer) Log(entries ...models.LogEntry) {
	if len(entries) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, entries...)
}

// Pending reports whether a flush is scheduled.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// Flush delivers everything buffered right away. It is a no-op when no timer
// is armed and reports whether a batch was delivered.
func (c *Coalescer) Flush() bool {
	c.mu.Lock()
	if c.timer == nil {
		c.mu.Unlock()
		return false
	}
	c.timer.Stop()
	batch := c.drainLocked()
	c.mu.Unlock()

	c.deliver(batch, "teardown")
	return true
}

func (c *Coalescer) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.generation++
	generation := c.generation
	c.timer = c.scheduler.AfterFunc(c.delay, func() {
		c.fire(generation)
	})
}

func (c *Coalescer) fire(generation uint64) {
	c.mu.Lock()
	if c.timer == nil || generation != c.generation {
		c.mu.Unlock()
		return
	}
	batch := c.drainLocked()
	c.mu.Unlock()

	c.deliver(batch, "timer")
}

// drainLocked swaps out the dirty fields and resets every buffer.
func (c *Coalescer) drainLocked() models.ChangeBatch {
	batch := models.ChangeBatch{Scope: c.scope}
	if c.estimationsDirty && len(c.estimations) > 0 {
		batch.Changes.Estimations = c.estimations
		c.estimations = make(map[int64]float64)
	}
	if c.checkedDirty && len(c.checked) > 0 {
		batch.Changes.Checked = c.checked
		c.checked = make(map[int64]bool)
	}
	c.estimationsDirty, c.checkedDirty = false, false
	batch.Changes.Goal, c.goal = c.goal, nil
	batch.Changes.ShowAverage, c.showAverage = c.showAverage, nil
	batch.Changes.SchemeUpdateSeen, c.schemeUpdateSeen = c.schemeUpdateSeen, nil
	batch.Logs, c.logs = c.logs, nil

	c.timer = nil
	c.generation++
	return batch
}

func (c *Coalescer) deliver(batch models.ChangeBatch, trigger string) {
	c.logger.Debug("flush monitor changes",
		zap.String("trigger", trigger),
		zap.Int64("user_id", c.scope.UserID),
		zap.Int64("course_id", c.scope.CourseID),
		zap.Int("estimations", len(batch.Changes.Estimations)),
		zap.Int("checked", len(batch.Changes.Checked)),
		zap.Int("logs", len(batch.Logs)),
	)
	if c.observe != nil {
		c.observe(trigger)
	}
	if c.sink != nil {
		c.sink.Deliver(batch)
	}
}
