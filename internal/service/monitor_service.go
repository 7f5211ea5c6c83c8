package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/grademonitor-api/internal/models"
	"github.com/noah-isme/grademonitor-api/internal/projection"
	"github.com/noah-isme/grademonitor-api/pkg/coalesce"
	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
	"github.com/noah-isme/grademonitor-api/pkg/i18n"
)

// Reasons a session leaves memory.
const (
	CloseReasonClosed   = "closed"
	CloseReasonIdle     = "idle"
	CloseReasonShutdown = "shutdown"
)

type datasetLoader interface {
	Load(ctx context.Context, scope models.MonitorScope) (models.Dataset, error)
}

type bundleProvider interface {
	Bundle(ctx context.Context, locale string) (*i18n.Bundle, error)
}

// MonitorConfig tunes session handling.
type MonitorConfig struct {
	FlushDelay    time.Duration
	IdleTTL       time.Duration
	DefaultLocale string
	Scheduler     coalesce.Scheduler
}

// SessionView is the view of one open session.
type SessionView struct {
	ID             string              `json:"id"`
	Scope          models.MonitorScope `json:"scope"`
	Locale         string              `json:"locale"`
	PendingChanges bool                `json:"pendingChanges"`
	View           projection.View     `json:"view"`
}

// CommandResult is the outcome of one edit.
type CommandResult struct {
	Update projection.Update `json:"update"`
	View   projection.View   `json:"view"`
}

type monitorSession struct {
	id     string
	scope  models.MonitorScope
	bundle *i18n.Bundle

	mu        sync.Mutex
	state     *projection.State
	coalescer *coalesce.Coalescer
	lastSeen  time.Time
	closed    bool
}

// MonitorService keeps the interactive monitor sessions of this process.
type MonitorService struct {
	datasets datasetLoader
	catalog  bundleProvider
	sink     coalesce.Sink
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      MonitorConfig
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*monitorSession
}

// NewMonitorService constructs the service. sink receives every flushed
// change-set.
func NewMonitorService(datasets datasetLoader, catalog bundleProvider, sink coalesce.Sink, metrics *MetricsService, logger *zap.Logger, cfg MonitorConfig) *MonitorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = coalesce.DefaultDelay
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = coalesce.SystemScheduler()
	}
	return &MonitorService{
		datasets: datasets,
		catalog:  catalog,
		sink:     sink,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*monitorSession),
	}
}

// Open fetches the dataset and the strings concurrently, projects the course
// and registers a session. No session is created when either fetch fails.
func (s *MonitorService) Open(ctx context.Context, scope models.MonitorScope) (*SessionView, error) {
	if scope.Locale == "" {
		scope.Locale = s.cfg.DefaultLocale
	}

	var (
		ds     models.Dataset
		bundle *i18n.Bundle
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ds, err = s.datasets.Load(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		bundle, err = s.catalog.Bundle(gctx, scope.Locale)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.unavailable(scope, err)
	}

	in, err := projection.InputFromDataset(ds)
	if err != nil {
		return nil, s.unavailable(scope, err)
	}

	sess := &monitorSession{
		id:       uuid.NewString(),
		scope:    scope,
		bundle:   bundle,
		state:    projection.NewState(in, bundle),
		lastSeen: s.now(),
	}
	sess.coalescer = coalesce.New(scope, s.sink,
		coalesce.WithDelay(s.cfg.FlushDelay),
		coalesce.WithScheduler(s.cfg.Scheduler),
		coalesce.WithLogger(s.logger),
		coalesce.WithFlushObserver(s.metrics.ObserveFlush),
	)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.metrics.SessionOpened()
	s.logger.Info("monitor session opened",
		zap.String("session_id", sess.id),
		zap.Int64("user_id", scope.UserID),
		zap.Int64("course_id", scope.CourseID),
		zap.String("locale", bundle.Tag().String()),
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.viewLocked(), nil
}

// View returns the current view of a session.
func (s *MonitorService) View(id string) (*SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, appErrors.ErrSessionClosed
	}
	sess.lastSeen = s.now()
	return sess.viewLocked(), nil
}

// Snapshot returns the view together with the session's strings.
func (s *MonitorService) Snapshot(id string) (projection.View, *i18n.Bundle, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return projection.View{}, nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return projection.View{}, nil, appErrors.ErrSessionClosed
	}
	sess.lastSeen = s.now()
	return sess.state.View(), sess.bundle, nil
}

// Dispatch applies one command and buffers the resulting changes for the
// next flush. Commands on one session apply in arrival order.
func (s *MonitorService) Dispatch(id string, cmd projection.Command) (*CommandResult, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, appErrors.ErrSessionClosed
	}
	sess.lastSeen = s.now()

	update, err := sess.state.Apply(cmd)
	s.metrics.ObserveCommand(CommandType(cmd), err)
	if err != nil {
		return nil, err
	}
	record(sess.coalescer, update)
	return &CommandResult{Update: update, View: sess.state.View()}, nil
}

// Close flushes pending changes and forgets the session.
func (s *MonitorService) Close(id string) error {
	sess, err := s.remove(id)
	if err != nil {
		return err
	}
	s.shutdown(sess, CloseReasonClosed)
	return nil
}

// Sweep closes sessions idle for longer than the configured TTL and returns
// how many were closed.
func (s *MonitorService) Sweep() int {
	cutoff := s.now().Add(-s.cfg.IdleTTL)
	var idle []*monitorSession

	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		expired := sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if expired {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		s.shutdown(sess, CloseReasonIdle)
	}
	return len(idle)
}

// CloseAll flushes and closes every session.
func (s *MonitorService) CloseAll() int {
	s.mu.Lock()
	all := make([]*monitorSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.sessions = make(map[string]*monitorSession)
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].id < all[j].id })
	for _, sess := range all {
		s.shutdown(sess, CloseReasonShutdown)
	}
	return len(all)
}

// Count returns the number of open sessions.
func (s *MonitorService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MonitorService) lookup(id string) (*monitorSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "monitor session not found")
	}
	return sess, nil
}

func (s *MonitorService) remove(id string) (*monitorSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "monitor session not found")
	}
	delete(s.sessions, id)
	return sess, nil
}

func (s *MonitorService) shutdown(sess *monitorSession, reason string) {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return
	}
	sess.closed = true
	sess.mu.Unlock()

	flushed := sess.coalescer.Flush()
	s.metrics.SessionClosed(reason)
	s.logger.Info("monitor session closed",
		zap.String("session_id", sess.id),
		zap.String("reason", reason),
		zap.Bool("flushed", flushed),
	)
}

func (s *MonitorService) unavailable(scope models.MonitorScope, err error) error {
	s.logger.Warn("monitor session not opened",
		zap.Int64("user_id", scope.UserID),
		zap.Int64("course_id", scope.CourseID),
		zap.Error(err),
	)
	if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrMonitorUnavailable.Code {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrMonitorUnavailable.Code, appErrors.ErrMonitorUnavailable.Status, appErrors.ErrMonitorUnavailable.Message)
}

func (sess *monitorSession) viewLocked() *SessionView {
	return &SessionView{
		ID:             sess.id,
		Scope:          sess.scope,
		Locale:         sess.bundle.Tag().String(),
		PendingChanges: sess.coalescer.Pending(),
		View:           sess.state.View(),
	}
}

// record forwards what an update changed to the coalescer. Telemetry goes in
// first so that the flush it arms carries it.
func record(c *coalesce.Coalescer, u projection.Update) {
	c.Log(u.Events...)
	if u.Included != nil {
		c.SetChecked(u.ItemID, *u.Included)
	}
	if u.Estimation != nil {
		c.SetEstimation(u.ItemID, *u.Estimation)
	}
	if u.DesiredGoal != nil {
		c.SetGoal(*u.DesiredGoal)
	}
	if u.ShowAverage != nil {
		c.SetShowAverage(*u.ShowAverage)
	}
	if u.SchemeUpdateSeen {
		c.SetSchemeUpdateSeen()
	}
}

// CommandType names a command for metrics and logs.
func CommandType(cmd projection.Command) string {
	switch cmd.(type) {
	case projection.SetEstimate:
		return "set_estimate"
	case projection.SetIncluded:
		return "set_included"
	case projection.SetGoal:
		return "set_goal"
	case projection.SetShowAverage:
		return "set_show_average"
	case projection.DismissSchemeNotice:
		return "dismiss_scheme_notice"
	default:
		return fmt.Sprintf("%T", cmd)
	}
}
