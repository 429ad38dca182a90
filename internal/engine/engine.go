// Package engine runs the trigger-detection and capture pipeline on a single
// goroutine.
//
// Key events, collaborator commands and a coarse tick are the only inputs.
// The character window, the capture session, the timer and the cached
// permission state are owned by that goroutine; collaborators see them only
// through snapshots and Sink notifications.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/composition"
	"github.com/aayushbajaj/trigcap/internal/keylogger"
	"github.com/aayushbajaj/trigcap/internal/keymap"
	"github.com/aayushbajaj/trigcap/internal/permission"
	"github.com/aayushbajaj/trigcap/internal/timer"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

var (
	ErrNotRunning     = errors.New("engine is not running")
	ErrAlreadyRunning = errors.New("engine already running")
)

// Options are the engine's tunables.
type Options struct {
	Triggers          []trigger.Definition
	Timeout           time.Duration
	IMEComposition    bool
	CommitOnReturn    bool
	RemoveTriggerText bool
	// TickInterval drives timeout enforcement and health checks.
	TickInterval time.Duration
	// PermissionPoll is the re-check interval while permission is denied.
	PermissionPoll time.Duration
	// CommitSettle is how long to wait after a composition ends before
	// reading the focused element for the committed text.
	CommitSettle time.Duration
}

// DefaultCommitSettle gives the focused application time to insert
// committed text.
const DefaultCommitSettle = 40 * time.Millisecond

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		Triggers:       trigger.Defaults(),
		Timeout:        capture.DefaultTimeout,
		IMEComposition: true,
		CommitOnReturn: true,
		TickInterval:   time.Second,
		PermissionPoll: permission.DefaultPollInterval,
		CommitSettle:   DefaultCommitSettle,
	}
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = capture.DefaultTimeout
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.PermissionPoll <= 0 {
		o.PermissionPoll = permission.DefaultPollInterval
	}
	if o.CommitSettle <= 0 {
		o.CommitSettle = DefaultCommitSettle
	}
	return o
}

// Eraser removes typed characters from the foreground application.
type Eraser interface {
	Erase(n int) error
}

// Deps are the engine's collaborators.
type Deps struct {
	Translator  keymap.Translator
	Permissions *permission.Manager
	Monitor     keylogger.Monitor
	Sink        Sink
	// Eraser is only used when Options.RemoveTriggerText is set.
	Eraser Eraser
	// Focus recovers text committed by an input method. Without it,
	// composition tracking stays off.
	Focus composition.FocusReader
	// AppName resolves a process id to an application identifier.
	AppName func(pid int) string
	Logger  *zap.Logger
	Now     func() time.Time
}

// Snapshot is a consistent copy of the engine state.
type Snapshot struct {
	Permission permission.State
	Session    capture.Snapshot
	Timer      timer.Snapshot
	// Pending is the partially typed trigger held in the character window.
	Pending  string
	Monitor  keylogger.Health
	Triggers []trigger.Definition
	Options  Options
}

// Engine is safe for concurrent use. All state changes happen on the
// goroutine running Run.
type Engine struct {
	opts Options
	deps Deps
	log  *zap.Logger
	now  func() time.Time

	matcher *trigger.Matcher
	guard   *composition.Guard
	session *capture.Machine
	timers  *timer.Coordinator

	perm       permission.State
	lastPID    int
	commit     pendingCommit
	events     <-chan keylogger.KeyEvent
	monitorOn  bool
	degraded   bool
	pollCancel context.CancelFunc
	ctx        context.Context

	cmds chan func()
	disp *dispatcher

	permState atomic.Int32
	started   atomic.Bool
	done      chan struct{}
	erasing   sync.WaitGroup
}

// New validates the trigger set and returns an engine ready to Run.
func New(opts Options, deps Deps) (*Engine, error) {
	opts = opts.withDefaults()

	if deps.Translator == nil {
		deps.Translator = keymap.Default()
	}
	if deps.Permissions == nil {
		return nil, errors.New("engine: permission manager is required")
	}
	if deps.Monitor == nil {
		return nil, errors.New("engine: monitor is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.AppName == nil {
		deps.AppName = func(int) string { return "" }
	}

	matcher, err := trigger.NewMatcher(opts.Triggers)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	log := deps.Logger.Named("engine")
	return &Engine{
		opts:    opts,
		deps:    deps,
		log:     log,
		now:     deps.Now,
		matcher: matcher,
		guard:   composition.New(opts.IMEComposition),
		session: capture.NewMachine(opts.Timeout),
		timers:  timer.NewCoordinator(),
		cmds:    make(chan func(), 64),
		disp:    newDispatcher(deps.Sink, log),
		done:    make(chan struct{}),
	}, nil
}

// PermissionState returns the permission state the engine is acting on.
// It never blocks.
func (e *Engine) PermissionState() permission.State {
	return permission.State(e.permState.Load())
}

// Run processes events until ctx is done. It may be called once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(e.done)

	e.ctx = ctx

	dispStop := make(chan struct{})
	dispDone := make(chan struct{})
	go func() {
		defer close(dispDone)
		e.disp.run(dispStop)
	}()

	e.deps.Permissions.OnChange(func(permission.State) {
		// The manager may call back on this goroutine; never block it.
		go e.post(ctx, func() {
			e.applyPermission(e.deps.Permissions.State())
		})
	})
	e.applyPermission(e.deps.Permissions.Recheck())

	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()

	e.log.Info("engine started",
		zap.Int("triggers", len(trigger.Enabled(e.matcher.Definitions()))),
		zap.Duration("timeout", e.opts.Timeout))

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			close(dispStop)
			<-dispDone
			return nil

		case ev, ok := <-e.events:
			if !ok {
				e.listenerClosed()
				continue
			}
			e.handleKey(ev)

		case cmd := <-e.cmds:
			// Keystrokes that arrived before the command are applied first.
			e.drainEvents()
			cmd()

		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) drainEvents() {
	for e.events != nil {
		select {
		case ev, ok := <-e.events:
			if !ok {
				e.listenerClosed()
				return
			}
			e.handleKey(ev)
		default:
			return
		}
	}
}

func (e *Engine) shutdown() {
	e.stopPoller()
	e.stopMonitor()
	e.erasing.Wait()
	e.log.Info("engine stopped")
}

func (e *Engine) post(ctx context.Context, fn func()) bool {
	select {
	case e.cmds <- fn:
		return true
	case <-ctx.Done():
	case <-e.done:
	}
	return false
}

func (e *Engine) emit(fn func(Sink)) {
	e.disp.post(fn)
}

func (e *Engine) applyPermission(s permission.State) {
	if s == e.perm {
		return
	}
	e.log.Info("permission", zap.Stringer("from", e.perm), zap.Stringer("to", s))
	e.perm = s
	e.permState.Store(int32(s))
	e.emit(func(k Sink) { k.OnPermissionChanged(s) })

	if s == permission.StateGranted {
		e.stopPoller()
		e.startMonitor()
		return
	}

	// Monitoring requires trust; go fully inert.
	e.stopMonitor()
	e.resetInput()
	e.finish(e.session.Cancel())
	e.startPoller()
}

func (e *Engine) startPoller() {
	if e.pollCancel != nil || e.ctx == nil {
		return
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.pollCancel = cancel
	go e.deps.Permissions.Poll(ctx, e.opts.PermissionPoll)
}

func (e *Engine) stopPoller() {
	if e.pollCancel != nil {
		e.pollCancel()
		e.pollCancel = nil
	}
}

func (e *Engine) startMonitor() {
	if e.monitorOn || e.ctx == nil {
		return
	}
	ch, err := e.deps.Monitor.Start(e.ctx)
	if err != nil {
		e.log.Error("start monitor", zap.Error(err))
		if errors.Is(err, keylogger.ErrPermissionDenied) {
			e.deps.Permissions.MarkDenied()
			e.applyPermission(permission.StateDenied)
			return
		}
		e.reportDegraded(err)
		return
	}
	e.events = ch
	e.monitorOn = true
	e.degraded = false
	e.lastPID = 0
}

func (e *Engine) stopMonitor() {
	if !e.monitorOn {
		return
	}
	if err := e.deps.Monitor.Stop(); err != nil {
		e.log.Warn("stop monitor", zap.Error(err))
	}
	e.events = nil
	e.monitorOn = false
}

// listenerClosed handles the event channel closing without a Stop from us.
func (e *Engine) listenerClosed() {
	e.events = nil
	e.monitorOn = false
	if e.ctx.Err() != nil {
		return
	}
	e.reportDegraded(keylogger.ErrListenerLost)
	e.recheckAfterFailure()
}

func (e *Engine) reportDegraded(err error) {
	if e.degraded {
		return
	}
	e.degraded = true
	e.emit(func(k Sink) { k.OnMonitorDegraded(err) })
}

// recheckAfterFailure decides whether a listener failure means trust was
// revoked.
func (e *Engine) recheckAfterFailure() {
	if s := e.deps.Permissions.Recheck(); s != permission.StateGranted {
		e.applyPermission(s)
	}
}

func (e *Engine) tick() {
	now := e.now()
	e.finish(e.session.Tick(now, e.composing()))

	if !e.monitorOn {
		return
	}
	h := e.deps.Monitor.Health()
	if h.Degraded && !e.degraded {
		err := h.LastError
		if err == nil {
			err = keylogger.ErrListenerLost
		}
		e.log.Warn("monitor degraded", zap.Error(err))
		e.reportDegraded(err)
		e.recheckAfterFailure()
	}
}

func (e *Engine) resetInput() {
	e.matcher.Reset()
	e.guard.Reset()
	e.commit.abandon()
}

// finish publishes the effects of a session transition.
func (e *Engine) finish(tr capture.Transition) {
	if !tr.Changed() {
		return
	}
	if tr.To.Terminal() {
		e.matcher.Reset()
	}
	e.log.Debug("session",
		zap.Stringer("from", tr.From),
		zap.Stringer("to", tr.To),
		zap.Stringer("reason", tr.Reason))

	if rec := tr.Record; rec != nil {
		r := *rec
		e.emit(func(k Sink) { k.OnCaptureCompleted(r) })
	}
	snap := e.session.Snapshot(e.now())
	e.emit(func(k Sink) { k.OnSessionChanged(snap) })

	if req := tr.Timer; req != nil {
		e.requestTimer(*req)
	}
	if req := tr.Abandoned; req != nil {
		r := *req
		e.log.Info("timer not started, name not confirmed",
			zap.String("trigger", r.TriggerID),
			zap.String("name", r.Name))
		e.emit(func(k Sink) { k.OnTimerAbandoned(r) })
	}
}

func (e *Engine) requestTimer(req capture.TimerRequest) {
	out, conflict := e.timers.Request(req)
	switch out {
	case timer.OutcomeStarted:
		e.log.Info("timer started", zap.String("name", req.Name))
		e.timerChanged()
	case timer.OutcomeConflict:
		c := *conflict
		e.log.Info("timer conflict",
			zap.String("current", c.Current.Name),
			zap.String("requested", c.Requested))
		e.emit(func(k Sink) { k.OnTimerConflict(c) })
	case timer.OutcomeSuspended:
		e.log.Info("timer request dropped, conflict pending", zap.String("name", req.Name))
	}
}

func (e *Engine) timerChanged() {
	snap := e.timers.Snapshot(e.now())
	e.emit(func(k Sink) { k.OnTimerChanged(snap) })
}

func (e *Engine) snapshot() Snapshot {
	now := e.now()
	opts := e.opts
	opts.Triggers = e.matcher.Definitions()
	return Snapshot{
		Permission: e.perm,
		Session:    e.session.Snapshot(now),
		Timer:      e.timers.Snapshot(now),
		Pending:    e.matcher.Pending(),
		Monitor:    e.deps.Monitor.Health(),
		Triggers:   e.matcher.Definitions(),
		Options:    opts,
	}
}
