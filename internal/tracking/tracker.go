// Package tracking decides when a section has been read. A Tracker hands
// out one Subscription per displayed section; the subscription fires at
// most once and is disposed when the reader moves on.
package tracking

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMarkTimeout = 10 * time.Second

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	Config Config
	Marker Marker
	Logger *slog.Logger

	// OnError receives marking failures after retries are exhausted.
	OnError func(sectionID string, err error)

	// MarkTimeout bounds one MarkRead call. Default 10s.
	MarkTimeout time.Duration
}

// Tracker creates subscriptions.
type Tracker struct {
	mu  sync.RWMutex
	cfg Config

	marker      Marker
	logger      *slog.Logger
	onError     func(sectionID string, err error)
	markTimeout time.Duration

	// afterFunc schedules f after d and returns a stop function. Tests
	// replace it to drive time by hand.
	afterFunc func(d time.Duration, f func()) (stop func() bool)
}

// NewTracker creates a Tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MarkTimeout <= 0 {
		cfg.MarkTimeout = defaultMarkTimeout
	}
	return &Tracker{
		cfg:         cfg.Config.normalized(),
		marker:      cfg.Marker,
		logger:      cfg.Logger,
		onError:     cfg.OnError,
		markTimeout: cfg.MarkTimeout,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
}

// Config returns the settings new subscriptions use.
func (t *Tracker) Config() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// SetConfig changes the settings for subscriptions created afterwards.
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg.normalized()
}

const (
	stateActive int32 = iota
	stateFired
	stateDisposed
	stateInert
)

// Subscription tracks one displayed section.
type Subscription struct {
	tracker   *Tracker
	sectionID string
	cfg       Config
	onRead    func()

	state atomic.Int32

	mu   sync.Mutex
	stop func() bool

	doneOnce sync.Once
	done     chan struct{}
}

// Track starts tracking a section. An already read section gets an inert
// subscription. In scroll mode the initial viewport is checked right away,
// so a section shorter than the pane fires immediately. onRead runs after
// the read flag was written; it may be nil.
func (t *Tracker) Track(sectionID string, isRead bool, initial Viewport, onRead func()) *Subscription {
	s := &Subscription{
		tracker:   t,
		sectionID: sectionID,
		cfg:       t.Config(),
		onRead:    onRead,
		done:      make(chan struct{}),
	}
	if isRead {
		s.state.Store(stateInert)
		s.finish()
		return s
	}

	switch s.cfg.Mode {
	case ModeScroll:
		s.ReportScroll(initial)
	default:
		s.mu.Lock()
		s.stop = t.afterFunc(s.cfg.Threshold, s.fire)
		s.mu.Unlock()
	}
	return s
}

// SectionID returns the tracked section.
func (s *Subscription) SectionID() string { return s.sectionID }

// Mode returns the mode the subscription was created with.
func (s *Subscription) Mode() Mode { return s.cfg.Mode }

// Active reports whether the subscription can still fire.
func (s *Subscription) Active() bool { return s.state.Load() == stateActive }

// Fired reports whether the subscription fired.
func (s *Subscription) Fired() bool { return s.state.Load() == stateFired }

// Done is closed once the subscription can do nothing more: it was inert,
// was disposed, or fired and finished marking.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// ReportScroll is the scroll listener. It fires the first time the
// viewport reaches the end. It does nothing outside scroll mode or once
// the subscription fired or was disposed.
func (s *Subscription) ReportScroll(v Viewport) {
	if s.cfg.Mode != ModeScroll || !s.Active() {
		return
	}
	if v.AtEnd(s.cfg.ScrollProximity) {
		s.fire()
	}
}

// Dispose cancels the timer or detaches the scroll listener. It is safe to
// call more than once and after firing. A mark already in flight completes.
func (s *Subscription) Dispose() {
	if !s.state.CompareAndSwap(stateActive, stateDisposed) {
		return
	}
	s.cancelTimer()
	s.finish()
}

func (s *Subscription) cancelTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

func (s *Subscription) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// fire marks the section read exactly once. Marking runs in its own
// goroutine so a scroll event never blocks on the network.
func (s *Subscription) fire() {
	if !s.state.CompareAndSwap(stateActive, stateFired) {
		return
	}
	s.cancelTimer()
	go s.mark()
}

func (s *Subscription) mark() {
	defer s.finish()
	t := s.tracker
	log := t.logger.With("section_id", s.sectionID, "mode", s.cfg.Mode)

	if t.marker == nil {
		log.Warn("section read but no marker configured")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), t.markTimeout)
		err := t.marker.MarkRead(ctx, s.sectionID)
		cancel()
		if err != nil {
			log.Error("failed to mark section read", "error", err)
			if t.onError != nil {
				t.onError(s.sectionID, err)
			}
			return
		}
		log.Debug("section marked read")
	}
	if s.onRead != nil {
		s.onRead()
	}
}
