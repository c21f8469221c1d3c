// Package scheduler runs one periodic poll loop per chat.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"upwork_rss_bot/internal/poller"
)

// Start/Stop outcomes that are not failures.
var (
	ErrAlreadyRunning = errors.New("periodic check already running")
	ErrNotRunning     = errors.New("periodic check not running")
)

// DefaultInterval is the idle time between two cycles of one chat.
const DefaultInterval = time.Minute

// Cycler runs one poll cycle for a chat.
type Cycler interface {
	Poll(ctx context.Context, chatID int64) (poller.Report, error)
}

// StateStore persists which chats have periodic checking enabled.
type StateStore interface {
	SetRunning(ctx context.Context, chatID int64, running bool) error
	ListRunning(ctx context.Context) ([]int64, error)
}

// unit is the running loop of one chat.
type unit struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Scheduler owns at most one loop per chat. Loops of different chats run
// independently; cycles of one chat never overlap.
type Scheduler struct {
	cycler   Cycler
	state    StateStore
	log      *slog.Logger
	interval time.Duration

	mu    sync.Mutex
	units map[int64]*unit
	// stateMu orders writes of the persisted running flag.
	stateMu sync.Mutex
	// draining holds loops that were stopped but may still be mid-cycle.
	draining map[int64]chan struct{}
	wg       sync.WaitGroup
}

// New creates a Scheduler.
func New(cycler Cycler, state StateStore, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cycler:   cycler,
		state:    state,
		log:      log,
		interval: DefaultInterval,
		units:    make(map[int64]*unit),
		draining: make(map[int64]chan struct{}),
	}
}

// SetInterval overrides the default idle time between cycles.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.interval = d
}

// Start launches the loop for chatID. The loop lives until Stop is called
// or ctx is cancelled. It returns ErrAlreadyRunning if a loop exists.
func (s *Scheduler) Start(ctx context.Context, chatID int64) error {
	if err := s.launch(ctx, chatID); err != nil {
		return err
	}
	s.persist(ctx, chatID)
	return nil
}

// Stop cancels the loop for chatID. A cycle in progress finishes first.
// It returns ErrNotRunning if there is no loop.
func (s *Scheduler) Stop(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	u, ok := s.units[chatID]
	if !ok {
		s.mu.Unlock()
		return ErrNotRunning
	}
	delete(s.units, chatID)
	s.draining[chatID] = u.done
	s.mu.Unlock()

	u.cancel(poller.ErrStopped)
	s.persist(ctx, chatID)
	s.log.Info("periodic check stopped", "chat_id", chatID)
	return nil
}

// persist writes the chat's current state, read after any earlier write
// finished, so a Start racing a Stop can not leave a stale flag behind.
func (s *Scheduler) persist(ctx context.Context, chatID int64) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	running := s.IsRunning(chatID)
	if err := s.state.SetRunning(ctx, chatID, running); err != nil {
		s.log.Error("persist running flag", "chat_id", chatID, "running", running, "error", err)
	}
}

// IsRunning reports whether chatID has an active loop.
func (s *Scheduler) IsRunning(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.units[chatID]
	return ok
}

// Run restarts the loops that were enabled before the process stopped and
// blocks until ctx is cancelled and every loop has exited.
func (s *Scheduler) Run(ctx context.Context) error {
	ids, err := s.state.ListRunning(ctx)
	if err != nil {
		return fmt.Errorf("list running chats: %w", err)
	}
	for _, id := range ids {
		if err := s.launch(ctx, id); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			s.log.Error("resume periodic check", "chat_id", id, "error", err)
			continue
		}
		s.log.Info("periodic check resumed", "chat_id", id)
	}

	<-ctx.Done()
	s.Wait()
	return nil
}

// Wait blocks until every loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) launch(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.units[chatID]; ok {
		return ErrAlreadyRunning
	}

	uctx, cancel := context.WithCancelCause(ctx)
	u := &unit{cancel: cancel, done: make(chan struct{})}
	s.units[chatID] = u

	prev := s.draining[chatID]
	delete(s.draining, chatID)

	s.wg.Add(1)
	go s.loop(uctx, chatID, u, prev)

	s.log.Info("periodic check started", "chat_id", chatID)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, chatID int64, u *unit, prev <-chan struct{}) {
	defer s.wg.Done()
	defer close(u.done)
	defer func() {
		s.mu.Lock()
		if s.units[chatID] == u {
			delete(s.units, chatID)
		}
		if s.draining[chatID] == u.done {
			delete(s.draining, chatID)
		}
		s.mu.Unlock()
		u.cancel(nil)
	}()

	// A previous loop of this chat may still be finishing its cycle. Wait
	// even when cancelled so done closes only after prev has.
	if prev != nil {
		<-prev
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		s.cycle(ctx, chatID)
		timer.Reset(s.interval)
	}
}

func (s *Scheduler) cycle(ctx context.Context, chatID int64) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("poll cycle panicked", "chat_id", chatID, "panic", r)
		}
	}()

	start := time.Now()
	rep, err := s.cycler.Poll(ctx, chatID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("poll cycle", "chat_id", chatID, "error", err)
		return
	}
	s.log.Debug("poll cycle done",
		"chat_id", chatID,
		"subscriptions", rep.Subscriptions,
		"fetch_failures", rep.FetchFailures,
		"novel", rep.Novel,
		"baseline", rep.Baseline,
		"duration", time.Since(start),
	)
}
