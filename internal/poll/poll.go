// Package poll runs named, recurring async tasks on an interval with
// failure resilience and without overlapping executions. It is structured
// into small files by concern:
//
//   - poll.go: Manager, Task, scheduling loop, stop/restart.
//   - backoff.go: NextInterval and the backoff cap.
//   - metrics.go: prometheus counters for runs/skips/stops.
//
// Per task, at most one execution is in flight at any time: a tick that
// finds its key still active is skipped, not queued. Task errors are
// caught, logged, and drive exponential backoff; they never reach the
// scheduler's caller. A task that fails MaxRetries times in a row stops
// scheduling entirely and must be explicitly restarted.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultMaxRetries        = 3
	defaultBackoffMultiplier = 2.0
)

// Task describes one recurring job.
type Task struct {
	Key               string
	Interval          time.Duration
	InitialDelay      time.Duration
	MaxRetries        int     // consecutive failures before the task stops; default 3
	BackoffMultiplier float64 // default 2
	Run               func(ctx context.Context) error
}

type taskState struct {
	task    Task
	cancel  context.CancelFunc
	retries int
	current time.Duration
	active  bool
	stopped bool
}

// Manager multiplexes recurring tasks by key.
type Manager struct {
	log   zerolog.Logger
	mu    sync.Mutex
	tasks map[string]*taskState
	wg    sync.WaitGroup
}

// NewManager returns an empty Manager logging through log.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log, tasks: make(map[string]*taskState)}
}

// Start registers and schedules t. Starting a key that is already
// registered replaces the previous task. The returned function stops the
// task; it is safe to call more than once.
func (m *Manager) Start(t Task) (func(), error) {
	if t.Key == "" {
		return nil, errors.New("poll: task key is empty")
	}
	if t.Run == nil {
		return nil, errors.New("poll: task has no run func")
	}
	if t.Interval <= 0 {
		return nil, errors.New("poll: task interval must be positive")
	}
	if t.MaxRetries <= 0 {
		t.MaxRetries = defaultMaxRetries
	}
	if t.BackoffMultiplier <= 1 {
		t.BackoffMultiplier = defaultBackoffMultiplier
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &taskState{task: t, cancel: cancel, current: t.Interval}

	m.mu.Lock()
	if prev, ok := m.tasks[t.Key]; ok {
		prev.cancel()
	}
	m.tasks[t.Key] = st
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(ctx, st)

	return func() { m.Stop(t.Key) }, nil
}

func (m *Manager) loop(ctx context.Context, st *taskState) {
	defer m.wg.Done()
	t := st.task
	first := t.InitialDelay
	if first <= 0 {
		first = t.Interval
	}
	timer := time.NewTimer(first)
	defer timer.Stop()
	results := make(chan error, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-results:
			if stop := m.settle(st, err); stop {
				return
			}
			// Completion reschedules the next tick so a widened (or
			// restored) interval takes effect immediately.
			timer.Reset(m.currentInterval(st))
			continue
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}
		if !m.acquire(st) {
			pollSkipped.WithLabelValues(t.Key).Inc()
			timer.Reset(m.currentInterval(st))
			continue
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			results <- t.Run(ctx)
		}()
		timer.Reset(m.currentInterval(st))
	}
}

// acquire marks the task in flight; it fails if a run is already active or
// the task has stopped.
func (m *Manager) acquire(st *taskState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.active || st.stopped {
		return false
	}
	st.active = true
	return true
}

// settle records the outcome of a run: success restores the base interval,
// failure widens it, and exhausting the retry budget stops the task. It
// reports whether the task should stop scheduling.
func (m *Manager) settle(st *taskState, err error) bool {
	t := st.task
	m.mu.Lock()
	st.active = false
	if err == nil {
		st.retries = 0
		st.current = t.Interval
		m.mu.Unlock()
		pollRuns.WithLabelValues(t.Key, "ok").Inc()
		return false
	}
	st.retries++
	exhausted := st.retries >= t.MaxRetries
	if exhausted {
		st.stopped = true
	} else {
		st.current = NextInterval(t.Interval, t.BackoffMultiplier, st.retries)
	}
	retries := st.retries
	current := st.current
	m.mu.Unlock()

	pollRuns.WithLabelValues(t.Key, "error").Inc()
	if exhausted {
		pollStopped.WithLabelValues(t.Key).Inc()
		st.cancel()
		m.log.Error().Err(err).Str("key", t.Key).Int("retries", retries).
			Msg("polling task stopped after exhausting retries")
		return true
	}
	m.log.Warn().Err(err).Str("key", t.Key).Int("retries", retries).
		Dur("next_interval", current).Msg("polling task failed, widening interval")
	return false
}

func (m *Manager) currentInterval(st *taskState) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return st.current
}

// Stop cancels the task registered under key, if any.
func (m *Manager) Stop(key string) {
	m.mu.Lock()
	st, ok := m.tasks[key]
	if ok {
		st.stopped = true
		delete(m.tasks, key)
	}
	m.mu.Unlock()
	if ok {
		st.cancel()
	}
}

// Restart re-schedules a task that stopped after exhausting its retries.
// It is a no-op for unknown keys.
func (m *Manager) Restart(key string) error {
	m.mu.Lock()
	st, ok := m.tasks[key]
	m.mu.Unlock()
	if !ok {
		return errors.New("poll: unknown task: " + key)
	}
	_, err := m.Start(st.task)
	return err
}

// StopAll cancels every task and waits for in-flight runs to finish.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for key, st := range m.tasks {
		st.stopped = true
		st.cancel()
		delete(m.tasks, key)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Run is the single-task variant: it schedules t on its own manager and
// blocks until ctx is done, then stops the task and waits for any
// in-flight run to settle.
func Run(ctx context.Context, log zerolog.Logger, t Task) error {
	m := NewManager(log)
	stop, err := m.Start(t)
	if err != nil {
		return err
	}
	defer stop()
	<-ctx.Done()
	m.StopAll()
	return ctx.Err()
}
