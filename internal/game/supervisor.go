// Package game tracks the game-launch lifecycle:
//
//	not_running -> launching -> playing -> exited | error
//
// Exit detection has two independent paths that converge on one idempotent
// handler: the backend's process-exit event, and a periodic liveness health
// check that synthesizes an exit (code -1, not crashed) when the process
// died without an event. Whichever fires first performs the terminal
// transition; the other finds the session already closed and is a no-op.
package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"launcherd/internal/bridge"
	"launcherd/internal/events"
	"launcherd/pkg/types"
)

// Supervisor owns the launch state machine. All state is guarded by mu;
// cross-component coordination happens through parameters and snapshots,
// never shared mutable state.
type Supervisor struct {
	br   Bridge
	cfg  Config
	win  Window
	duck AudioDucker
	log  zerolog.Logger
	pub  events.Publisher

	mu        sync.Mutex
	state     State
	sessionID string
	lastExit  *types.ExitRecord
	lastErr   *types.LauncherError
	minimized bool
	healthOff context.CancelFunc

	unsubs []func()
	now    func() time.Time
}

// New builds a supervisor. win, duck, and pub may be nil.
func New(br Bridge, cfg Config, win Window, duck AudioDucker, pub events.Publisher, log zerolog.Logger) *Supervisor {
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = defaultHealthInterval
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Supervisor{
		br:    br,
		cfg:   cfg,
		win:   win,
		duck:  duck,
		log:   log,
		pub:   pub,
		state: StateNotRunning,
		now:   time.Now,
	}
}

// Start establishes event subscriptions. Call Close to tear them down;
// teardown is deterministic regardless of in-flight launches.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubs = append(s.unsubs,
		s.br.OnExit(func(e bridge.ExitEvent) {
			s.exit(s.currentSession(), e.Code, e.Crashed)
		}),
		s.br.OnCrash(func(e bridge.CrashEvent) {
			s.log.Error().Str("message", e.Message).Msg("game crash reported")
		}),
		s.br.OnLog(func(e bridge.LogEvent) {
			s.log.Debug().Str("line", e.Line).Msg("game")
		}),
	)
}

// Close detaches event subscriptions and stops any health check. Safe to
// call while a launch is in flight or a session is playing.
func (s *Supervisor) Close() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	if s.healthOff != nil {
		s.healthOff()
		s.healthOff = nil
	}
	s.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// Launch starts a game session. Preconditions: the process must not already
// be running (checked through the bridge); violations return an
// ALREADY_RUNNING error without side effects. Failures are normalized, set
// the error state, and are returned to the caller, which owns UI surfacing.
func (s *Supervisor) Launch(ctx context.Context, cfg types.LaunchConfig) error {
	running, err := s.br.IsGameRunning(ctx)
	if err != nil {
		le := types.NormalizeError(err)
		s.mu.Lock()
		// A failed precondition probe never disturbs a live session.
		if s.state != StatePlaying && s.state != StateLaunching {
			s.state = StateError
			s.lastErr = le
		}
		s.mu.Unlock()
		return le
	}
	if running {
		return types.NewError(types.ErrAlreadyRunning, "game process already running")
	}

	s.mu.Lock()
	if s.state == StateLaunching || s.state == StatePlaying {
		s.mu.Unlock()
		return types.NewError(types.ErrAlreadyRunning, "launch already in progress")
	}
	session := uuid.NewString()
	s.state = StateLaunching
	s.sessionID = session
	s.lastErr = nil
	if s.duck != nil {
		s.duck.Duck()
	}
	if !s.cfg.KeepLauncherOpen && s.win != nil {
		s.win.Minimize()
		s.minimized = true
	}
	s.mu.Unlock()

	s.pub.Publish(events.Event{Name: "launch_start", Fields: map[string]any{"session": session}})
	if err := s.br.LaunchGame(ctx, cfg); err != nil {
		le := types.NormalizeError(err)
		s.mu.Lock()
		if s.sessionID == session {
			s.state = StateError
			s.lastErr = le
			s.restoreLocked()
		}
		s.mu.Unlock()
		gameLaunches.WithLabelValues("error").Inc()
		s.pub.Publish(events.Event{Name: "launch_failed", Fields: map[string]any{"session": session}})
		return le
	}

	s.mu.Lock()
	if s.sessionID != session || s.state != StateLaunching {
		// The session ended while the launch call was in flight (rapid
		// launch/exit); the terminal record stands.
		s.mu.Unlock()
		return nil
	}
	s.state = StatePlaying
	hctx, cancel := context.WithCancel(context.Background())
	s.healthOff = cancel
	s.mu.Unlock()

	go s.healthLoop(hctx, session)
	gameLaunches.WithLabelValues("ok").Inc()
	s.pub.Publish(events.Event{Name: "launch_playing", Fields: map[string]any{"session": session}})
	return nil
}

// Kill force-stops the running game through the bridge. The terminal
// transition still arrives via the exit event or the health check.
func (s *Supervisor) Kill(ctx context.Context) error {
	if err := s.br.KillGame(ctx); err != nil {
		return types.NormalizeError(err)
	}
	return nil
}

// exit is the single terminal transition. Both the exit event and the
// health check funnel through it; a second signal for the same session
// finds the state already terminal and does nothing.
func (s *Supervisor) exit(session string, code int, crashed bool) {
	s.mu.Lock()
	if session == "" || s.sessionID != session || (s.state != StatePlaying && s.state != StateLaunching) {
		s.mu.Unlock()
		return
	}
	s.state = StateExited
	s.lastExit = &types.ExitRecord{ExitCode: code, Crashed: crashed, At: s.now().Unix()}
	if s.healthOff != nil {
		s.healthOff()
		s.healthOff = nil
	}
	s.restoreLocked()
	if crashed {
		s.lastErr = types.NewError(types.ErrLaunchFailed, "game crashed").WithContext("exit_code", code)
	}
	s.mu.Unlock()

	kind := "clean"
	if crashed {
		kind = "crash"
	}
	gameExits.WithLabelValues(kind).Inc()
	s.pub.Publish(events.Event{Name: "launch_exit", Fields: map[string]any{
		"session": session, "exit_code": code, "crashed": crashed,
	}})
	s.log.Info().Str("session", session).Int("exit_code", code).Bool("crashed", crashed).
		Msg("game session ended")
}

// restoreLocked undoes launch side effects. Caller holds mu.
func (s *Supervisor) restoreLocked() {
	if s.minimized && s.win != nil {
		s.win.Restore()
		s.minimized = false
	}
	if s.duck != nil {
		s.duck.Resume()
	}
}

func (s *Supervisor) currentSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Playing reports whether a session is currently live.
func (s *Supervisor) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StatePlaying
}

// Snapshot returns a read-only view for the status API.
func (s *Supervisor) Snapshot() types.GameStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := types.GameStatus{State: string(s.state), SessionID: s.sessionID}
	if s.lastExit != nil {
		e := *s.lastExit
		st.LastExit = &e
	}
	if s.lastErr != nil {
		e := *s.lastErr
		st.Error = &e
	}
	return st
}
