package game

import (
	"context"
	"time"

	"launcherd/internal/bridge"
	"launcherd/pkg/types"
)

// State represents the launch lifecycle.
type State string

const (
	StateNotRunning State = "not_running"
	StateLaunching  State = "launching"
	StatePlaying    State = "playing"
	StateExited     State = "exited"
	StateError      State = "error"
)

// Bridge is the slice of the command bridge the supervisor needs.
type Bridge interface {
	IsGameRunning(ctx context.Context) (bool, error)
	LaunchGame(ctx context.Context, cfg types.LaunchConfig) error
	KillGame(ctx context.Context) error
	OnExit(fn func(bridge.ExitEvent)) (cancel func())
	OnCrash(fn func(bridge.CrashEvent)) (cancel func())
	OnLog(fn func(bridge.LogEvent)) (cancel func())
}

// Window abstracts launcher window visibility. A nil Window is a no-op.
type Window interface {
	Minimize()
	Restore()
}

// AudioDucker pauses/resumes ambient audio around a game session. A nil
// ducker is a no-op.
type AudioDucker interface {
	Duck()
	Resume()
}

// Config carries the user preferences the supervisor reads. It is passed
// explicitly so tests can inject fakes; the supervisor never reaches into
// ambient global state.
type Config struct {
	// Keep the launcher window visible while the game runs.
	KeepLauncherOpen bool
	// Liveness poll spacing while playing. Default 5s.
	HealthInterval time.Duration
}

const defaultHealthInterval = 5 * time.Second
