// Package bridge is the command-invocation boundary to the privileged
// launcher backend (process spawning, file installation, audio cache). It
// exposes a typed Client over two small interfaces:
//
//   - Invoker: request name + structured args -> structured result or error.
//   - EventSource: named event stream -> loosely-typed payloads.
//
// Every error returned by an Invoker is normalized into the canonical
// LauncherError shape here, exactly once; callers branch on codes and
// flags, never on raw messages. Raw event payloads are validated into
// closed tagged variants in events.go.
package bridge

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"launcherd/internal/dedup"
	"launcherd/internal/ratelimit"
	"launcherd/pkg/types"
)

// Command names understood by the backend.
const (
	cmdIsGameRunning   = "is_game_running"
	cmdLaunchGame      = "launch_game"
	cmdKillGame        = "kill_game"
	cmdCheckForUpdates = "check_for_updates"
	cmdInstallModpack  = "install_modpack"
	cmdVerifyModpack   = "verify_modpack"
	cmdGetCachedAudio  = "get_cached_audio"
	cmdCacheAudio      = "cache_audio"
	cmdClearAudioCache = "clear_audio_cache"
	cmdDownloadAudio   = "download_audio"
	cmdPingServer      = "ping_server"
)

// Invoker executes one backend command. args is marshaled as the request
// payload; out, when non-nil, receives the decoded result.
type Invoker interface {
	Invoke(ctx context.Context, cmd string, args any, out any) error
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, cmd string, args any, out any) error

func (f InvokerFunc) Invoke(ctx context.Context, cmd string, args any, out any) error {
	return f(ctx, cmd, args, out)
}

// EventSource delivers named backend events. Subscribe returns a cancel
// function that detaches the handler; it must be safe to call once even if
// the source has already shut down.
type EventSource interface {
	Subscribe(name string, fn func(payload map[string]any)) (cancel func())
}

// defaultPingSpacing is the minimum gap between server pings, regardless of
// how many pollers or UI refreshes ask for one.
const defaultPingSpacing = 2 * time.Second

// Client is the typed face of the bridge.
type Client struct {
	inv    Invoker
	events EventSource
	log    zerolog.Logger

	flight  dedup.Group
	pingLim *ratelimit.Limiter
}

// NewClient wraps inv and events. events may be nil when no event stream is
// available (the On* methods then return no-op cancels).
func NewClient(inv Invoker, events EventSource, log zerolog.Logger) *Client {
	return &Client{
		inv:     inv,
		events:  events,
		log:     log,
		pingLim: ratelimit.New(defaultPingSpacing),
	}
}

// IsGameRunning queries backend process liveness.
func (c *Client) IsGameRunning(ctx context.Context) (bool, error) {
	var out struct {
		Running bool `json:"running"`
	}
	if err := c.inv.Invoke(ctx, cmdIsGameRunning, nil, &out); err != nil {
		return false, types.NormalizeError(err)
	}
	return out.Running, nil
}

// LaunchGame asks the backend to start the game process.
func (c *Client) LaunchGame(ctx context.Context, cfg types.LaunchConfig) error {
	if err := c.inv.Invoke(ctx, cmdLaunchGame, cfg, nil); err != nil {
		return types.NormalizeError(err)
	}
	return nil
}

// KillGame force-stops the game process.
func (c *Client) KillGame(ctx context.Context) error {
	if err := c.inv.Invoke(ctx, cmdKillGame, nil, nil); err != nil {
		return types.NormalizeError(err)
	}
	return nil
}

type manifestArgs struct {
	URL string `json:"url"`
}

// FetchManifest downloads and decodes the latest modpack manifest.
// Concurrent calls share one in-flight request.
func (c *Client) FetchManifest(ctx context.Context, url string) (types.Manifest, error) {
	v, err := c.flight.Execute(cmdCheckForUpdates, func() (any, error) {
		var m types.Manifest
		if err := c.inv.Invoke(ctx, cmdCheckForUpdates, manifestArgs{URL: url}, &m); err != nil {
			return types.Manifest{}, types.NormalizeError(err)
		}
		return m, nil
	})
	if err != nil {
		return types.Manifest{}, err
	}
	return v.(types.Manifest), nil
}

type installArgs struct {
	Manifest types.Manifest `json:"manifest"`
	GameDir  string         `json:"game_dir"`
}

// InstallModpack installs or updates the modpack described by m into dir.
func (c *Client) InstallModpack(ctx context.Context, m types.Manifest, dir string) error {
	if err := c.inv.Invoke(ctx, cmdInstallModpack, installArgs{Manifest: m, GameDir: dir}, nil); err != nil {
		return types.NormalizeError(err)
	}
	return nil
}

// VerifyModpack re-checks installed files against the manifest, repairing
// what it can.
func (c *Client) VerifyModpack(ctx context.Context, m types.Manifest, dir string) error {
	if err := c.inv.Invoke(ctx, cmdVerifyModpack, installArgs{Manifest: m, GameDir: dir}, nil); err != nil {
		return types.NormalizeError(err)
	}
	return nil
}

// ReadAudioCache returns cached audio bytes, or nil on a cache miss.
func (c *Client) ReadAudioCache(ctx context.Context) ([]byte, error) {
	var out struct {
		Data []byte `json:"data"`
	}
	if err := c.inv.Invoke(ctx, cmdGetCachedAudio, nil, &out); err != nil {
		return nil, types.NormalizeError(err)
	}
	return out.Data, nil
}

type audioData struct {
	Data []byte `json:"data"`
}

// WriteAudioCache stores audio bytes in the backend cache.
func (c *Client) WriteAudioCache(ctx context.Context, data []byte) error {
	if err := c.inv.Invoke(ctx, cmdCacheAudio, audioData{Data: data}, nil); err != nil {
		return types.NormalizeError(err)
	}
	return nil
}

// ClearAudioCache drops any cached audio.
func (c *Client) ClearAudioCache(ctx context.Context) error {
	if err := c.inv.Invoke(ctx, cmdClearAudioCache, nil, nil); err != nil {
		return types.NormalizeError(err)
	}
	return nil
}

type downloadArgs struct {
	URL string `json:"url"`
}

// DownloadAudio fetches the main audio track over the backend's downloader.
func (c *Client) DownloadAudio(ctx context.Context, url string) ([]byte, error) {
	var out audioData
	if err := c.inv.Invoke(ctx, cmdDownloadAudio, downloadArgs{URL: url}, &out); err != nil {
		return nil, types.NormalizeError(err)
	}
	return out.Data, nil
}

type pingArgs struct {
	Address string `json:"address"`
}

// PingServer queries the game server status. Calls are rate limited to one
// ping per cooldown window and concurrent callers share one in-flight ping.
func (c *Client) PingServer(ctx context.Context, addr string) (types.ServerStatus, error) {
	v, err := c.flight.Execute(cmdPingServer, func() (any, error) {
		var st types.ServerStatus
		err := c.pingLim.Do(ctx, func(ctx context.Context) error {
			return c.inv.Invoke(ctx, cmdPingServer, pingArgs{Address: addr}, &st)
		})
		if err != nil {
			return types.ServerStatus{}, types.NormalizeError(err)
		}
		return st, nil
	})
	if err != nil {
		return types.ServerStatus{}, err
	}
	return v.(types.ServerStatus), nil
}
