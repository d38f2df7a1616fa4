// Package audio bootstraps ambient audio with a fallback-first strategy:
//
//	loading -> fallback -> transitioning -> main
//
// A short bundled loop starts quickly while the main track is resolved
// cache-first (then downloaded and re-cached) through the command bridge.
// When the main track becomes ready during fallback, a fixed-step
// crossfade hands over playback; if starting the main track fails, the
// controller reverts to the fallback at its original volume rather than
// going silent. A watchdog retries the main fetch a bounded number of
// times while stuck on fallback.
package audio

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"launcherd/pkg/types"
)

// State of the bootstrap machine.
type State string

const (
	StateLoading       State = "loading"
	StateFallback      State = "fallback"
	StateTransitioning State = "transitioning"
	StateMain          State = "main"
)

// Bridge is the slice of the command bridge the controller needs.
type Bridge interface {
	ReadAudioCache(ctx context.Context) ([]byte, error)
	WriteAudioCache(ctx context.Context, data []byte) error
	DownloadAudio(ctx context.Context, url string) ([]byte, error)
}

// Config tunes the bootstrap. Durations are configurable so tests can run
// the machine against millisecond fades.
type Config struct {
	TrackURL         string
	TargetVolume     float64       // default 0.3
	FadeDuration     time.Duration // per ramp; default 2s
	FadeSteps        int           // default 20
	StartDelay       time.Duration // before the fallback starts; default 500ms
	ReadyTimeout     time.Duration // bounded wait for main readiness; default 5s
	WatchdogInterval time.Duration // stuck-fallback retry spacing; default 15s
	MaxRetries       int           // bounded retries while stuck; default 3
}

func (c *Config) applyDefaults() {
	if c.TargetVolume <= 0 {
		c.TargetVolume = 0.3
	}
	if c.FadeDuration <= 0 {
		c.FadeDuration = 2 * time.Second
	}
	if c.FadeSteps <= 0 {
		c.FadeSteps = 20
	}
	if c.StartDelay <= 0 {
		c.StartDelay = 500 * time.Millisecond
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 5 * time.Second
	}
	if c.WatchdogInterval <= 0 {
		c.WatchdogInterval = 15 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}

// Controller owns the audio state machine.
type Controller struct {
	br  Bridge
	eng Engine
	cfg Config
	log zerolog.Logger

	mu         sync.Mutex
	state      State
	fallback   Track
	main       Track
	mainReady  bool
	retryCount int
	fetching   bool
	ducked     bool
	cancel     context.CancelFunc
}

// New builds a controller; call Start to run it.
func New(br Bridge, eng Engine, cfg Config, log zerolog.Logger) *Controller {
	cfg.applyDefaults()
	return &Controller{br: br, eng: eng, cfg: cfg, log: log, state: StateLoading}
}

// Start kicks off the fallback delay, the main-track fetch, and the
// stuck-fallback watchdog. Call Close to stop everything and release
// tracks.
func (c *Controller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.startFallback(ctx)
	go c.fetchMain(ctx)
	go c.watchdog(ctx)
}

// Close tears the controller down. Every constructed track is released
// exactly once: tracks are nil-ed under the lock as they are closed, so a
// replacement and a teardown can never double-release.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	fb, mn := c.fallback, c.main
	c.fallback, c.main = nil, nil
	c.mu.Unlock()
	if fb != nil {
		fb.Stop()
		_ = fb.Close()
	}
	if mn != nil {
		mn.Stop()
		_ = mn.Close()
	}
}

// startFallback waits out the start delay and, if the machine is still
// loading, begins the fallback loop.
func (c *Controller) startFallback(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(c.cfg.StartDelay):
	}
	c.mu.Lock()
	if c.state != StateLoading {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	t, err := c.eng.OpenFallback()
	if err != nil {
		c.log.Warn().Err(err).Msg("fallback audio unavailable")
		return
	}
	c.mu.Lock()
	if c.state != StateLoading || ctx.Err() != nil {
		c.mu.Unlock()
		_ = t.Close()
		return
	}
	c.fallback = t
	c.state = StateFallback
	ready := c.mainReady
	c.mu.Unlock()

	t.SetVolume(c.effectiveVolume(c.cfg.TargetVolume))
	if err := t.Play(); err != nil {
		c.log.Warn().Err(err).Msg("fallback audio failed to start")
		return
	}
	if ready {
		go c.promote(ctx)
	}
}

// fetchMain resolves the main track bytes cache-first, downloading and
// re-caching on a miss. Failures are background errors; the watchdog
// decides whether to try again.
func (c *Controller) fetchMain(ctx context.Context) {
	c.mu.Lock()
	if c.fetching || c.mainReady {
		c.mu.Unlock()
		return
	}
	c.fetching = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.fetching = false
		c.mu.Unlock()
	}()

	data, err := c.br.ReadAudioCache(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("audio cache read failed")
	}
	if len(data) == 0 {
		dl, err := c.br.DownloadAudio(ctx, c.cfg.TrackURL)
		if err != nil {
			c.log.Warn().Err(err).Msg("main audio download failed")
			return
		}
		if err := c.br.WriteAudioCache(ctx, dl); err != nil {
			c.log.Warn().Err(err).Msg("audio cache write failed")
		}
		// Re-read so playback always comes from the cached copy.
		data, err = c.br.ReadAudioCache(ctx)
		if err != nil || len(data) == 0 {
			data = dl
		}
	}

	t, err := c.eng.OpenMain(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("main audio failed to decode")
		return
	}
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		_ = t.Close()
		return
	}
	prev := c.main
	c.main = t
	c.mainReady = true
	c.retryCount = 0
	st := c.state
	c.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}

	if st == StateFallback || st == StateLoading {
		go c.promote(ctx)
	}
}

// promote moves playback onto the main track: from fallback via the timed
// crossfade, or directly when the fallback never started.
func (c *Controller) promote(ctx context.Context) {
	c.mu.Lock()
	if !c.mainReady || c.main == nil || (c.state != StateFallback && c.state != StateLoading) {
		c.mu.Unlock()
		return
	}
	fromFallback := c.state == StateFallback
	c.state = StateTransitioning
	main := c.main
	fb := c.fallback
	c.mu.Unlock()

	// Bounded wait for readiness; proceed anyway on timeout since enough
	// data is buffered to try.
	select {
	case <-main.Ready():
	case <-time.After(c.cfg.ReadyTimeout):
	case <-ctx.Done():
		return
	}

	target := c.cfg.TargetVolume
	stepDur := c.cfg.FadeDuration / time.Duration(c.cfg.FadeSteps)
	if fromFallback && fb != nil {
		for step := 1; step <= c.cfg.FadeSteps; step++ {
			select {
			case <-ctx.Done():
				return
			case <-time.After(stepDur):
			}
			fb.SetVolume(c.effectiveVolume(rampVolume(target, 0, step, c.cfg.FadeSteps)))
		}
		fb.Stop()
	}

	main.SetVolume(0)
	if err := main.Play(); err != nil {
		c.log.Warn().Err(err).Msg("main audio failed to start, reverting to fallback")
		c.mu.Lock()
		c.state = StateFallback
		c.mu.Unlock()
		if fb != nil {
			fb.SetVolume(c.effectiveVolume(target))
			_ = fb.Play()
		}
		return
	}
	for step := 1; step <= c.cfg.FadeSteps; step++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(stepDur):
		}
		main.SetVolume(c.effectiveVolume(rampVolume(0, target, step, c.cfg.FadeSteps)))
	}

	c.mu.Lock()
	c.state = StateMain
	c.retryCount = 0
	c.mu.Unlock()
	// A duck toggled mid-fade wins over the ramp's final step.
	main.SetVolume(c.effectiveVolume(target))
}

// watchdog re-attempts the main fetch while the machine is stuck on
// fallback, up to MaxRetries; exhausted retries leave the fallback looping
// indefinitely.
func (c *Controller) watchdog(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.WatchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		c.mu.Lock()
		stuck := c.state == StateFallback && !c.mainReady && !c.fetching
		if !stuck || c.retryCount >= c.cfg.MaxRetries {
			c.mu.Unlock()
			continue
		}
		c.retryCount++
		n := c.retryCount
		c.mu.Unlock()
		c.log.Info().Int("retry", n).Msg("retrying main audio fetch")
		c.fetchMain(ctx)
	}
}

// Duck silences playback for the duration of a game session. Both tracks
// are silenced so a crossfade in flight cannot leave one audible; ramp
// steps and the fade's final volume consult the ducked flag themselves.
func (c *Controller) Duck() {
	c.mu.Lock()
	c.ducked = true
	fb, mn := c.fallback, c.main
	c.mu.Unlock()
	if mn != nil {
		mn.SetVolume(0)
	}
	if fb != nil {
		fb.SetVolume(0)
	}
}

// Resume restores the pre-duck volume.
func (c *Controller) Resume() {
	c.mu.Lock()
	c.ducked = false
	fb, mn, st := c.fallback, c.main, c.state
	c.mu.Unlock()
	if st == StateMain && mn != nil {
		mn.SetVolume(c.cfg.TargetVolume)
	} else if fb != nil && st == StateFallback {
		fb.SetVolume(c.cfg.TargetVolume)
	}
}

// effectiveVolume applies ducking on top of the requested volume.
func (c *Controller) effectiveVolume(v float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ducked {
		return 0
	}
	return v
}

// Snapshot returns a read-only view for the status API.
func (c *Controller) Snapshot() types.AudioStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.AudioStatus{State: string(c.state), MainReady: c.mainReady, RetryCount: c.retryCount}
}
