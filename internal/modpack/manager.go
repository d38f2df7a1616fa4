// Package modpack drives the install/update lifecycle: check -> install ->
// verify, layered over the installed-version / latest-manifest comparison.
//
// Errors travel on two channels. Foreground errors come from explicit user
// actions (install, non-silent verify, the check itself) and are returned
// to the caller. Background errors come from automatic repair attempts
// (silent verify) and accumulate in a dismissible list so periodic work
// never interrupts the user.
package modpack

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"launcherd/internal/events"
	"launcherd/internal/poll"
	"launcherd/pkg/types"
)

// Bridge is the slice of the command bridge the manager needs.
type Bridge interface {
	FetchManifest(ctx context.Context, url string) (types.Manifest, error)
	InstallModpack(ctx context.Context, m types.Manifest, dir string) error
	VerifyModpack(ctx context.Context, m types.Manifest, dir string) error
}

// Config carries the manager's external parameters.
type Config struct {
	ManifestURL string
	GameDir     string
	// Backoff gate between failed checks: min(base * mult^attempts, cap).
	CheckBackoffBase       time.Duration // default 30s
	CheckBackoffMultiplier float64       // default 2
}

const defaultCheckBackoffBase = 30 * time.Second

// InstallOptions tunes Install.
type InstallOptions struct{}

// VerifyOptions tunes Verify. Silent failures are recorded as background
// errors instead of being returned.
type VerifyOptions struct {
	Silent bool
}

// Manager is the reducer-driven install lifecycle state machine.
type Manager struct {
	br  Bridge
	cfg Config
	log zerolog.Logger
	pub events.Publisher

	mu               sync.Mutex
	hasCheckedOnce   bool
	installing       bool
	verifying        bool
	checkAttempts    int
	lastCheckTime    time.Time
	installPath      types.InstallPath
	installedVersion string
	manifest         *types.Manifest
	lastErr          *types.LauncherError
	bgErrs           []types.LauncherError

	now func() time.Time
}

// New builds a manager. pub may be nil.
func New(br Bridge, cfg Config, pub events.Publisher, log zerolog.Logger) *Manager {
	if cfg.CheckBackoffBase <= 0 {
		cfg.CheckBackoffBase = defaultCheckBackoffBase
	}
	if cfg.CheckBackoffMultiplier <= 1 {
		cfg.CheckBackoffMultiplier = 2
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Manager{
		br:          br,
		cfg:         cfg,
		log:         log,
		pub:         pub,
		installPath: types.NotInstalled,
		now:         time.Now,
	}
}

// CheckAndInstall fetches the latest manifest, derives the install path,
// and installs when the pack is missing or stale. It is idempotent per
// session: once a check has succeeded, later calls are no-ops. Failed
// checks are gated by an exponential backoff window computed from
// lastCheckTime and checkAttempts; calls inside the window are no-ops.
func (m *Manager) CheckAndInstall(ctx context.Context) error {
	m.mu.Lock()
	if m.hasCheckedOnce || m.installing {
		m.mu.Unlock()
		return nil
	}
	if m.checkAttempts > 0 {
		window := poll.NextInterval(m.cfg.CheckBackoffBase, m.cfg.CheckBackoffMultiplier, m.checkAttempts)
		if m.now().Before(m.lastCheckTime.Add(window)) {
			m.mu.Unlock()
			return nil
		}
	}
	m.lastCheckTime = m.now()
	m.mu.Unlock()

	err := m.check(ctx)
	m.mu.Lock()
	if err != nil {
		m.checkAttempts++
		m.lastErr = types.NormalizeError(err)
		attempts := m.checkAttempts
		m.mu.Unlock()
		m.log.Warn().Err(err).Int("attempts", attempts).Msg("modpack check failed")
		return types.NormalizeError(err)
	}
	m.hasCheckedOnce = true
	m.checkAttempts = 0
	m.lastErr = nil
	m.mu.Unlock()
	return nil
}

func (m *Manager) check(ctx context.Context) error {
	installed, err := InstalledVersion(m.cfg.GameDir)
	if err != nil {
		return err
	}
	manifest, err := m.br.FetchManifest(ctx, m.cfg.ManifestURL)
	if err != nil {
		return err
	}
	updateAvailable := installed != "" && installed != manifest.Version
	path := DetermineInstallPath(installed, manifest.Version, updateAvailable)

	m.mu.Lock()
	m.manifest = &manifest
	m.installedVersion = installed
	m.installPath = path
	m.mu.Unlock()
	m.pub.Publish(events.Event{Name: "modpack_checked", Fields: map[string]any{
		"install_path": string(path), "latest": manifest.Version,
	}})

	if path == types.NotInstalled || path == types.UpdateAvailable {
		return m.Install(ctx, InstallOptions{})
	}
	return nil
}

// Install drives the backend install operation. Re-entrant calls while an
// install is in flight are no-ops. Failures are recorded as the foreground
// error and returned; the caller surfaces them.
func (m *Manager) Install(ctx context.Context, _ InstallOptions) error {
	m.mu.Lock()
	if m.installing {
		m.mu.Unlock()
		return nil
	}
	if m.manifest == nil {
		m.mu.Unlock()
		if err := m.refreshManifest(ctx); err != nil {
			return err
		}
		m.mu.Lock()
	}
	manifest := *m.manifest
	m.installing = true
	m.mu.Unlock()

	m.pub.Publish(events.Event{Name: "modpack_install_start", Fields: map[string]any{"version": manifest.Version}})
	err := m.br.InstallModpack(ctx, manifest, m.cfg.GameDir)

	m.mu.Lock()
	m.installing = false
	if err != nil {
		le := types.NormalizeError(err)
		m.lastErr = le
		m.mu.Unlock()
		m.pub.Publish(events.Event{Name: "modpack_install_failed", Fields: map[string]any{"version": manifest.Version}})
		return le
	}
	m.installPath = types.UpToDate
	m.installedVersion = manifest.Version
	m.lastErr = nil
	m.mu.Unlock()

	if err := WriteInstalledVersion(m.cfg.GameDir, manifest.Version); err != nil {
		m.log.Warn().Err(err).Msg("could not persist installed version marker")
	}
	m.pub.Publish(events.Event{Name: "modpack_install_done", Fields: map[string]any{"version": manifest.Version}})
	return nil
}

// Verify re-checks installed files against the manifest. Re-entrant calls
// are no-ops. With Silent set, failures are appended to the background
// error list and never returned, so periodic repair can fail without
// interrupting the user; without it, failures are foreground.
func (m *Manager) Verify(ctx context.Context, opts VerifyOptions) error {
	m.mu.Lock()
	if m.verifying {
		m.mu.Unlock()
		return nil
	}
	if m.manifest == nil {
		m.mu.Unlock()
		if err := m.refreshManifest(ctx); err != nil {
			return m.verifyFailed(err, opts.Silent)
		}
		m.mu.Lock()
	}
	manifest := *m.manifest
	m.verifying = true
	m.mu.Unlock()

	err := m.br.VerifyModpack(ctx, manifest, m.cfg.GameDir)

	m.mu.Lock()
	m.verifying = false
	m.mu.Unlock()
	if err != nil {
		return m.verifyFailed(err, opts.Silent)
	}
	m.pub.Publish(events.Event{Name: "modpack_verify_done", Fields: map[string]any{"version": manifest.Version}})
	return nil
}

func (m *Manager) verifyFailed(err error, silent bool) error {
	le := types.NormalizeError(err)
	if silent {
		m.mu.Lock()
		m.bgErrs = append(m.bgErrs, *le)
		m.mu.Unlock()
		m.log.Warn().Err(le).Msg("silent verify failed")
		return nil
	}
	m.mu.Lock()
	m.lastErr = le
	m.mu.Unlock()
	return le
}

func (m *Manager) refreshManifest(ctx context.Context) error {
	manifest, err := m.br.FetchManifest(ctx, m.cfg.ManifestURL)
	if err != nil {
		return types.NormalizeError(err)
	}
	m.mu.Lock()
	m.manifest = &manifest
	m.mu.Unlock()
	return nil
}

// UpToDate reports whether the pack is installed at the latest version;
// the launch flow requires this before starting the game.
func (m *Manager) UpToDate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installPath == types.UpToDate
}

// BackgroundErrors returns a copy of the accumulated silent failures.
func (m *Manager) BackgroundErrors() []types.LauncherError {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.LauncherError, len(m.bgErrs))
	copy(out, m.bgErrs)
	return out
}

// DismissBackgroundErrors clears the silent failure list.
func (m *Manager) DismissBackgroundErrors() {
	m.mu.Lock()
	m.bgErrs = nil
	m.mu.Unlock()
}

// Snapshot returns a read-only view for the status API.
func (m *Manager) Snapshot() types.ModpackStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := types.ModpackStatus{
		InstallPath:      string(m.installPath),
		InstalledVersion: m.installedVersion,
		HasCheckedOnce:   m.hasCheckedOnce,
		CheckAttempts:    m.checkAttempts,
		Installing:       m.installing,
		Verifying:        m.verifying,
	}
	if m.manifest != nil {
		st.LatestVersion = m.manifest.Version
	}
	if m.lastErr != nil {
		e := *m.lastErr
		st.Error = &e
	}
	if len(m.bgErrs) > 0 {
		st.BackgroundErrors = make([]types.LauncherError, len(m.bgErrs))
		copy(st.BackgroundErrors, m.bgErrs)
	}
	return st
}
