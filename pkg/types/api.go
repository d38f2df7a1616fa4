package types

// LaunchRequest is the body of POST /launch.
type LaunchRequest struct {
	// RAM allocation in MB. If zero, the configured default is used.
	// example: 4096
	RAMMB int `json:"ram_mb,omitempty" example:"4096"`
	// Player username.
	// example: steve
	Username string `json:"username" example:"steve"`
	// Player UUID.
	UUID string `json:"uuid"`
	// Session access token obtained from authentication.
	AccessToken string `json:"access_token"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// User-facing error message.
	// example: the game is already running
	Error string `json:"error" example:"the game is already running"`
	// Machine-readable launcher error code.
	// example: ALREADY_RUNNING
	ErrorCode string `json:"error_code,omitempty" example:"ALREADY_RUNNING"`
	// HTTP status code.
	// example: 409
	Code int `json:"code" example:"409"`
}

// ExitRecord describes how the last game session ended.
type ExitRecord struct {
	// Process exit code; -1 when synthesized by the health check.
	// example: 0
	ExitCode int `json:"exit_code" example:"0"`
	// Whether the backend classified the exit as a crash.
	Crashed bool `json:"crashed"`
	// Unix seconds at which the exit was observed.
	At int64 `json:"at_unix"`
}

// GameStatus summarizes the launch lifecycle for /status.
type GameStatus struct {
	// Lifecycle state (not_running, launching, playing, exited, error).
	// example: playing
	State string `json:"state" example:"playing"`
	// Opaque id of the current/most recent launch session.
	SessionID string `json:"session_id,omitempty"`
	// Last exit, if any session has ended.
	LastExit *ExitRecord `json:"last_exit,omitempty"`
	// Last foreground error, if any.
	Error *LauncherError `json:"error,omitempty"`
}

// ModpackStatus summarizes the install lifecycle for /status.
type ModpackStatus struct {
	// Derived install path (not_installed, update_available, up_to_date).
	// example: up_to_date
	InstallPath string `json:"install_path" example:"up_to_date"`
	// Locally installed version, empty when nothing is installed.
	// example: 1.0.0
	InstalledVersion string `json:"installed_version,omitempty" example:"1.0.0"`
	// Latest version from the fetched manifest.
	// example: 1.1.0
	LatestVersion string `json:"latest_version,omitempty" example:"1.1.0"`
	// Whether the once-per-session check has completed successfully.
	HasCheckedOnce bool `json:"has_checked_once"`
	// Consecutive failed check attempts (resets on success).
	CheckAttempts int `json:"check_attempts"`
	// Whether an install is in progress.
	Installing bool `json:"installing"`
	// Whether a verify is in progress.
	Verifying bool `json:"verifying"`
	// Last foreground error, if any.
	Error *LauncherError `json:"error,omitempty"`
	// Accumulated background (silent) errors.
	BackgroundErrors []LauncherError `json:"background_errors,omitempty"`
}

// AudioStatus summarizes the ambient audio state machine for /status.
type AudioStatus struct {
	// State (loading, fallback, transitioning, main).
	// example: main
	State string `json:"state" example:"main"`
	// Whether main audio bytes are available and decoded.
	MainReady bool `json:"main_ready"`
	// Retries spent escaping a stuck fallback (0..3).
	RetryCount int `json:"retry_count"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Game    GameStatus    `json:"game"`
	Modpack ModpackStatus `json:"modpack"`
	Audio   AudioStatus   `json:"audio"`
	// Last observed game-server status, if the status poll has run.
	Server *ServerStatus `json:"server,omitempty"`
	// Uptime of the daemon in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Daemon time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}
