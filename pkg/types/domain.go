package types

// ManifestFile describes a single file the modpack expects on disk.
type ManifestFile struct {
	Path   string `json:"path"`
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest is the published description of a modpack release.
type Manifest struct {
	Version          string         `json:"version"`
	MinecraftVersion string         `json:"minecraft_version"`
	FabricLoader     string         `json:"fabric_loader"`
	Files            []ManifestFile `json:"files"`
	Changelog        string         `json:"changelog,omitempty"`
}

// LaunchConfig carries everything the backend needs to start the game.
type LaunchConfig struct {
	RAMMB       int    `json:"ram_mb"`
	JavaPath    string `json:"java_path,omitempty"`
	GameDir     string `json:"game_dir"`
	Username    string `json:"username"`
	UUID        string `json:"uuid"`
	AccessToken string `json:"access_token"`
	Version     string `json:"version"`
}

// ServerStatus is the result of pinging the game server.
type ServerStatus struct {
	Online      bool     `json:"online"`
	PlayerCount int      `json:"player_count"`
	MaxPlayers  int      `json:"max_players"`
	Players     []string `json:"players,omitempty"`
	Version     string   `json:"version,omitempty"`
	MOTD        string   `json:"motd,omitempty"`
}

// InstallPath classifies the local install relative to the latest manifest.
type InstallPath string

const (
	NotInstalled    InstallPath = "not_installed"
	UpdateAvailable InstallPath = "update_available"
	UpToDate        InstallPath = "up_to_date"
)
