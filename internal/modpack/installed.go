package modpack

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"launcherd/internal/common/fsutil"
)

// versionFile records the installed modpack version inside the game dir.
const versionFile = "version.txt"

// InstalledVersion reads the locally installed modpack version. A missing
// game dir or version file means nothing is installed and returns "".
func InstalledVersion(gameDir string) (string, error) {
	dir, err := fsutil.ExpandHome(gameDir)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(filepath.Join(dir, versionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// WriteInstalledVersion persists the installed version marker.
func WriteInstalledVersion(gameDir, version string) error {
	dir, err := fsutil.ExpandHome(gameDir)
	if err != nil {
		return err
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, versionFile), []byte(version+"\n"), 0o644)
}
