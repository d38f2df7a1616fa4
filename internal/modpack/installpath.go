package modpack

import "launcherd/pkg/types"

// DetermineInstallPath classifies the local install:
//
//   - no installed version          -> not_installed
//   - versions differ and an update
//     is flagged as available       -> update_available
//   - otherwise                     -> up_to_date
func DetermineInstallPath(installed, latest string, updateAvailable bool) types.InstallPath {
	if installed == "" {
		return types.NotInstalled
	}
	if updateAvailable && installed != latest {
		return types.UpdateAvailable
	}
	return types.UpToDate
}
