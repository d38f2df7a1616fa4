package httpapi

import (
	"encoding/json"
	"net/http"

	"launcherd/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

// writeLauncherError maps a normalized launcher error onto an HTTP status
// and emits only the user-facing message, never the raw one.
func writeLauncherError(w http.ResponseWriter, err error) {
	le := types.NormalizeError(err)
	status := statusForCode(le.Code)
	writeJSON(w, status, types.ErrorResponse{
		Error:     le.UserMessage,
		ErrorCode: string(le.Code),
		Code:      status,
	})
}

func statusForCode(code types.ErrorCode) int {
	switch code {
	case types.ErrAlreadyRunning:
		return http.StatusConflict
	case types.ErrAuth:
		return http.StatusUnauthorized
	case types.ErrNetwork, types.ErrDownload, types.ErrHashMismatch:
		return http.StatusBadGateway
	case types.ErrDiskSpace, types.ErrPermission, types.ErrLaunchFailed, types.ErrCrash:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
