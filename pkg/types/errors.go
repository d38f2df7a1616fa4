package types

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrorCode classifies launcher failures. Downstream code branches on the
// code and the Retryable/Recoverable flags, never on raw messages.
type ErrorCode string

const (
	ErrNetwork        ErrorCode = "NETWORK"
	ErrAuth           ErrorCode = "AUTH"
	ErrAlreadyRunning ErrorCode = "ALREADY_RUNNING"
	ErrLaunchFailed   ErrorCode = "LAUNCH_FAILED"
	ErrDiskSpace      ErrorCode = "DISK_SPACE"
	ErrPermission     ErrorCode = "PERMISSION"
	ErrHashMismatch   ErrorCode = "HASH_MISMATCH"
	ErrDownload       ErrorCode = "DOWNLOAD"
	ErrCrash          ErrorCode = "CRASH"
	ErrUnknown        ErrorCode = "UNKNOWN"
)

// LauncherError is the canonical error shape used across the lifecycle
// components. Arbitrary errors are normalized into it exactly once, at the
// point they cross the command-bridge boundary.
type LauncherError struct {
	Code        ErrorCode      `json:"code"`
	Message     string         `json:"message"`
	UserMessage string         `json:"user_message"`
	Retryable   bool           `json:"retryable"`
	Recoverable bool           `json:"recoverable"`
	Context     map[string]any `json:"context,omitempty"`
}

func (e *LauncherError) Error() string { return string(e.Code) + ": " + e.Message }

// NewError builds a LauncherError with the flags and user message implied by code.
func NewError(code ErrorCode, msg string) *LauncherError {
	e := &LauncherError{Code: code, Message: msg}
	switch code {
	case ErrNetwork, ErrDownload, ErrHashMismatch:
		e.Retryable = true
		e.Recoverable = true
	case ErrAuth:
		e.Retryable = false
		e.Recoverable = true
	case ErrAlreadyRunning:
		e.Retryable = false
		e.Recoverable = true
	case ErrCrash:
		e.Retryable = false
		e.Recoverable = true // relaunch is always possible
	case ErrDiskSpace, ErrPermission:
		e.Retryable = false
		e.Recoverable = false
	case ErrLaunchFailed:
		e.Retryable = false
		e.Recoverable = true
	default:
		e.Code = ErrUnknown
		e.Retryable = false
		e.Recoverable = true
	}
	e.UserMessage = userMessage(e.Code)
	return e
}

// WithContext attaches a key/value to the error's context map.
func (e *LauncherError) WithContext(key string, val any) *LauncherError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = val
	return e
}

// NormalizeError converts an arbitrary error into a LauncherError. Errors
// that already carry the canonical shape pass through unchanged.
func NormalizeError(err error) *LauncherError {
	if err == nil {
		return nil
	}
	var le *LauncherError
	if errors.As(err, &le) {
		return le
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrNetwork, err.Error())
	case errors.Is(err, syscall.ENOSPC):
		return NewError(ErrDiskSpace, err.Error())
	case errors.Is(err, os.ErrPermission):
		return NewError(ErrPermission, err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewError(ErrNetwork, err.Error())
	}
	// Bridge errors arrive as strings; classify by well-known markers.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "hash mismatch") || strings.Contains(msg, "checksum"):
		return NewError(ErrHashMismatch, err.Error())
	case strings.Contains(msg, "no space left"):
		return NewError(ErrDiskSpace, err.Error())
	case strings.Contains(msg, "permission denied"):
		return NewError(ErrPermission, err.Error())
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid token"):
		return NewError(ErrAuth, err.Error())
	case strings.Contains(msg, "download"):
		return NewError(ErrDownload, err.Error())
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "timeout") || strings.Contains(msg, "no such host"):
		return NewError(ErrNetwork, err.Error())
	}
	return NewError(ErrUnknown, err.Error())
}

// IsCode reports whether err normalizes to the given code.
func IsCode(err error, code ErrorCode) bool {
	var le *LauncherError
	return errors.As(err, &le) && le.Code == code
}

// IsRetryable reports whether err may be retried automatically.
func IsRetryable(err error) bool {
	var le *LauncherError
	return errors.As(err, &le) && le.Retryable
}

func userMessage(code ErrorCode) string {
	switch code {
	case ErrNetwork:
		return "could not reach the server, check your connection"
	case ErrAuth:
		return "your session expired, please sign in again"
	case ErrAlreadyRunning:
		return "the game is already running"
	case ErrLaunchFailed:
		return "the game failed to start"
	case ErrDiskSpace:
		return "not enough disk space to continue"
	case ErrPermission:
		return "missing permission to write game files"
	case ErrHashMismatch:
		return "a downloaded file was corrupted, retrying may help"
	case ErrDownload:
		return "a download failed, retrying may help"
	case ErrCrash:
		return "the game crashed"
	default:
		return "something went wrong"
	}
}
