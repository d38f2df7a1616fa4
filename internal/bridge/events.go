package bridge

// Backend event names.
const (
	evtGameLog   = "game-log"
	evtGameExit  = "game-exit"
	evtGameCrash = "game-crash"
)

// ExitEvent reports that the game process ended.
type ExitEvent struct {
	Code    int
	Crashed bool
}

// CrashEvent carries the backend's crash diagnostic.
type CrashEvent struct {
	Message string
}

// LogEvent is one line of game process output.
type LogEvent struct {
	Line string
}

// OnExit subscribes to process-exit events. Malformed payloads are dropped
// with a log line; handlers only ever see validated variants.
func (c *Client) OnExit(fn func(ExitEvent)) (cancel func()) {
	if c.events == nil {
		return func() {}
	}
	return c.events.Subscribe(evtGameExit, func(payload map[string]any) {
		code, okCode := asInt(payload["exit_code"])
		crashed, okCrashed := payload["crashed"].(bool)
		if !okCode {
			c.log.Warn().Interface("payload", payload).Msg("dropping malformed game-exit event")
			return
		}
		if !okCrashed {
			crashed = false
		}
		fn(ExitEvent{Code: code, Crashed: crashed})
	})
}

// OnCrash subscribes to crash diagnostics.
func (c *Client) OnCrash(fn func(CrashEvent)) (cancel func()) {
	if c.events == nil {
		return func() {}
	}
	return c.events.Subscribe(evtGameCrash, func(payload map[string]any) {
		msg, ok := payload["message"].(string)
		if !ok {
			c.log.Warn().Interface("payload", payload).Msg("dropping malformed game-crash event")
			return
		}
		fn(CrashEvent{Message: msg})
	})
}

// OnLog subscribes to game process log lines.
func (c *Client) OnLog(fn func(LogEvent)) (cancel func()) {
	if c.events == nil {
		return func() {}
	}
	return c.events.Subscribe(evtGameLog, func(payload map[string]any) {
		line, ok := payload["line"].(string)
		if !ok {
			return
		}
		fn(LogEvent{Line: line})
	})
}

// asInt tolerates the numeric encodings JSON decoding produces.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
