package game

import (
	"context"
	"time"
)

// healthLoop re-queries process liveness while a session is playing. It is
// the fallback for a lost exit event: when the process is found dead, it
// synthesizes an exit with code -1 and crashed=false. Query failures are
// background errors: logged and swallowed, never surfaced.
func (s *Supervisor) healthLoop(ctx context.Context, session string) {
	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		live := s.state == StatePlaying && s.sessionID == session
		s.mu.Unlock()
		if !live {
			return
		}
		qctx, cancel := context.WithTimeout(ctx, s.cfg.HealthInterval)
		running, err := s.br.IsGameRunning(qctx)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Str("session", session).Msg("health check failed")
			continue
		}
		if !running {
			s.exit(session, -1, false)
			return
		}
	}
}
