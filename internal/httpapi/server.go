// Package httpapi exposes the launcher lifecycle state over a local HTTP
// API consumed by the UI. It is structured into small files by concern:
//
//   - server.go: service interfaces, router, handlers.
//   - errors.go: JSON error payloads and LauncherError -> status mapping.
//   - metrics.go: prometheus middleware and counters.
//   - logging.go: optional zerolog request logging.
//   - config.go: package-level knobs (body limit, CORS).
//   - swagger.go / swagger_stub.go: optional swagger mount (-tags=swagger).
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"launcherd/internal/modpack"
	"launcherd/internal/serverstatus"
	"launcherd/pkg/types"
)

// GameService is the slice of the game supervisor the API needs.
type GameService interface {
	Launch(ctx context.Context, cfg types.LaunchConfig) error
	Kill(ctx context.Context) error
	Snapshot() types.GameStatus
}

// ModpackService is the slice of the modpack manager the API needs.
type ModpackService interface {
	CheckAndInstall(ctx context.Context) error
	Install(ctx context.Context, opts modpack.InstallOptions) error
	Verify(ctx context.Context, opts modpack.VerifyOptions) error
	UpToDate() bool
	BackgroundErrors() []types.LauncherError
	DismissBackgroundErrors()
	Snapshot() types.ModpackStatus
}

// AudioService is the slice of the audio controller the API needs.
type AudioService interface {
	Snapshot() types.AudioStatus
}

// Deps bundles everything the router serves.
type Deps struct {
	Game    GameService
	Modpack ModpackService
	Audio   AudioService
	Server  *serverstatus.Cache
	// Defaults merged into launch requests.
	LaunchDefaults types.LaunchConfig
}

// NewMux builds the router.
func NewMux(d Deps) http.Handler {
	started := time.Now()
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	r.Use(requestLogMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := types.StatusResponse{
			Game:           d.Game.Snapshot(),
			Modpack:        d.Modpack.Snapshot(),
			Audio:          d.Audio.Snapshot(),
			UptimeSeconds:  int64(time.Since(started).Seconds()),
			ServerTimeUnix: time.Now().Unix(),
		}
		if st, ok := d.Server.Last(); ok {
			resp.Server = &st
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/server", func(w http.ResponseWriter, r *http.Request) {
		st, ok := d.Server.Last()
		if !ok {
			writeJSONError(w, http.StatusServiceUnavailable, "no server status observed yet")
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	r.Post("/launch", func(w http.ResponseWriter, r *http.Request) {
		var req types.LaunchRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Username == "" || req.AccessToken == "" {
			writeJSONError(w, http.StatusUnauthorized, "launch requires an authenticated session")
			return
		}
		if !d.Modpack.UpToDate() {
			writeJSONError(w, http.StatusConflict, "modpack is not up to date")
			return
		}
		cfg := d.LaunchDefaults
		cfg.Username = req.Username
		cfg.UUID = req.UUID
		cfg.AccessToken = req.AccessToken
		if req.RAMMB > 0 {
			cfg.RAMMB = req.RAMMB
		}
		if err := d.Game.Launch(r.Context(), cfg); err != nil {
			writeLauncherError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d.Game.Snapshot())
	})

	r.Post("/kill", func(w http.ResponseWriter, r *http.Request) {
		if err := d.Game.Kill(r.Context()); err != nil {
			writeLauncherError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d.Game.Snapshot())
	})

	r.Route("/modpack", func(r chi.Router) {
		r.Post("/check", func(w http.ResponseWriter, r *http.Request) {
			if err := d.Modpack.CheckAndInstall(r.Context()); err != nil {
				writeLauncherError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, d.Modpack.Snapshot())
		})
		r.Post("/install", func(w http.ResponseWriter, r *http.Request) {
			if err := d.Modpack.Install(r.Context(), modpack.InstallOptions{}); err != nil {
				writeLauncherError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, d.Modpack.Snapshot())
		})
		r.Post("/verify", func(w http.ResponseWriter, r *http.Request) {
			silent := r.URL.Query().Get("silent") == "1"
			if err := d.Modpack.Verify(r.Context(), modpack.VerifyOptions{Silent: silent}); err != nil {
				writeLauncherError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, d.Modpack.Snapshot())
		})
		r.Get("/errors", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"background_errors": d.Modpack.BackgroundErrors()})
		})
		r.Delete("/errors", func(w http.ResponseWriter, r *http.Request) {
			d.Modpack.DismissBackgroundErrors()
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Modpack.Snapshot().HasCheckedOnce {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("checking"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSON enforces the content type and body limit, then decodes into v.
// It writes the error response itself and reports whether decoding worked.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
