package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"launcherd/internal/audio"
	"launcherd/internal/bridge"
	"launcherd/internal/config"
	"launcherd/internal/events"
	"launcherd/internal/game"
	"launcherd/internal/httpapi"
	"launcherd/internal/modpack"
	"launcherd/internal/poll"
	"launcherd/internal/serverstatus"
	"launcherd/pkg/types"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		cfgPath       string
		addr          string
		backendURL    string
		gameDir       string
		manifestURL   string
		serverAddr    string
		audioURL      string
		audioFallback string
		ramMB         int
		keepOpen      bool
		logLevel      string
		corsOrigins   []string
	)

	root := &cobra.Command{
		Use:           "launcherd",
		Short:         "Launcher lifecycle daemon: game launch, modpack updates, ambient audio, server status",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{}
			if cfgPath != "" {
				var err error
				cfg, err = config.Load(cfgPath)
				if err != nil {
					return err
				}
			}
			// Flags win over the config file; both win over built-ins.
			if addr != "" {
				cfg.Addr = addr
			}
			if backendURL != "" {
				cfg.BackendURL = backendURL
			}
			if gameDir != "" {
				cfg.GameDir = gameDir
			}
			if manifestURL != "" {
				cfg.ManifestURL = manifestURL
			}
			if serverAddr != "" {
				cfg.ServerAddr = serverAddr
			}
			if audioURL != "" {
				cfg.AudioURL = audioURL
			}
			if audioFallback != "" {
				cfg.AudioFallback = audioFallback
			}
			if ramMB > 0 {
				cfg.RAMMB = ramMB
			}
			if keepOpen {
				cfg.KeepLauncherOpen = true
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			applyDefaults(&cfg)
			return run(cfg, corsOrigins)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "Path to config file (.toml/.yaml/.json)")
	root.Flags().StringVar(&addr, "addr", envOr("LAUNCHERD_ADDR", ""), "HTTP listen address, e.g. :8090")
	root.Flags().StringVar(&backendURL, "backend", envOr("LAUNCHERD_BACKEND", ""), "Base URL of the privileged backend bridge")
	root.Flags().StringVar(&gameDir, "game-dir", "", "Game installation directory")
	root.Flags().StringVar(&manifestURL, "manifest-url", "", "URL of the modpack manifest")
	root.Flags().StringVar(&serverAddr, "server-addr", "", "Game server address for status polling")
	root.Flags().StringVar(&audioURL, "audio-url", "", "URL of the main ambient audio track")
	root.Flags().StringVar(&audioFallback, "audio-fallback", "", "Path to the bundled fallback audio loop")
	root.Flags().IntVar(&ramMB, "ram-mb", 0, "Default RAM allocation for launches (MB)")
	root.Flags().BoolVar(&keepOpen, "keep-open", false, "Keep the launcher window visible while playing")
	root.Flags().StringVar(&logLevel, "log-level", envOr("LAUNCHERD_LOG_LEVEL", ""), "Log level: debug|info|warn|error")
	root.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "Allowed CORS origins for the UI (repeatable)")

	if err := root.Execute(); err != nil {
		logger := zerolog.New(os.Stderr)
		logger.Error().Err(err).Msg("launcherd failed")
		os.Exit(1)
	}
}

func applyDefaults(cfg *config.Config) {
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	if cfg.BackendURL == "" {
		cfg.BackendURL = "http://127.0.0.1:8091"
	}
	if cfg.GameDir == "" {
		cfg.GameDir = "~/wowid3"
	}
	if cfg.RAMMB <= 0 {
		cfg.RAMMB = 4096
	}
	if cfg.HealthIntervalSec <= 0 {
		cfg.HealthIntervalSec = 5
	}
	if cfg.ServerPollSec <= 0 {
		cfg.ServerPollSec = 30
	}
	if cfg.UpdatePollSec <= 0 {
		cfg.UpdatePollSec = 900
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func run(cfg config.Config, corsOrigins []string) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	inv := bridge.NewHTTPInvoker(cfg.BackendURL)
	src := bridge.NewHTTPEventSource(cfg.BackendURL, log)
	defer src.Close()
	br := bridge.NewClient(inv, src, log)

	pub := events.NopPublisher{}

	audioCtl := audio.New(br, audio.NewBeepEngine(cfg.AudioFallback), audio.Config{
		TrackURL: cfg.AudioURL,
	}, log)
	if cfg.AudioURL != "" {
		audioCtl.Start()
		defer audioCtl.Close()
	}

	mp := modpack.New(br, modpack.Config{
		ManifestURL: cfg.ManifestURL,
		GameDir:     cfg.GameDir,
	}, pub, log)

	sup := game.New(br, game.Config{
		KeepLauncherOpen: cfg.KeepLauncherOpen,
		HealthInterval:   time.Duration(cfg.HealthIntervalSec) * time.Second,
	}, nil, audioCtl, pub, log)
	sup.Start()
	defer sup.Close()

	cache := serverstatus.New()
	pm := poll.NewManager(log)
	defer pm.StopAll()

	if cfg.ServerAddr != "" {
		_, err := pm.Start(poll.Task{
			Key:      "server-status",
			Interval: time.Duration(cfg.ServerPollSec) * time.Second,
			Run: func(ctx context.Context) error {
				st, err := br.PingServer(ctx, cfg.ServerAddr)
				if err != nil {
					return err
				}
				cache.Set(st)
				return nil
			},
		})
		if err != nil {
			return err
		}
	}
	if cfg.ManifestURL != "" {
		_, err := pm.Start(poll.Task{
			Key:          "modpack-update",
			Interval:     time.Duration(cfg.UpdatePollSec) * time.Second,
			InitialDelay: 5 * time.Second,
			Run: func(ctx context.Context) error {
				if !mp.Snapshot().HasCheckedOnce {
					return mp.CheckAndInstall(ctx)
				}
				// Background repair never interrupts the user.
				return mp.Verify(ctx, modpack.VerifyOptions{Silent: true})
			},
		})
		if err != nil {
			return err
		}
	}

	httpapi.SetLogger(log)
	if len(corsOrigins) > 0 {
		httpapi.SetCORSOptions(true, corsOrigins,
			[]string{"GET", "POST", "DELETE"}, []string{"Content-Type"})
	}
	mux := httpapi.NewMux(httpapi.Deps{
		Game:    sup,
		Modpack: mp,
		Audio:   audioCtl,
		Server:  cache,
		LaunchDefaults: types.LaunchConfig{
			RAMMB:   cfg.RAMMB,
			GameDir: cfg.GameDir,
		},
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("backend", cfg.BackendURL).Msg("launcherd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
