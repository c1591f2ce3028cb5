package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chemviz/dashboard/internal/api"
	"github.com/chemviz/dashboard/internal/config"
	"github.com/chemviz/dashboard/internal/logging"
	"github.com/chemviz/dashboard/internal/session"
	"github.com/chemviz/dashboard/internal/store"
	"github.com/chemviz/dashboard/internal/transport"
	"github.com/chemviz/dashboard/internal/view"
	"github.com/chemviz/dashboard/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	defaultConfig := filepath.Join(filepath.Dir(exePath), "equipviz.yaml")

	configPath := pflag.StringP("config", "c", defaultConfig, "path to the YAML configuration file")
	backendURL := pflag.StringP("backend", "b", "", "equipment analysis backend URL (overrides config)")
	port := pflag.IntP("port", "p", 0, "listen port (overrides config)")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *backendURL != "" {
		cfg.Backend.URL = *backendURL
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Setup(cfg.Advanced.LogLevel, cfg.Advanced.LogFormat); err != nil {
		fmt.Printf("Failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid time zone")
	}

	if !web.HasEmbeddedFiles() {
		log.Fatal().Msg("dashboard assets missing from binary")
	}
	renderer, err := view.NewRenderer(web.Templates())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse templates")
	}

	client := transport.New(cfg.GetBackendURL(), transport.WithTimeout(cfg.BackendTimeout()))

	// Each browser session owns its own store over the shared backend client.
	sessionMgr := session.NewManager(func(ctx context.Context) *store.Store {
		return store.New(client,
			store.WithContext(ctx),
			store.WithSuccessDuration(cfg.SuccessBannerDuration()),
		)
	}, session.WithMaxSessions(cfg.Session.MaxSessions))
	defer sessionMgr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sessionMgr.CleanupOldSessions(cfg.SessionTimeout())
			case <-ctx.Done():
				return
			}
		}
	}()

	h := api.NewHandler(sessionMgr, renderer, api.Options{
		CookieName: cfg.Session.CookieName,
		ViewOptions: view.Options{
			Location:   loc,
			TimeLayout: cfg.UI.TimeLayout,
		},
		ChartSize: view.ChartSize{
			Width:  cfg.UI.ChartWidth,
			Height: cfg.UI.ChartHeight,
		},
		BackendURL: cfg.GetBackendURL(),
		Version:    Version,
	})
	wsHandler := api.NewWebSocketHandler(h, cfg.Advanced.WebSocketMaxMessageSize)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		RequestTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		BodyLimit:      cfg.Server.BodyLimit,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
	})
	api.RegisterRoutes(e, h, wsHandler)
	if err := web.RegisterStaticRoutes(e); err != nil {
		log.Fatal().Err(err).Msg("failed to register static routes")
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Chemical Equipment Visualizer                   ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", *configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Backend:   %-46s║\n", cfg.GetBackendURL())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
