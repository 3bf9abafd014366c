// Package server provides the web application: webhook ingestion, the
// management and data APIs, session auth, CSV export, and static assets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/sessions"

	"ariot.dev/platform/internal/pipeline"
	"ariot.dev/platform/internal/store"
	"ariot.dev/platform/pkg/metrics"
)

const (
	sessionName    = "ariot_session"
	sessionUserKey = "user"
	defaultAppName = "ARIOT"
)

// Server represents the web application HTTP server.
type Server struct {
	logger     *slog.Logger
	config     *ServerConfig
	store      *store.Store
	pipeline   *pipeline.Pipeline
	sessions   *sessions.CookieStore
	httpServer *http.Server
	metrics    *metrics.ServerMetrics

	// appMu guards the settings snapshot. Handlers read it on every
	// request; Reload replaces it after the setup wizard completes.
	appMu sync.RWMutex
	app   appSettings

	// surveyMu guards the drive-test polling sessions, keyed by user.
	surveyMu sync.Mutex
	surveys  map[string]surveySession
}

// appSettings is the in-memory snapshot of the app_settings table.
type appSettings struct {
	Name          string
	AdminUser     string
	AdminPassHash string
	Configured    bool
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger   *slog.Logger
	Store    *store.Store
	Pipeline *pipeline.Pipeline

	// HTTP server configuration
	HTTPPort int

	// SessionSecret signs the auth cookie.
	SessionSecret string

	// StaticDir is the directory of frontend assets; empty disables
	// static serving.
	StaticDir string

	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.ServerMetrics
}

// NewServer creates a new web application Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret cannot be empty")
	}

	cookieStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Server{
		logger:   cfg.Logger,
		config:   cfg,
		store:    cfg.Store,
		pipeline: cfg.Pipeline,
		sessions: cookieStore,
		metrics:  cfg.Metrics,
		surveys:  make(map[string]surveySession),
	}, nil
}

// Reload replaces the settings snapshot from the app_settings table. Called
// at startup and after the setup wizard writes its rows.
func (s *Server) Reload(ctx context.Context) error {
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load app settings: %w", err)
	}

	next := appSettings{
		Name:          settings[store.SettingAppName],
		AdminUser:     settings[store.SettingAdminUser],
		AdminPassHash: settings[store.SettingAdminPassHash],
		Configured:    settings[store.SettingConfigured] == "true",
	}
	if next.Name == "" {
		next.Name = defaultAppName
	}

	s.appMu.Lock()
	s.app = next
	s.appMu.Unlock()

	s.logger.Info("app settings loaded", "configured", next.Configured)
	return nil
}

func (s *Server) appSnapshot() appSettings {
	s.appMu.RLock()
	defer s.appMu.RUnlock()
	return s.app
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// The database may still be coming up behind a container
	// orchestrator; an unconfigured snapshot is a valid start state.
	if err := s.Reload(ctx); err != nil {
		s.logger.Warn("could not load app settings, starting unconfigured", "error", err)
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	// Start HTTP server in goroutine
	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("server started successfully")

	// Wait for shutdown signal or HTTP error
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
			return err
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down server")

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.logger.Info("HTTP server stopped")
	}

	s.logger.Info("server shutdown completed successfully")
	return nil
}
