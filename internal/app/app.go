package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/echoroom/echoroom-server/internal/avatar"
	"github.com/echoroom/echoroom-server/internal/avatar/livekit"
	"github.com/echoroom/echoroom-server/internal/config"
	"github.com/echoroom/echoroom-server/internal/core"
	applog "github.com/echoroom/echoroom-server/internal/log"
	"github.com/echoroom/echoroom-server/internal/store"
	"github.com/echoroom/echoroom-server/internal/store/sqlite"
	transporthttp "github.com/echoroom/echoroom-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	hub := core.NewHub(st, applog.Component(logger, "hub"))
	if cfg.HistoryLimit > 0 {
		hub.HistoryLimit = cfg.HistoryLimit
	}

	var avatarMgr *avatar.Manager
	if cfg.Avatar.Enabled() {
		engine := livekit.New(cfg.Avatar.APIKey, cfg.Avatar.APISecret, cfg.Avatar.URL)
		avatarMgr = avatar.NewManager(engine, applog.Component(logger, "avatar"))
		hub.Avatar = avatarMgr
		logger.Info().Str("url", cfg.Avatar.URL).Msg("avatar integration enabled")
	}

	server := transporthttp.NewServer(hub, st, avatarMgr, cfg, applog.Component(logger, "http"))

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
