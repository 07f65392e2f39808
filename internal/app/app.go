package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkov/relaychat-server/internal/config"
	"github.com/avolkov/relaychat-server/internal/core"
	"github.com/avolkov/relaychat-server/internal/directory"
	"github.com/avolkov/relaychat-server/internal/store"
	"github.com/avolkov/relaychat-server/internal/store/jsonfile"
	"github.com/avolkov/relaychat-server/internal/store/sqlite"
	transporthttp "github.com/avolkov/relaychat-server/internal/transport/http"
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
	st, err := openStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("backend", cfg.Storage.Backend).Msg("storage initialized")

	var auth directory.Authenticator
	if cfg.Directory.UseProxy {
		auth = directory.NewProxyClient(cfg.Directory.ProxyURL)
		logger.Info().Str("proxy_url", cfg.Directory.ProxyURL).Msg("using directory proxy")
	} else {
		auth = directory.NewLDAPClient(cfg.Directory)
		logger.Info().Str("host", cfg.Directory.Host).Int("port", cfg.Directory.Port).
			Msg("using direct directory connection")
	}

	hub := core.NewHub(st, auth, core.Options{
		Admins:      cfg.Admins,
		MOTD:        cfg.MOTD,
		Channel:     cfg.Channel,
		HistorySize: cfg.HistorySize,
		AuthTimeout: cfg.Directory.AuthTimeout,
	}, logger)

	server := transporthttp.NewServer(hub, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case "", "json":
		return jsonfile.New(cfg.DataDir)
	case "sqlite":
		return sqlite.New(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
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

// cleanup closes storage and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
