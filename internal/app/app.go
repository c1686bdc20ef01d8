package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"glimpse/internal/retention"
	"glimpse/pkg/api/handlers"
	"glimpse/pkg/config"
	"glimpse/pkg/logger"
	"glimpse/pkg/messaging"
	"glimpse/pkg/notify"
	"glimpse/pkg/outbox"
	"glimpse/pkg/realtime"
	"glimpse/pkg/store"
	"glimpse/pkg/users"
	"glimpse/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	hub  *realtime.Hub
	proc *outbox.Processor
	srv  *http.Server

	stopRetention context.CancelFunc
}

// New initializes resources that do not require a running context (DB,
// validation limits, runtime keys). It does not start the outbox workers
// or the HTTP server; call Run to start those and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	// runtime keys; backend keys double as user-signature signing keys
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	validation.SetLimits(validation.Limits{
		MaxTextLen:     eff.Config.Limits.MaxTextLen,
		MaxAttachments: eff.Config.Limits.MaxAttachments,
	})

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	return &App{eff: eff, version: version, commit: commit, buildDate: buildDate}, nil
}

// Run wires the delivery pipeline, starts the HTTP server and blocks
// until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	cancelRet, err := retention.Start(ctx, a.eff.Config.Retention)
	if err != nil {
		return fmt.Errorf("retention scheduler: %w", err)
	}
	a.stopRetention = cancelRet

	// delivery pipeline: service -> outbox -> hub / notification store
	a.hub = realtime.NewHub()
	notifs := notify.NewStore()
	dir := users.NewDirectory()

	q := outbox.NewQueue(a.eff.Config.Outbox.QueueCapacity)
	a.proc = outbox.NewProcessor(q, a.hub, notifs, a.eff.Config.Outbox.Workers)
	a.proc.Start()

	svc := messaging.New(a.proc, dir, a.eff.Config.Limits.EditWindow.Duration())
	h := handlers.New(svc, notifs, dir)

	errCh := a.startHTTP(h)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// shutdown stops accepting requests, flushes pending outbox work and
// closes the store.
func (a *App) shutdown() {
	if a.srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(sctx); err != nil {
			logger.Warn("http_shutdown_error", "error", err)
		}
	}
	if a.stopRetention != nil {
		a.stopRetention()
	}
	if a.proc != nil {
		a.proc.Stop()
	}
	if err := store.Close(); err != nil {
		logger.Warn("store_close_error", "error", err)
	}
	logger.Info("shutdown_complete")
}
