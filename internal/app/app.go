// Package app assembles the bizdesk process from its configuration.
package app

import (
	"bizdesk/internal/adapters/httpapi"
	"bizdesk/internal/auth"
	"bizdesk/internal/blob"
	"bizdesk/internal/config"
	"bizdesk/internal/core"
	"bizdesk/internal/export"
	"bizdesk/internal/notify"
	"bizdesk/internal/observability"
	"bizdesk/internal/settings"
	"bizdesk/pkg/domain"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"
)

// App holds every long-lived component.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Store     domain.PersistentStore
	Service   *core.Service
	Auth      *auth.Authenticator
	Settings  *settings.Provider
	Mailer    notify.Mailer
	Scheduler *notify.Scheduler
	Blobs     blob.Store
	Exports   *export.Worker
	Handler   http.Handler
}

// New builds the application. Logs go to logOut.
func New(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	logger := observability.NewLogger(logOut, cfg.Log.Level, cfg.Log.Format)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := observability.NewPrometheusRecorder(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	storageOpts := cfg.StorageOptions()
	storageOpts.Logger = logger
	store, err := core.OpenPersistentStore(ctx, storageOpts, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a := &App{Config: cfg, Logger: logger, Registry: reg, Store: store}

	hasher := auth.NewBcryptHasher(bcrypt.DefaultCost)
	if cfg.Seed {
		seeded, err := core.Seed(ctx, store, hasher)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		if seeded {
			logger.Info("seeded starter data")
		}
	}

	a.Service = core.NewService(store,
		core.WithMetricsRecorder(recorder),
		core.WithUseCaseObserver(observability.NewLogUseCaseObserver(logger)),
		core.WithLogger(logger),
	)
	a.Auth = auth.NewAuthenticator(a.Service, hasher, auth.NewSessionStore(cfg.HTTP.SessionTTL))
	a.Settings = settings.NewProvider(cfg.Settings, logger)
	a.Mailer = notify.NewMailer(cfg.Mail, logger)
	a.Scheduler = notify.NewScheduler(a.Service, a.Settings, a.Mailer,
		notify.SchedulerConfig{Interval: cfg.Reminders.Interval, LeadDays: cfg.Reminders.LeadDays},
		notify.WithSchedulerLogger(logger),
		notify.WithSchedulerMetrics(recorder),
	)

	a.Blobs, err = blob.Open(ctx, cfg.BlobOptions())
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	a.Exports = export.NewWorker(store, a.Blobs, export.WithLogger(logger), export.WithRetention(cfg.Blob.Retain))

	a.Handler = httpapi.NewRouter(httpapi.Dependencies{
		Service:      a.Service,
		Auth:         a.Auth,
		Settings:     a.Settings,
		Mailer:       a.Mailer,
		Exports:      a.Exports,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:       logger,
		CookieSecure: cfg.HTTP.CookieSecure,
	})
	return a, nil
}

// Close releases the storage connection, if any.
func (a *App) Close() error {
	if c, ok := a.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Serve listens on the configured address until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Config.HTTP.Addr, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener serves on ln, runs the export worker and, when enabled, the
// reminder scheduler. Cancelling ctx shuts everything down gracefully.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	a.Exports.Start()
	schedCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	if a.Config.Reminders.Enabled {
		a.Scheduler.Start(schedCtx)
		a.Logger.Info("project reminders enabled", "interval", a.Config.Reminders.Interval, "lead_days", a.Config.Reminders.LeadDays)
	}

	srv := &http.Server{
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", "addr", ln.Addr().String(), "mailer_simulated", a.Mailer.Simulated())
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		serveErr = err
	case <-ctx.Done():
	}

	timeout := a.Config.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("shutdown http: %w", err))
	}
	stopScheduler()
	a.Scheduler.Wait()
	if err := a.Exports.Stop(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("stop exports: %w", err))
	}
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	a.Logger.Info("http server stopped")
	return serveErr
}

// Archives lists the stored export archives, oldest first.
func (a *App) Archives(ctx context.Context) ([]blob.Info, error) {
	return a.Exports.Archives(ctx)
}

// Export writes one snapshot archive synchronously.
func (a *App) Export(ctx context.Context, requestedBy string) (export.Record, error) {
	return a.Exports.Run(ctx, requestedBy)
}
