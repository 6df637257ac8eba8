package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	ghttp "github.com/gatherhq/gather/internal/adapter/http"
	gnats "github.com/gatherhq/gather/internal/adapter/nats"
	gotel "github.com/gatherhq/gather/internal/adapter/otel"
	"github.com/gatherhq/gather/internal/adapter/postgres"
	"github.com/gatherhq/gather/internal/adapter/ristretto"
	"github.com/gatherhq/gather/internal/adapter/ws"
	"github.com/gatherhq/gather/internal/config"
	"github.com/gatherhq/gather/internal/logger"
	"github.com/gatherhq/gather/internal/port/notifier"
	"github.com/gatherhq/gather/internal/service"
)

// completionSweepInterval is how often the scheduler loop completes
// approved events whose end time has passed.
const completionSweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"nats", cfg.NATS.URL != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	otelShutdown, err := gotel.Setup(ctx, cfg.OTel.Endpoint, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := gotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	store := postgres.NewStore(pool)
	feed := postgres.NewChangefeed(cfg.Postgres.DSN)

	// Parent-lookup cache for the change bridge
	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	// --- Gateway ---
	hub := ws.NewHub(cfg.Realtime.PollInterval, []string{cfg.Realtime.AllowedOrigin})

	// NATS is optional: without it the service runs single-instance and
	// user notifications are disabled.
	var userNotifier notifier.Notifier
	if cfg.NATS.URL != "" {
		bp, err := gnats.ConnectBackplane(cfg.NATS.URL)
		if err != nil {
			slog.Warn("backplane connect failed, continuing single-instance", "error", err)
		} else {
			defer func() { _ = bp.Close() }()
			hub.AttachBackplane(ctx, bp)
		}

		nt, err := gnats.ConnectNotifier(ctx, cfg.NATS.URL)
		if err != nil {
			slog.Warn("notifier connect failed, user notifications disabled", "error", err)
		} else {
			defer func() { _ = nt.Close() }()
			userNotifier = nt
		}
	}

	// --- Services ---
	emitter := service.NewEmitter(hub, store)
	eventSvc := service.NewEventService(store, emitter, metrics)
	registrationSvc := service.NewRegistrationService(store, emitter, userNotifier, metrics)
	postSvc := service.NewPostService(store, emitter)

	bridge := service.NewBridge(feed, store, cache, hub, metrics)
	if err := bridge.Start(ctx); err != nil {
		slog.Warn("change bridge inactive, clients fall back to polling", "error", err)
	}
	defer bridge.Stop()
	hub.SetBridgeActive(bridge.Active())

	// --- HTTP ---
	handlers := ghttp.NewHandlers(eventSvc, registrationSvc, postSvc, hub)

	r := chi.NewRouter()
	r.Use(ghttp.CORS(cfg.Server.CORSOrigin))
	r.Use(ghttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(gotel.HTTPMiddleware(cfg.Logging.Service))

	r.Get(cfg.Realtime.PathPrefix, hub.HandleWS)
	ghttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", addr, "ws", cfg.Realtime.PathPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Change feed listener; reconnects internally until shutdown.
	g.Go(func() error {
		if err := feed.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("changefeed: %w", err)
		}
		return nil
	})

	// Scheduler loop: complete approved events past their end time.
	g.Go(func() error {
		ticker := time.NewTicker(completionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				if n := eventSvc.CompleteDue(gctx, now); n > 0 {
					slog.Info("completion sweep", "completed", n)
				}
			}
		}
	})

	// Shut the HTTP server down once the context is cancelled (signal or
	// a failed goroutine).
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("shut down")
	return err
}
