package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/leadboard/leadboard/internal/app"
	jobmetrics "github.com/leadboard/leadboard/internal/jobs"
	"github.com/leadboard/leadboard/internal/leads"
	"github.com/leadboard/leadboard/internal/observability"
	"github.com/leadboard/leadboard/internal/platform/cache"
	"github.com/leadboard/leadboard/internal/shared"
	"github.com/leadboard/leadboard/internal/view"
	"github.com/leadboard/leadboard/jobs"
	"github.com/leadboard/leadboard/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "leadboard_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	directory, err := leads.LoadDirectory(cfg.ConsultantsFile)
	if err != nil {
		logger.Error("load consultants", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	apiClient := leads.NewClient(cfg.LeadsAPIURL,
		leads.WithTimeout(cfg.LeadsAPITimeout),
		leads.WithLogger(logger.With(slog.String("component", "leads-api"))),
	)
	store := leads.NewStore(leads.StoreConfig{
		API:       apiClient,
		Directory: directory,
		Notifier:  shared.FlashNotifier{Logger: logger, Fallback: shared.LogNotifier{Logger: logger}},
		Observer:  metrics,
		Logger:    logger,
	})

	pdfClient := report.NewClient(cfg.GotenbergURL, report.WithLandscape())
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg unavailable, pdf export will fail", slog.Any("error", err))
	}
	leadsHandler := leads.NewHandler(logger, store, templates, csrfManager, pdfClient, cfg.LeadsPageSize)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	syncQueue := jobs.SyncQueue(syncInstance(cfg, logger))
	jobHandler := jobs.NewHandler(inspector, store, syncQueue, logger)

	if cfg.LeadsSyncCron != "" {
		if err := startSync(ctx, cfg, logger, store, metrics, redisOpts, syncQueue, stop); err != nil {
			logger.Error("init lead sync", slog.Any("error", err))
			os.Exit(1)
		}
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		LeadsHandler:   leadsHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("leads_api", cfg.LeadsAPIURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// startSync runs the asynq worker that refreshes the store on LEADS_SYNC_CRON
// and queues one refresh right away.
func startSync(
	ctx context.Context,
	cfg *app.Config,
	logger *slog.Logger,
	store *leads.Store,
	metrics *observability.Metrics,
	redisOpts asynq.RedisClientOpt,
	queue string,
	stop context.CancelFunc,
) error {
	worker, err := jobs.NewSyncWorker(jobs.SyncConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Job:       jobs.NewLeadsRefreshJob(store, logger, jobmetrics.NewMetrics(metrics.Registerer())),
		Queue:     queue,
		CronSpec:  cfg.LeadsSyncCron,
	})
	if err != nil {
		return err
	}

	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("lead sync worker", slog.Any("error", err))
			stop()
		}
	}()

	client := jobs.NewClient(redisOpts, queue)
	defer func() {
		_ = client.Close()
	}()
	if _, err := client.EnqueueLeadsRefresh(ctx, "startup"); err != nil {
		logger.Warn("enqueue startup refresh", slog.Any("error", err))
	}
	logger.Info("lead sync scheduled", slog.String("cron", cfg.LeadsSyncCron), slog.String("queue", queue))
	return nil
}

// syncInstance picks the name of this process's sync queue. Each replica keeps
// its own Store, so replicas must not share one.
func syncInstance(cfg *app.Config, logger *slog.Logger) string {
	if cfg.LeadsSyncInstance != "" {
		return cfg.LeadsSyncInstance
	}
	host, err := os.Hostname()
	if err != nil {
		logger.Warn("hostname unavailable, using shared sync queue", slog.Any("error", err))
		return ""
	}
	return host
}
