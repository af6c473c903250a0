package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice_sales_backend/internal/accounts"
	"voice_sales_backend/internal/callmetrics"
	"voice_sales_backend/internal/calls"
	"voice_sales_backend/internal/email"
	"voice_sales_backend/internal/events"
	apphttp "voice_sales_backend/internal/http"
	"voice_sales_backend/internal/http/router"
	"voice_sales_backend/internal/knowledge"
	"voice_sales_backend/internal/leads"
	leadrepo "voice_sales_backend/internal/leads/repository"
	"voice_sales_backend/internal/notification"
	"voice_sales_backend/internal/policy"
	"voice_sales_backend/internal/scheduler"
	"voice_sales_backend/internal/whatsapp"
	"voice_sales_backend/migrations"
	"voice_sales_backend/platform/config"
	"voice_sales_backend/platform/db"
	"voice_sales_backend/platform/logger"
	"voice_sales_backend/platform/phone"
	"voice_sales_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	tables, err := loadPolicy(cfg, log)
	if err != nil {
		log.Error("failed to load policy tables", "error", err)
		panic("failed to load policy tables: " + err.Error())
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()
	phones := phone.NewNormalizer(cfg.GetDefaultPhoneRegion())
	store := leadrepo.New(pool)

	followUps, closeScheduler := initScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.New(newSender(cfg, log), followUps, store, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	leadsModule := leads.NewModule(store, phones, tables, eventBus, val, cfg, log)
	accountsModule := accounts.NewModule(tables)
	knowledgeModule, err := knowledge.NewModule(cfg, log)
	if err != nil {
		log.Error("failed to initialize knowledge module", "error", err)
		panic("failed to initialize knowledge module: " + err.Error())
	}

	tracker := callmetrics.NewTracker(tables.Pricing, log, summarySinks(ctx, cfg, pool, log)...)
	registry, closeRegistry := initRegistry(ctx, cfg, log)
	if closeRegistry != nil {
		defer closeRegistry()
	}

	callsModule := calls.NewModule(calls.Tools{
		History:   leadsModule.ManagementService(),
		Qualifier: leadsModule.QualificationService(),
		Notes:     leadsModule.NotesService(),
		Callbacks: leadsModule.SchedulingService(),
		Accounts:  accountsModule.Engine(),
		Knowledge: knowledgeModule.Service(),
	}, tracker, registry, phones, eventBus, val, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			accountsModule,
			knowledgeModule,
			callsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return callsModule.RunSweeper(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	eventBus.Wait()
}

func loadPolicy(cfg config.PolicyConfig, log *logger.Logger) (*policy.Tables, error) {
	path := cfg.GetPolicyFile()
	if path == "" {
		return policy.Default(), nil
	}
	tables, err := policy.Load(path)
	if err != nil {
		return nil, err
	}
	log.Info("policy tables loaded", "file", path)
	return tables, nil
}

// newSender routes desk alerts to WhatsApp or email depending on the recipient.
func newSender(cfg *config.Config, log *logger.Logger) notification.Sender {
	var wa, mail notification.Sender
	if client := whatsapp.NewClient(cfg, log); client != nil {
		wa = notification.NewWhatsAppSender(client)
	} else {
		log.Warn("WHATSAPP_URL not configured; WhatsApp notifications disabled")
	}
	if smtp := email.NewSMTPSender(cfg); smtp != nil {
		mail = notification.NewEmailSender(smtp)
	} else {
		log.Warn("SMTP not configured; email notifications disabled")
	}
	return notification.NewRouter(wa, mail)
}

func initScheduler(cfg config.SchedulerConfig, log *logger.Logger) (notification.Scheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; callback reminders and follow-ups disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func initRegistry(ctx context.Context, cfg *config.Config, log *logger.Logger) (*calls.Registry, func()) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	client, err := calls.NewRedisClient(ctx, cfg.GetRedisURL())
	if err != nil {
		log.Error("active call registry unavailable", "error", err)
		return nil, nil
	}

	instance, _ := os.Hostname()
	return calls.NewRegistry(client, calls.RegistryTTL(cfg), instance), func() {
		_ = client.Close()
	}
}

func summarySinks(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log *logger.Logger) []callmetrics.Sink {
	sinks := []callmetrics.Sink{
		callmetrics.NewLogSink(log),
		callmetrics.NewPostgresSink(pool),
	}
	if !cfg.IsMinIOEnabled() {
		return sinks
	}

	archive, err := callmetrics.NewMinIOArchive(cfg)
	if err != nil {
		log.Error("failed to initialize call summary archive", "error", err)
		return sinks
	}
	bucket := cfg.GetMinioBucketCallSummaries()
	if err := withRetry(ctx, log, "ensure call summary bucket", 5, 2*time.Second, func() error {
		return archive.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		return sinks
	}
	log.Info("call summary archive enabled", "bucket", bucket)
	return append(sinks, callmetrics.NewArchiveSink(archive, bucket))
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
