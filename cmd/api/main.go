package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/nightlife-concierge/cmd/mainconfig"
	"github.com/wolfman30/nightlife-concierge/internal/api/router"
	"github.com/wolfman30/nightlife-concierge/internal/app/bootstrap"
	"github.com/wolfman30/nightlife-concierge/internal/channels/whatsapp"
	appconfig "github.com/wolfman30/nightlife-concierge/internal/config"
	"github.com/wolfman30/nightlife-concierge/internal/conversation"
	"github.com/wolfman30/nightlife-concierge/internal/events"
	"github.com/wolfman30/nightlife-concierge/internal/http/handlers"
	"github.com/wolfman30/nightlife-concierge/internal/observability/metrics"
	"github.com/wolfman30/nightlife-concierge/internal/store"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

// jobStore is the full job lifecycle: the simulator records and reads jobs,
// the inline worker completes them.
type jobStore interface {
	conversation.JobRecorder
	conversation.JobUpdater
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting nightlife concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"memory_queue", cfg.UseMemoryQueue,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsHandler, conciergeMetrics := setupMessagingMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	pgPool := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pgPool != nil {
		defer pgPool.Close()
	}
	archive, archiveDB := bootstrap.BuildArchiveStore(cfg, logger)
	if archiveDB != nil {
		defer archiveDB.Close()
	}

	publisher, jobs, memoryQueue, err := setupConversation(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up conversation queue", "error", err)
		os.Exit(1)
	}

	var inlineWorker *conversation.Worker
	if memoryQueue != nil {
		extractor, cleanupExtractor, err := bootstrap.BuildExtractor(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to build extractor", "error", err)
			os.Exit(1)
		}
		defer cleanupExtractor()

		infra := bootstrap.Infrastructure{
			Redis:     redisClient,
			Postgres:  pgPool,
			Archive:   archive,
			Extractor: extractor,
			Metrics:   conciergeMetrics,
		}
		if bootstrap.IsS3RulesPath(cfg.RulesPath) {
			clients, err := mainconfig.LoadAWSClients(ctx, cfg)
			if err != nil {
				logger.Error("failed to load AWS clients for rules", "error", err)
				os.Exit(1)
			}
			infra.RuleObjects = clients.S3
		}
		controller, err := bootstrap.BuildController(ctx, cfg, infra, logger)
		if err != nil {
			logger.Error("failed to build conversation controller", "error", err)
			os.Exit(1)
		}

		messenger, reason := bootstrap.BuildReplyMessenger(cfg, logger)
		workerOpts := []conversation.WorkerOption{conversation.WithWorkerMetrics(conciergeMetrics)}
		if pgPool != nil {
			workerOpts = append(workerOpts, conversation.WithProcessedStore(events.NewProcessedStore(pgPool)))
		}
		inlineWorker = setupInlineWorker(ctx, cfg, logger, controller, memoryQueue, jobs, messenger, reason, workerOpts...)
	}

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(publisher, jobs, logger),
		MetricsHandler:      metricsHandler,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		SimulatorToken:      cfg.SimulatorToken,
		WebhookRateLimit:    cfg.WebhookRateLimit,
		WebhookRateBurst:    cfg.WebhookRateBurst,
	}

	if strings.TrimSpace(cfg.WhatsAppVerifyToken) != "" {
		adapter, err := whatsapp.NewAdapter(bootstrap.WhatsAppConfig(cfg), publisher, logger,
			whatsapp.WithMetrics(conciergeMetrics),
			whatsapp.WithDedupTTL(cfg.WebhookDedupTTL),
		)
		if err != nil {
			logger.Error("failed to create whatsapp adapter", "error", err)
			os.Exit(1)
		}
		routerCfg.WhatsApp = adapter
	} else {
		logger.Warn("whatsapp webhook disabled", "reason", "WHATSAPP_VERIFY_TOKEN not set")
	}

	if redisClient != nil {
		routerCfg.AdminUsers = setupAdminUsers(cfg, redisClient, archive, logger)
	} else {
		logger.Warn("admin user endpoints disabled", "reason", "redis not available")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	waitForInlineWorker(inlineWorker, logger)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMessagingMetrics() (http.Handler, *metrics.ConciergeMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), metrics.NewConciergeMetrics(registry)
}

// setupConversation wires the job queue and job store. USE_MEMORY_QUEUE keeps
// both in process and returns the queue so an inline worker can drain it.
func setupConversation(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*conversation.Publisher, jobStore, *conversation.MemoryQueue, error) {
	if cfg.UseMemoryQueue {
		queue := conversation.NewMemoryQueue(0)
		logger.Info("using in-memory conversation queue")
		return conversation.NewPublisher(queue, logger), conversation.NewMemoryJobStore(), queue, nil
	}

	if strings.TrimSpace(cfg.ConversationQueueURL) == "" {
		return nil, nil, nil, errors.New("CONVERSATION_QUEUE_URL is required unless USE_MEMORY_QUEUE is set")
	}
	clients, err := mainconfig.LoadAWSClients(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	queue := conversation.NewSQSQueue(clients.SQS, cfg.ConversationQueueURL)
	jobs := conversation.NewJobStore(clients.DynamoDB, cfg.ConversationJobsTable, logger)
	return conversation.NewPublisher(queue, logger), jobs, nil, nil
}

// setupInlineWorker starts a worker on the in-process queue. It returns nil
// when there is nothing to drain.
func setupInlineWorker(
	ctx context.Context,
	cfg *appconfig.Config,
	logger *logging.Logger,
	processor conversation.Service,
	memoryQueue *conversation.MemoryQueue,
	jobs conversation.JobUpdater,
	messenger conversation.ReplyMessenger,
	messengerReason string,
	opts ...conversation.WorkerOption,
) *conversation.Worker {
	if memoryQueue == nil || processor == nil {
		return nil
	}
	if messenger == nil {
		logger.Warn("inline worker replies stay in the job store", "reason", messengerReason)
	}

	opts = append([]conversation.WorkerOption{conversation.WithWorkerCount(cfg.WorkerCount)}, opts...)
	worker := conversation.NewWorker(processor, memoryQueue, jobs, messenger, logger, opts...)
	worker.Start(ctx)
	logger.Info("inline conversation worker started", "workers", cfg.WorkerCount)
	return worker
}

func waitForInlineWorker(worker *conversation.Worker, logger *logging.Logger) {
	if worker == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline conversation worker stopped")
	case <-time.After(30 * time.Second):
		logger.Error("inline conversation worker shutdown timed out")
	}
}

func setupAdminUsers(cfg *appconfig.Config, client *redis.Client, archive *store.ArchiveStore, logger *logging.Logger) *handlers.AdminUsersHandler {
	var recommendations handlers.RecommendationReader
	if archive != nil {
		recommendations = archive
	}
	return handlers.NewAdminUsersHandler(
		store.NewRedisProfileStore(client),
		store.NewRedisHistoryStore(client, cfg.HistoryMaxMessages),
		recommendations,
		logger,
	)
}
