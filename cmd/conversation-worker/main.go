package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/nightlife-concierge/cmd/mainconfig"
	"github.com/wolfman30/nightlife-concierge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/nightlife-concierge/internal/config"
	"github.com/wolfman30/nightlife-concierge/internal/conversation"
	"github.com/wolfman30/nightlife-concierge/internal/events"
	"github.com/wolfman30/nightlife-concierge/internal/observability/metrics"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if strings.TrimSpace(cfg.ConversationQueueURL) == "" {
		logger.Error("CONVERSATION_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clients, err := mainconfig.LoadAWSClients(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for the conversation worker", "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	defer redisClient.Close()

	pgPool := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pgPool == nil {
		logger.Error("postgres is required for the conversation worker")
		os.Exit(1)
	}
	defer pgPool.Close()

	archive, archiveDB := bootstrap.BuildArchiveStore(cfg, logger)
	if archiveDB != nil {
		defer archiveDB.Close()
	}

	extractor, cleanupExtractor, err := bootstrap.BuildExtractor(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build extractor", "error", err)
		os.Exit(1)
	}
	defer cleanupExtractor()

	conciergeMetrics := metrics.NewConciergeMetrics(prometheus.DefaultRegisterer)
	infra := bootstrap.Infrastructure{
		Redis:     redisClient,
		Postgres:  pgPool,
		Archive:   archive,
		Extractor: extractor,
		Metrics:   conciergeMetrics,
	}
	if bootstrap.IsS3RulesPath(cfg.RulesPath) {
		infra.RuleObjects = clients.S3
	}
	controller, err := bootstrap.BuildController(ctx, cfg, infra, logger)
	if err != nil {
		logger.Error("failed to build conversation controller", "error", err)
		os.Exit(1)
	}

	messenger, reason := bootstrap.BuildReplyMessenger(cfg, logger)
	if messenger == nil {
		logger.Warn("replies stay in the job store", "reason", reason)
	}

	processed := events.NewProcessedStore(pgPool)
	go processed.RunPruner(ctx, time.Hour, cfg.ProcessedRetention, logger)

	queue := conversation.NewSQSQueue(clients.SQS, cfg.ConversationQueueURL)
	jobStore := conversation.NewJobStore(clients.DynamoDB, cfg.ConversationJobsTable, logger)

	worker := conversation.NewWorker(
		controller,
		queue,
		jobStore,
		messenger,
		logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithProcessedStore(processed),
		conversation.WithWorkerMetrics(conciergeMetrics),
	)

	worker.Start(ctx)
	logger.Info("conversation worker started", "workers", cfg.WorkerCount, "queue", cfg.ConversationQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down conversation worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("conversation worker stopped")
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}
}
