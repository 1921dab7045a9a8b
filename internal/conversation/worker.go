package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/wolfman30/nightlife-concierge/internal/observability/metrics"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	sendTimeout          = 10 * time.Second
	maxReceiveBackoff    = 5 * time.Second
)

type processedMessageStore interface {
	MarkProcessed(ctx context.Context, channel, messageID string) (bool, error)
}

// Worker consumes conversation jobs from the queue and invokes the processor.
type Worker struct {
	processor Service
	queue     queueClient
	jobs      JobUpdater
	messenger ReplyMessenger
	processed processedMessageStore
	metrics   *metrics.ConciergeMetrics
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	processed        processedMessageStore
	metrics          *metrics.ConciergeMetrics
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithProcessedStore drops jobs whose provider message id was already claimed.
func WithProcessedStore(store processedMessageStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.processed = store
	}
}

// WithWorkerMetrics counts outbound sends and fallback turns.
func WithWorkerMetrics(m *metrics.ConciergeMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// NewWorker constructs a queue consumer around the provided processor. A nil
// messenger leaves replies in the job store only.
func NewWorker(processor Service, queue queueClient, jobs JobUpdater, messenger ReplyMessenger, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if jobs == nil {
		panic("conversation: job store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		processor: processor,
		queue:     queue,
		jobs:      jobs,
		messenger: messenger,
		processed: cfg.processed,
		metrics:   cfg.metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxReceiveBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode conversation job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}
	defer w.deleteMessage(context.Background(), msg.ReceiptHandle)

	if payload.Kind != jobTypeMessage {
		w.logger.Error("unknown conversation job type", "job_id", payload.ID, "kind", payload.Kind)
		w.markFailed(ctx, payload, fmt.Sprintf("unknown job type %q", payload.Kind))
		return
	}

	req := payload.Message
	if w.isDuplicate(ctx, req) {
		w.logger.Info("skipping duplicate message", "job_id", payload.ID, "message_id", req.MessageID, "channel", req.Channel)
		w.markFailed(ctx, payload, "skipped: duplicate delivery")
		return
	}

	w.logger.Info("worker processing job", "job_id", payload.ID, "user_id", req.UserID, "channel", req.Channel)
	resp, err := w.process(ctx, req)
	if err != nil {
		w.logger.Error("conversation job failed", "error", err, "job_id", payload.ID, "user_id", req.UserID)
		w.markFailed(ctx, payload, err.Error())
		w.metrics.ObserveTurn(string(BranchFallback))
		w.sendReply(ctx, req, apologyMessage)
		return
	}

	if payload.TrackStatus {
		if storeErr := w.jobs.MarkCompleted(ctx, payload.ID, resp); storeErr != nil {
			w.logger.Error("failed to update job status", "error", storeErr, "job_id", payload.ID)
		}
	}
	if resp != nil {
		w.sendReply(ctx, req, resp.Message)
	}
	w.logger.Debug("conversation job processed", "job_id", payload.ID)
}

// process runs one turn, converting a panic into an error so the user still
// gets the fallback reply.
func (w *Worker) process(ctx context.Context, req MessageRequest) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("conversation turn panicked", "panic", r, "user_id", req.UserID, "stack", string(debug.Stack()))
			resp = nil
			err = fmt.Errorf("conversation: panic during turn: %v", r)
		}
	}()
	return w.processor.ProcessMessage(ctx, req)
}

func (w *Worker) isDuplicate(ctx context.Context, req MessageRequest) bool {
	if w.processed == nil || req.MessageID == "" {
		return false
	}
	claimed, err := w.processed.MarkProcessed(ctx, string(req.Channel), req.MessageID)
	if err != nil {
		w.logger.Warn("processed message lookup failed", "error", err, "message_id", req.MessageID)
		return false
	}
	return !claimed
}

func (w *Worker) markFailed(ctx context.Context, payload queuePayload, reason string) {
	if !payload.TrackStatus {
		return
	}
	if err := w.jobs.MarkFailed(ctx, payload.ID, reason); err != nil {
		w.logger.Error("failed to update job status", "error", err, "job_id", payload.ID)
	}
}

// sendReply is fire-and-forget: failures are logged and counted, never retried.
// API-channel turns are read back through the job store instead.
func (w *Worker) sendReply(ctx context.Context, req MessageRequest, body string) {
	if w.messenger == nil || body == "" || req.Channel == ChannelAPI {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err := w.messenger.SendReply(sendCtx, OutboundReply{
		UserID:   req.UserID,
		Channel:  req.Channel,
		Body:     body,
		Metadata: req.Metadata,
	})
	if err != nil {
		w.metrics.ObserveOutbound(string(req.Channel), "failed")
		w.logger.Error("failed to send reply", "error", err, "user_id", req.UserID, "channel", req.Channel)
		return
	}
	w.metrics.ObserveOutbound(string(req.Channel), "sent")
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete conversation job", "error", err)
	}
}
