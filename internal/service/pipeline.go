package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/centerback/centerback-go/internal/classifier"
	"github.com/centerback/centerback-go/internal/config"
	"github.com/centerback/centerback-go/internal/metrics"
	"github.com/centerback/centerback-go/internal/models"
)

// WorkerState represents the lifecycle state of the pipeline worker.
type WorkerState string

const (
	WorkerStopped  WorkerState = "stopped"
	WorkerRunning  WorkerState = "running"
	WorkerStopping WorkerState = "stopping"
)

// staleProcessingAfter bounds how long a message may sit in processing
// before it is treated as orphaned by a dead worker and requeued.
const staleProcessingAfter = 5 * time.Minute

// WorkerStatus is a thread-safe snapshot of worker state for the health
// endpoint.
type WorkerStatus struct {
	State        WorkerState `json:"state"`
	Processed    int64       `json:"processed"`
	Failed       int64       `json:"failed"`
	DeadLettered int64       `json:"dead_lettered"`
	LastPollAt   *time.Time  `json:"last_poll_at,omitempty"`
	LastError    string      `json:"last_error,omitempty"`
}

// Worker is the long-lived pipeline loop: claim a batch, classify each
// message, hand results to the detection engine, and settle each message's
// terminal state. One worker instance runs per process; the claim protocol
// in the store keeps multiple instances safe.
type Worker struct {
	store      QueueStore
	classifier classifier.Classifier
	detection  *DetectionService
	collector  *metrics.Collector
	cfg        config.Config
	logger     *slog.Logger

	mu           sync.Mutex
	state        WorkerState
	processed    int64
	failed       int64
	deadLettered int64
	lastPollAt   *time.Time
	lastError    string

	stop chan struct{}
	done chan struct{}
}

// NewWorker creates a stopped worker.
func NewWorker(store QueueStore, cls classifier.Classifier, detection *DetectionService, collector *metrics.Collector, cfg config.Config, logger *slog.Logger) *Worker {
	return &Worker{
		store:      store,
		classifier: cls,
		detection:  detection,
		collector:  collector,
		cfg:        cfg,
		logger:     logger,
		state:      WorkerStopped,
	}
}

// Start launches the poll loop. Starting a worker that is not stopped is an
// error.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != WorkerStopped {
		return fmt.Errorf("worker is %s, not stopped", w.state)
	}

	w.state = WorkerRunning
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	go w.run(w.stop, w.done)

	w.logger.Info("pipeline worker started",
		"poll_interval", w.cfg.PollInterval,
		"batch_size", w.cfg.BatchSize)
	return nil
}

// Stop requests a cooperative shutdown and waits for the in-flight batch to
// finish, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.state != WorkerRunning {
		w.mu.Unlock()
		return nil
	}
	w.state = WorkerStopping
	stop, done := w.stop, w.done
	w.mu.Unlock()

	close(stop)

	select {
	case <-done:
	case <-ctx.Done():
		// The loop still holds the in-flight batch; once it exits, return
		// the worker to stopped so it can be started again.
		go func() {
			<-done
			w.mu.Lock()
			w.state = WorkerStopped
			w.mu.Unlock()
			w.logger.Info("pipeline worker stopped after late drain")
		}()
		return fmt.Errorf("worker did not drain in time: %w", ctx.Err())
	}

	w.mu.Lock()
	w.state = WorkerStopped
	w.mu.Unlock()

	w.logger.Info("pipeline worker stopped")
	return nil
}

// Status returns a snapshot of the worker state.
func (w *Worker) Status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	return WorkerStatus{
		State:        w.state,
		Processed:    w.processed,
		Failed:       w.failed,
		DeadLettered: w.deadLettered,
		LastPollAt:   w.lastPollAt,
		LastError:    w.lastError,
	}
}

// run is the poll loop. An empty claim sleeps one fixed poll interval; a
// stop request lets the claimed batch finish before exiting.
func (w *Worker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx := context.Background()

	for {
		select {
		case <-stop:
			return
		default:
		}

		claimed := w.pollOnce(ctx)

		if claimed == 0 {
			select {
			case <-stop:
				return
			case <-time.After(w.cfg.PollInterval):
			}
		}
	}
}

// pollOnce claims and processes one batch, returning the claimed count.
func (w *Worker) pollOnce(ctx context.Context) int {
	now := time.Now().UTC()
	w.mu.Lock()
	w.lastPollAt = &now
	w.mu.Unlock()

	// Messages stuck in processing belong to a worker that died mid-batch;
	// no event exists for them yet, so requeueing cannot duplicate one.
	if n, err := w.store.RequeueStaleProcessing(ctx, staleProcessingAfter); err != nil {
		w.logger.Error("failed to requeue stale messages", "error", err)
	} else if n > 0 {
		w.logger.Warn("requeued stale processing messages", "count", n)
	}

	claimStart := time.Now()
	batch, err := w.store.ClaimBatch(ctx, w.cfg.BatchSize, w.cfg.MaxAttempts)
	w.collector.RecordTiming(metrics.OpClaim, time.Since(claimStart))
	if err != nil {
		w.recordError(err)
		w.logger.Error("failed to claim batch", "error", err)
		return 0
	}

	for i := range batch {
		// One bad message never aborts the rest of the batch.
		w.processMessage(ctx, &batch[i])
	}

	return len(batch)
}

func (w *Worker) processMessage(ctx context.Context, msg *models.IngestionMessage) {
	id := models.MustRecordIDString(msg.ID)

	if len(msg.Payload.Features) != w.cfg.FeatureWidth {
		err := fmt.Errorf("feature vector has %d values, want %d", len(msg.Payload.Features), w.cfg.FeatureWidth)
		w.settleFailure(ctx, id, err)
		return
	}

	classifyStart := time.Now()
	prediction, err := w.classifier.Classify(msg.Payload.Features)
	w.collector.RecordTiming(metrics.OpClassify, time.Since(classifyStart))
	if err != nil {
		if errors.Is(err, classifier.ErrModelUnavailable) {
			w.logger.Warn("classifier unavailable, message will retry", "message_id", id)
		}
		w.settleFailure(ctx, id, fmt.Errorf("classification failed: %w", err))
		return
	}

	var flowID *string
	if msg.Payload.FlowID != "" {
		flowID = &msg.Payload.FlowID
	}

	// MessageID makes the store settle the message to done in the same
	// transaction as the event insert; there is no separate complete step
	// that could leave the event without a settled message.
	_, _, err = w.detection.RecordClassification(ctx, ClassificationInput{
		Source:        msg.Source,
		SourceIP:      msg.Payload.SourceIP,
		DestinationIP: msg.Payload.DestinationIP,
		MessageID:     &id,
		FlowID:        flowID,
		Prediction:    prediction,
		Features:      msg.Payload.Features,
		Metadata:      msg.Payload.Metadata,
	})
	if err != nil {
		w.settleFailure(ctx, id, err)
		return
	}

	w.mu.Lock()
	w.processed++
	w.mu.Unlock()
	metrics.MessagesProcessed.WithLabelValues(string(models.QueueStatusDone)).Inc()
}

// settleFailure records the error on the message; the store routes it to
// failed or dead_letter depending on the attempt count.
func (w *Worker) settleFailure(ctx context.Context, id string, procErr error) {
	w.recordError(procErr)

	msg, err := w.store.FailMessage(ctx, id, procErr.Error(), w.cfg.MaxAttempts)
	if err != nil {
		w.logger.Error("failed to record message failure", "message_id", id, "error", err)
		return
	}

	w.mu.Lock()
	if msg.Status == models.QueueStatusDeadLetter {
		w.deadLettered++
	} else {
		w.failed++
	}
	w.mu.Unlock()
	metrics.MessagesProcessed.WithLabelValues(string(msg.Status)).Inc()

	if msg.Status == models.QueueStatusDeadLetter {
		w.logger.Error("message dead-lettered",
			"message_id", id,
			"attempts", msg.Attempts,
			"error", procErr)
	} else {
		w.logger.Warn("message failed, will retry",
			"message_id", id,
			"attempts", msg.Attempts,
			"error", procErr)
	}
}

func (w *Worker) recordError(err error) {
	w.mu.Lock()
	w.lastError = err.Error()
	w.mu.Unlock()
}
