package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/centerback/centerback-go/internal/config"
	"github.com/centerback/centerback-go/internal/metrics"
	"github.com/centerback/centerback-go/internal/models"
)

// ErrBackpressure signals that the queue is at capacity and the enqueue
// request was rejected in full. Callers should slow down and retry later.
var ErrBackpressure = errors.New("ingestion queue at capacity")

// DeriveIdempotencyKey computes a stable key for one flow. Flows carrying an
// explicit id use it directly; anonymous flows hash their identifying content
// so resubmitting the same flow yields the same key.
func DeriveIdempotencyKey(source string, payload models.FlowPayload) string {
	if payload.FlowID != "" {
		return fmt.Sprintf("%s:%s", source, payload.FlowID)
	}

	// Struct field order fixes the JSON key order, so equal flows always
	// serialize to the same bytes.
	canonical := struct {
		DestinationIP string    `json:"destination_ip"`
		Features      []float64 `json:"features"`
		SourceIP      string    `json:"source_ip"`
	}{
		DestinationIP: payload.DestinationIP,
		Features:      payload.Features,
		SourceIP:      payload.SourceIP,
	}

	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", source, hex.EncodeToString(sum[:]))
}

// IngestResult summarizes one enqueue call.
type IngestResult struct {
	Queued            int      `json:"queued"`
	DuplicatesSkipped int      `json:"duplicates_skipped"`
	QueueDepth        int      `json:"queue_depth"`
	MessageIDs        []string `json:"message_ids,omitempty"`
}

// IngestService accepts flow batches into the durable queue, enforcing
// backpressure and idempotency at the boundary.
type IngestService struct {
	store     QueueStore
	audit     *Audit
	collector *metrics.Collector
	cfg       config.Config
	logger    *slog.Logger
}

// NewIngestService creates the ingestion boundary service.
func NewIngestService(store QueueStore, audit *Audit, collector *metrics.Collector, cfg config.Config, logger *slog.Logger) *IngestService {
	return &IngestService{
		store:     store,
		audit:     audit,
		collector: collector,
		cfg:       cfg,
		logger:    logger,
	}
}

// Enqueue validates and queues a batch of flows from one source.
//
// The whole batch is rejected with ErrBackpressure when queueing it would
// push the live depth past the configured maximum; nothing is persisted in
// that case. Individual flows whose idempotency key already exists among
// non-expired messages from the same source are skipped, not errors.
func (s *IngestService) Enqueue(ctx context.Context, source string, flows []models.FlowPayload) (*IngestResult, error) {
	start := time.Now()
	defer func() {
		s.collector.RecordTiming(metrics.OpEnqueue, time.Since(start))
	}()

	if source == "" {
		return nil, errors.New("source must not be empty")
	}
	for i, flow := range flows {
		if len(flow.Features) != s.cfg.FeatureWidth {
			return nil, fmt.Errorf("flow %d: feature vector has %d values, want %d", i, len(flow.Features), s.cfg.FeatureWidth)
		}
	}

	depth, err := s.store.QueueDepth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue depth: %w", err)
	}
	if depth+len(flows) > s.cfg.MaxQueueDepth {
		metrics.BatchesRejected.Inc()
		s.logger.Warn("enqueue rejected by backpressure",
			"source", source,
			"batch_size", len(flows),
			"queue_depth", depth,
			"max_depth", s.cfg.MaxQueueDepth)
		return nil, fmt.Errorf("%w: depth %d + batch %d exceeds max %d", ErrBackpressure, depth, len(flows), s.cfg.MaxQueueDepth)
	}

	cutoff := time.Now().UTC().Add(-s.cfg.IdempotencyWindow)
	existing, err := s.store.ExistingIdempotencyKeys(ctx, source, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load idempotency keys: %w", err)
	}

	result := &IngestResult{}
	for _, flow := range flows {
		flow.Source = source
		key := DeriveIdempotencyKey(source, flow)
		if _, dup := existing[key]; dup {
			result.DuplicatesSkipped++
			metrics.DuplicatesSkipped.WithLabelValues(source).Inc()
			continue
		}

		msg, err := s.store.CreateMessage(ctx, source, key, flow)
		if err != nil {
			return nil, fmt.Errorf("failed to enqueue flow: %w", err)
		}
		// Duplicates inside the same batch collapse too.
		existing[key] = struct{}{}
		result.Queued++
		result.MessageIDs = append(result.MessageIDs, models.MustRecordIDString(msg.ID))
		metrics.MessagesEnqueued.WithLabelValues(source).Inc()
	}

	result.QueueDepth = depth + result.Queued
	metrics.QueueDepth.Set(float64(result.QueueDepth))

	s.audit.Log(ctx, "ingest.enqueue", "ingestion_message", nil, nil, map[string]any{
		"source":             source,
		"queued":             result.Queued,
		"duplicates_skipped": result.DuplicatesSkipped,
	})

	s.logger.Info("flows enqueued",
		"source", source,
		"queued", result.Queued,
		"duplicates_skipped", result.DuplicatesSkipped,
		"queue_depth", result.QueueDepth)

	return result, nil
}

// Retry resets a message for reprocessing: status queued, attempts zero,
// error cleared. The operator action of last resort for dead letters.
func (s *IngestService) Retry(ctx context.Context, id string, actor *string) (*models.IngestionMessage, error) {
	msg, err := s.store.RetryMessage(ctx, id)
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, "ingest.retry", "ingestion_message", &id, actor, nil)
	s.logger.Info("message reset for retry", "message_id", id)
	return msg, nil
}

// QueueSummary reports message counts per status.
func (s *IngestService) QueueSummary(ctx context.Context) (map[models.QueueStatus]int, error) {
	return s.store.QueueSummary(ctx)
}

// DeadLetters lists the most recently dead-lettered messages.
func (s *IngestService) DeadLetters(ctx context.Context, limit int) ([]models.IngestionMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListDeadLetters(ctx, limit)
}
