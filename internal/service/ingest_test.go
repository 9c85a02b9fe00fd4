package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centerback/centerback-go/internal/config"
	"github.com/centerback/centerback-go/internal/metrics"
	"github.com/centerback/centerback-go/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testConfig() config.Config {
	return config.Config{
		FeatureWidth:      78,
		PollInterval:      10 * time.Millisecond,
		BatchSize:         100,
		MaxAttempts:       5,
		MaxQueueDepth:     5000,
		IdempotencyWindow: 30 * time.Minute,
		DedupWindow:       10 * time.Minute,
		DriftWindowEvents: 500,
		DriftAlertThreshold: 0.2,
	}
}

func featureVector(value float64) []float64 {
	features := make([]float64, 78)
	for i := range features {
		features[i] = value
	}
	return features
}

func newTestIngest(store *fakeStore, cfg config.Config) *IngestService {
	logger := testLogger()
	return NewIngestService(store, NewAudit(store, logger), metrics.NewCollector(), cfg, logger)
}

func TestDeriveIdempotencyKeyExplicitID(t *testing.T) {
	payload := models.FlowPayload{FlowID: "f-1", SourceIP: "10.0.0.1", DestinationIP: "10.0.0.2", Features: featureVector(0.1)}
	assert.Equal(t, "s1:f-1", DeriveIdempotencyKey("s1", payload))
}

func TestDeriveIdempotencyKeyContentHash(t *testing.T) {
	a := models.FlowPayload{SourceIP: "10.0.0.1", DestinationIP: "10.0.0.2", Features: featureVector(0.1)}
	b := models.FlowPayload{SourceIP: "10.0.0.1", DestinationIP: "10.0.0.2", Features: featureVector(0.1)}

	keyA := DeriveIdempotencyKey("s1", a)
	keyB := DeriveIdempotencyKey("s1", b)
	assert.Equal(t, keyA, keyB, "equal flows must derive equal keys")

	c := models.FlowPayload{SourceIP: "10.0.0.3", DestinationIP: "10.0.0.2", Features: featureVector(0.1)}
	assert.NotEqual(t, keyA, DeriveIdempotencyKey("s1", c), "different IPs must derive different keys")
	assert.NotEqual(t, keyA, DeriveIdempotencyKey("s2", a), "different sources must derive different keys")
}

func TestEnqueueDuplicateSkipped(t *testing.T) {
	store := newFakeStore()
	ingest := newTestIngest(store, testConfig())
	ctx := context.Background()

	flow := models.FlowPayload{FlowID: "f-1", SourceIP: "10.0.0.1", DestinationIP: "10.0.0.2", Features: featureVector(0.1)}

	first, err := ingest.Enqueue(ctx, "s1", []models.FlowPayload{flow})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Queued)
	assert.Equal(t, 0, first.DuplicatesSkipped)

	second, err := ingest.Enqueue(ctx, "s1", []models.FlowPayload{flow})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Queued)
	assert.Equal(t, 1, second.DuplicatesSkipped)

	assert.Len(t, store.messages, 1, "exactly one message persisted")
}

func TestEnqueueInBatchDuplicatesCollapse(t *testing.T) {
	store := newFakeStore()
	ingest := newTestIngest(store, testConfig())

	flow := models.FlowPayload{FlowID: "f-1", SourceIP: "10.0.0.1", DestinationIP: "10.0.0.2", Features: featureVector(0.1)}

	result, err := ingest.Enqueue(context.Background(), "s1", []models.FlowPayload{flow, flow, flow})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)
	assert.Equal(t, 2, result.DuplicatesSkipped)
}

func TestEnqueueBackpressureRejectsWholeBatch(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	cfg.MaxQueueDepth = 4999
	ingest := newTestIngest(store, cfg)

	flows := make([]models.FlowPayload, 5000)
	for i := range flows {
		features := featureVector(0.1)
		features[0] = float64(i)
		flows[i] = models.FlowPayload{SourceIP: "10.0.0.1", DestinationIP: "10.0.0.2", Features: features}
	}

	_, err := ingest.Enqueue(context.Background(), "s1", flows)
	require.ErrorIs(t, err, ErrBackpressure)
	assert.Empty(t, store.messages, "zero partial enqueue on rejection")
}

func TestEnqueueValidatesFeatureWidth(t *testing.T) {
	store := newFakeStore()
	ingest := newTestIngest(store, testConfig())

	flow := models.FlowPayload{SourceIP: "10.0.0.1", DestinationIP: "10.0.0.2", Features: []float64{0.1, 0.2}}

	_, err := ingest.Enqueue(context.Background(), "s1", []models.FlowPayload{flow})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature vector")
	assert.Empty(t, store.messages)
}

func TestRetryResetsMessage(t *testing.T) {
	store := newFakeStore()
	ingest := newTestIngest(store, testConfig())
	ctx := context.Background()

	flow := models.FlowPayload{FlowID: "f-1", SourceIP: "10.0.0.1", DestinationIP: "10.0.0.2", Features: featureVector(0.1)}
	result, err := ingest.Enqueue(ctx, "s1", []models.FlowPayload{flow})
	require.NoError(t, err)
	id := result.MessageIDs[0]

	// Drive the message to dead_letter through repeated claim failures.
	for i := 0; i < 5; i++ {
		_, err := store.ClaimBatch(ctx, 10, 5)
		require.NoError(t, err)
		_, err = store.FailMessage(ctx, id, "boom", 5)
		require.NoError(t, err)
	}
	msg, err := store.GetMessage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.QueueStatusDeadLetter, msg.Status)

	retried, err := ingest.Retry(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusQueued, retried.Status)
	assert.Equal(t, 0, retried.Attempts)
	assert.Nil(t, retried.LastError)
}
