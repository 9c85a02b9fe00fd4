package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centerback/centerback-go/internal/classifier"
	"github.com/centerback/centerback-go/internal/config"
	"github.com/centerback/centerback-go/internal/metrics"
	"github.com/centerback/centerback-go/internal/models"
)

func newTestDetection(store *fakeStore, cfg config.Config, canary *CanarySampler) *DetectionService {
	logger := testLogger()
	return NewDetectionService(store, canary, nil, NewAudit(store, logger), metrics.NewCollector(), cfg, logger)
}

func threatInput(prediction string, confidence float64) ClassificationInput {
	return ClassificationInput{
		Source:        "s1",
		SourceIP:      "10.0.0.1",
		DestinationIP: "10.0.0.2",
		Prediction: classifier.Prediction{
			Label:      prediction,
			Confidence: confidence,
			IsThreat:   prediction != classifier.BenignLabel,
		},
		Features: featureVector(0.1),
	}
}

func TestSeverityThresholds(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, severityFor(0.95))
	assert.Equal(t, models.SeverityCritical, severityFor(0.99))
	assert.Equal(t, models.SeverityHigh, severityFor(0.90))
	assert.Equal(t, models.SeverityHigh, severityFor(0.949))
	assert.Equal(t, models.SeverityMedium, severityFor(0.80))
	assert.Equal(t, models.SeverityMedium, severityFor(0.899))
	assert.Equal(t, models.SeverityLow, severityFor(0.799))
	assert.Equal(t, models.SeverityLow, severityFor(0))
}

func TestRecordClassificationBenignNoAlert(t *testing.T) {
	store := newFakeStore()
	detection := newTestDetection(store, testConfig(), nil)

	event, alert, err := detection.RecordClassification(context.Background(), threatInput(classifier.BenignLabel, 0.99))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Nil(t, alert)
	assert.Empty(t, store.alerts)
	assert.Len(t, store.events, 1, "benign traffic still persists an event")
}

func TestRecordClassificationCreatesAlert(t *testing.T) {
	store := newFakeStore()
	detection := newTestDetection(store, testConfig(), nil)

	event, alert, err := detection.RecordClassification(context.Background(), threatInput("DDoS", 0.97))
	require.NoError(t, err)
	require.NotNil(t, alert)

	assert.Equal(t, "DDoS:10.0.0.1:10.0.0.2", alert.DedupKey)
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Equal(t, models.AlertStatusNew, alert.Status)
	require.NotNil(t, alert.EventID)
	assert.Equal(t, models.MustRecordIDString(event.ID), *alert.EventID)
}

func TestAlertDedupKeepsMaxConfidence(t *testing.T) {
	store := newFakeStore()
	detection := newTestDetection(store, testConfig(), nil)
	ctx := context.Background()

	for _, confidence := range []float64{0.81, 0.93, 0.97} {
		_, _, err := detection.RecordClassification(ctx, threatInput("DDoS", confidence))
		require.NoError(t, err)
	}

	require.Len(t, store.alerts, 1, "identical threats within the window share one alert")
	assert.Equal(t, 0.97, store.alerts[0].Confidence)
	assert.Equal(t, models.SeverityCritical, store.alerts[0].Severity)
}

func TestAlertDedupIgnoresLowerConfidence(t *testing.T) {
	store := newFakeStore()
	detection := newTestDetection(store, testConfig(), nil)
	ctx := context.Background()

	_, _, err := detection.RecordClassification(ctx, threatInput("DDoS", 0.97))
	require.NoError(t, err)
	_, _, err = detection.RecordClassification(ctx, threatInput("DDoS", 0.81))
	require.NoError(t, err)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, 0.97, store.alerts[0].Confidence)
	assert.Equal(t, models.SeverityCritical, store.alerts[0].Severity)
}

func TestDifferentDedupKeysCreateSeparateAlerts(t *testing.T) {
	store := newFakeStore()
	detection := newTestDetection(store, testConfig(), nil)
	ctx := context.Background()

	_, _, err := detection.RecordClassification(ctx, threatInput("DDoS", 0.97))
	require.NoError(t, err)

	other := threatInput("PortScan", 0.97)
	_, _, err = detection.RecordClassification(ctx, other)
	require.NoError(t, err)

	assert.Len(t, store.alerts, 2)
}

func TestResolvedAlertNotMergedInto(t *testing.T) {
	store := newFakeStore()
	detection := newTestDetection(store, testConfig(), nil)
	ctx := context.Background()

	_, first, err := detection.RecordClassification(ctx, threatInput("DDoS", 0.97))
	require.NoError(t, err)

	_, err = detection.UpdateAlertStatus(ctx, models.MustRecordIDString(first.ID), models.AlertStatusResolved, nil)
	require.NoError(t, err)

	_, second, err := detection.RecordClassification(ctx, threatInput("DDoS", 0.97))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID, "resolved alerts do not absorb new threats")
	assert.Len(t, store.alerts, 2)
}

func TestAlertTransitions(t *testing.T) {
	tests := []struct {
		from    models.AlertStatus
		to      models.AlertStatus
		allowed bool
	}{
		{models.AlertStatusNew, models.AlertStatusTriaged, true},
		{models.AlertStatusNew, models.AlertStatusInvestigating, true},
		{models.AlertStatusNew, models.AlertStatusResolved, true},
		{models.AlertStatusNew, models.AlertStatusFalsePositive, true},
		{models.AlertStatusTriaged, models.AlertStatusInvestigating, true},
		{models.AlertStatusTriaged, models.AlertStatusNew, false},
		{models.AlertStatusInvestigating, models.AlertStatusResolved, true},
		{models.AlertStatusInvestigating, models.AlertStatusTriaged, false},
		{models.AlertStatusResolved, models.AlertStatusTriaged, true},
		{models.AlertStatusResolved, models.AlertStatusInvestigating, false},
		{models.AlertStatusFalsePositive, models.AlertStatusTriaged, true},
		{models.AlertStatusFalsePositive, models.AlertStatusResolved, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, transitionAllowed(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestUpdateAlertStatusRejectsInvalidTransition(t *testing.T) {
	store := newFakeStore()
	detection := newTestDetection(store, testConfig(), nil)
	ctx := context.Background()

	_, alert, err := detection.RecordClassification(ctx, threatInput("DDoS", 0.97))
	require.NoError(t, err)
	id := models.MustRecordIDString(alert.ID)

	_, err = detection.UpdateAlertStatus(ctx, id, models.AlertStatusResolved, nil)
	require.NoError(t, err)

	_, err = detection.UpdateAlertStatus(ctx, id, models.AlertStatusInvestigating, nil)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.AlertStatusResolved, invalid.From)
	assert.Equal(t, models.AlertStatusInvestigating, invalid.To)

	updated, err := detection.UpdateAlertStatus(ctx, id, models.AlertStatusTriaged, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusTriaged, updated.Status)
}

func TestUpdateAlertStatusSameStateNoOp(t *testing.T) {
	store := newFakeStore()
	detection := newTestDetection(store, testConfig(), nil)
	ctx := context.Background()

	_, alert, err := detection.RecordClassification(ctx, threatInput("DDoS", 0.97))
	require.NoError(t, err)

	same, err := detection.UpdateAlertStatus(ctx, models.MustRecordIDString(alert.ID), models.AlertStatusNew, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusNew, same.Status)
}

func TestDashboardStats(t *testing.T) {
	store := newFakeStore()
	detection := newTestDetection(store, testConfig(), nil)
	ctx := context.Background()

	_, _, err := detection.RecordClassification(ctx, threatInput("DDoS", 0.97))
	require.NoError(t, err)
	_, _, err = detection.RecordClassification(ctx, threatInput(classifier.BenignLabel, 0.99))
	require.NoError(t, err)

	stats, err := detection.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFlows)
	assert.Equal(t, 1, stats.Threats)
	assert.Equal(t, 1, stats.Benign)
	assert.Equal(t, 1, stats.OpenCriticalAlerts)
	assert.NotNil(t, stats.LastUpdated)

	// Marking the critical alert a false positive settles it.
	alertID := models.MustRecordIDString(store.alerts[0].ID)
	_, err = detection.UpdateAlertStatus(ctx, alertID, models.AlertStatusTriaged, nil)
	require.NoError(t, err)
	_, err = detection.UpdateAlertStatus(ctx, alertID, models.AlertStatusFalsePositive, nil)
	require.NoError(t, err)

	stats, err = detection.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.OpenCriticalAlerts)
}

func TestAttackDistributionPercentages(t *testing.T) {
	store := newFakeStore()
	detection := newTestDetection(store, testConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := detection.RecordClassification(ctx, threatInput("DDoS", 0.85))
		require.NoError(t, err)
	}
	_, _, err := detection.RecordClassification(ctx, threatInput("PortScan", 0.85))
	require.NoError(t, err)

	shares, err := detection.AttackDistribution(ctx)
	require.NoError(t, err)
	require.Len(t, shares, 2)
	assert.Equal(t, "DDoS", shares[0].Prediction)
	assert.Equal(t, 3, shares[0].Count)
	assert.InDelta(t, 75.0, shares[0].Percent, 0.001)
	assert.InDelta(t, 25.0, shares[1].Percent, 0.001)
}
