package service

import (
	"context"
	"fmt"
	"math"

	"github.com/centerback/centerback-go/internal/config"
)

// Drift report statuses.
const (
	DriftStatusOK         = "ok"
	DriftStatusAlert      = "alert"
	DriftInsufficientData = "insufficient_data"

	minDriftWindow = 50
)

// DriftReport is the on-demand drift analysis result.
type DriftReport struct {
	Status               string             `json:"status"`
	WindowEvents         int                `json:"window_events"`
	RequiredEvents       int                `json:"required_events,omitempty"`
	AvailableEvents      int                `json:"available_events,omitempty"`
	JSDivergence         *float64           `json:"js_divergence,omitempty"`
	CanaryDivergenceRate *float64           `json:"canary_divergence_rate,omitempty"`
	Threshold            float64            `json:"threshold"`
	CurrentDistribution  map[string]float64 `json:"current_distribution,omitempty"`
	BaselineDistribution map[string]float64 `json:"baseline_distribution,omitempty"`
}

// DriftDetector computes distributional drift between recent and baseline
// prediction windows.
type DriftDetector struct {
	store DetectionStore
	cfg   config.Config
}

// NewDriftDetector creates the detector.
func NewDriftDetector(store DetectionStore, cfg config.Config) *DriftDetector {
	return &DriftDetector{store: store, cfg: cfg}
}

// Report computes the drift report over the given window size. Zero uses
// the configured default; the window floor keeps tiny samples from
// producing noise alerts.
func (d *DriftDetector) Report(ctx context.Context, windowEvents int) (*DriftReport, error) {
	if windowEvents <= 0 {
		windowEvents = d.cfg.DriftWindowEvents
	}
	if windowEvents < minDriftWindow {
		windowEvents = minDriftWindow
	}

	required := 2 * windowEvents
	predictions, err := d.store.RecentPredictions(ctx, required)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent predictions: %w", err)
	}

	if len(predictions) < required {
		return &DriftReport{
			Status:          DriftInsufficientData,
			WindowEvents:    windowEvents,
			RequiredEvents:  required,
			AvailableEvents: len(predictions),
			Threshold:       d.cfg.DriftAlertThreshold,
		}, nil
	}

	// Predictions arrive newest first: the first window is current, the
	// next is baseline.
	current := distribution(predictions[:windowEvents])
	baseline := distribution(predictions[windowEvents:required])
	js := jensenShannon(current, baseline)

	report := &DriftReport{
		Status:               DriftStatusOK,
		WindowEvents:         windowEvents,
		JSDivergence:         &js,
		Threshold:            d.cfg.DriftAlertThreshold,
		CurrentDistribution:  current,
		BaselineDistribution: baseline,
	}

	divergence, err := d.store.RecentEvaluationDivergence(ctx, windowEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluation events: %w", err)
	}
	if len(divergence) > 0 {
		diverged := 0
		for _, flag := range divergence {
			if flag {
				diverged++
			}
		}
		rate := float64(diverged) / float64(len(divergence))
		report.CanaryDivergenceRate = &rate
	}

	if js >= d.cfg.DriftAlertThreshold ||
		(report.CanaryDivergenceRate != nil && *report.CanaryDivergenceRate >= d.cfg.DriftAlertThreshold) {
		report.Status = DriftStatusAlert
	}

	return report, nil
}

// distribution builds the empirical label distribution of a window.
func distribution(labels []string) map[string]float64 {
	counts := make(map[string]int, 8)
	for _, label := range labels {
		counts[label]++
	}

	dist := make(map[string]float64, len(counts))
	for label, count := range counts {
		dist[label] = float64(count) / float64(len(labels))
	}
	return dist
}

// jensenShannon computes sqrt(max(0, (KL(P,M)+KL(Q,M))/2)) where M is the
// pointwise average of the two distributions.
func jensenShannon(p, q map[string]float64) float64 {
	m := make(map[string]float64, len(p)+len(q))
	for label, mass := range p {
		m[label] += mass / 2
	}
	for label, mass := range q {
		m[label] += mass / 2
	}

	divergence := (klDivergence(p, m) + klDivergence(q, m)) / 2
	if divergence < 0 {
		divergence = 0
	}
	return math.Sqrt(divergence)
}

// klDivergence sums p*log2(p/q) over labels with nonzero mass in both.
func klDivergence(p, q map[string]float64) float64 {
	sum := 0.0
	for label, pMass := range p {
		qMass := q[label]
		if pMass > 0 && qMass > 0 {
			sum += pMass * math.Log2(pMass/qMass)
		}
	}
	return sum
}
