package service

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/centerback/centerback-go/internal/classifier"
)

// CanaryStatus is a point-in-time snapshot of the sampler configuration.
type CanaryStatus struct {
	Enabled        bool   `json:"enabled"`
	ModelVersion   string `json:"model_version,omitempty"`
	ModelPath      string `json:"model_path,omitempty"`
	TrafficPercent int    `json:"traffic_percent"`
}

// CanarySampler shadow-evaluates a fraction of traffic against a secondary
// model. Configuration is shared across concurrent requests and the worker,
// so every read and write holds the one exclusive lock.
type CanarySampler struct {
	mu sync.Mutex

	enabled        bool
	trafficPercent int
	artifact       *classifier.Artifact
	modelPath      string

	featureWidth int
	logger       *slog.Logger
}

// NewCanarySampler creates a disabled sampler.
func NewCanarySampler(featureWidth int, logger *slog.Logger) *CanarySampler {
	return &CanarySampler{featureWidth: featureWidth, logger: logger}
}

// Enable loads the artifact at path and activates sampling at the given
// traffic percentage. A missing or malformed artifact fails the call and
// leaves the prior configuration untouched.
func (c *CanarySampler) Enable(path string, trafficPercent int) error {
	if trafficPercent < 1 || trafficPercent > 100 {
		return fmt.Errorf("traffic percent must be between 1 and 100, got %d", trafficPercent)
	}

	artifact, err := classifier.LoadArtifact(path)
	if err != nil {
		return fmt.Errorf("failed to load canary model: %w", err)
	}
	if artifact.FeatureWidth() != c.featureWidth {
		return fmt.Errorf("canary model expects %d features, pipeline uses %d", artifact.FeatureWidth(), c.featureWidth)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = true
	c.trafficPercent = trafficPercent
	c.artifact = artifact
	c.modelPath = path

	c.logger.Info("canary sampling enabled",
		"model_version", artifact.Version,
		"traffic_percent", trafficPercent)
	return nil
}

// Disable clears all loaded state atomically.
func (c *CanarySampler) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = false
	c.trafficPercent = 0
	c.artifact = nil
	c.modelPath = ""

	c.logger.Info("canary sampling disabled")
}

// ShouldSample draws once against the traffic percentage. Always false when
// disabled.
func (c *CanarySampler) ShouldSample() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled || c.artifact == nil {
		return false
	}
	return rand.Float64()*100 < float64(c.trafficPercent)
}

// Evaluate scores one feature vector with the shadow model. Returns nil when
// the sampler is disabled or unloaded.
func (c *CanarySampler) Evaluate(features []float64) (*classifier.Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled || c.artifact == nil {
		return nil, nil
	}

	label, confidence, err := c.artifact.Score(features)
	if err != nil {
		return nil, fmt.Errorf("canary evaluation failed: %w", err)
	}

	return &classifier.Prediction{
		Label:        label,
		Confidence:   confidence,
		IsThreat:     label != classifier.BenignLabel,
		ModelVersion: c.artifact.Version,
	}, nil
}

// Status reports the current configuration.
func (c *CanarySampler) Status() CanaryStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := CanaryStatus{
		Enabled:        c.enabled,
		ModelPath:      c.modelPath,
		TrafficPercent: c.trafficPercent,
	}
	if c.artifact != nil {
		status.ModelVersion = c.artifact.Version
	}
	return status
}
