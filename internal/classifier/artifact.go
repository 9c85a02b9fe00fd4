package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Artifact is the on-disk JSON schema of an exported model: a linear
// softmax scorer with its label list and feature names. Exported by the
// training scripts alongside the heavyweight model binary.
type Artifact struct {
	Version      string      `json:"version,omitempty"`
	Labels       []string    `json:"labels"`
	FeatureNames []string    `json:"feature_names"`
	Weights      [][]float64 `json:"weights"`
	Intercepts   []float64   `json:"intercepts"`
}

// LoadArtifact reads and validates a model artifact. Any missing field or
// dimension mismatch is a validation error.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model artifact not found at %s: %w", path, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("invalid model artifact format: %w", err)
	}

	if len(a.Labels) == 0 || len(a.FeatureNames) == 0 || len(a.Weights) == 0 || len(a.Intercepts) == 0 {
		return nil, fmt.Errorf("invalid model artifact format: labels, feature_names, weights and intercepts are required")
	}
	if len(a.Weights) != len(a.Labels) || len(a.Intercepts) != len(a.Labels) {
		return nil, fmt.Errorf("invalid model artifact format: %d labels but %d weight rows and %d intercepts",
			len(a.Labels), len(a.Weights), len(a.Intercepts))
	}
	for i, row := range a.Weights {
		if len(row) != len(a.FeatureNames) {
			return nil, fmt.Errorf("invalid model artifact format: weight row %d has %d columns, want %d",
				i, len(row), len(a.FeatureNames))
		}
	}

	if a.Version == "" {
		a.Version = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &a, nil
}

// FeatureWidth returns the feature vector width the artifact expects.
func (a *Artifact) FeatureWidth() int {
	return len(a.FeatureNames)
}

// Score computes the softmax class distribution for one feature vector and
// returns the argmax label with its probability.
func (a *Artifact) Score(features []float64) (label string, confidence float64, err error) {
	if len(features) != len(a.FeatureNames) {
		return "", 0, fmt.Errorf("feature width mismatch: got %d, want %d", len(features), len(a.FeatureNames))
	}

	logits := make([]float64, len(a.Labels))
	maxLogit := math.Inf(-1)
	for i, row := range a.Weights {
		sum := a.Intercepts[i]
		for j, w := range row {
			sum += w * features[j]
		}
		logits[i] = sum
		if sum > maxLogit {
			maxLogit = sum
		}
	}

	// Softmax with the max subtracted for numeric stability
	var total float64
	best := 0
	for i, l := range logits {
		logits[i] = math.Exp(l - maxLogit)
		total += logits[i]
		if logits[i] > logits[best] {
			best = i
		}
	}

	return a.Labels[best], logits[best] / total, nil
}

// ArtifactClassifier scores flows with a locally loaded artifact.
type ArtifactClassifier struct {
	artifact *Artifact
}

// Compile-time check that ArtifactClassifier implements Classifier.
var _ Classifier = (*ArtifactClassifier)(nil)

// NewArtifactClassifier loads the artifact at path.
func NewArtifactClassifier(path string) (*ArtifactClassifier, error) {
	a, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	return &ArtifactClassifier{artifact: a}, nil
}

// Version returns the loaded artifact version.
func (c *ArtifactClassifier) Version() string {
	return c.artifact.Version
}

// Classify scores one feature vector.
func (c *ArtifactClassifier) Classify(features []float64) (Prediction, error) {
	label, confidence, err := c.artifact.Score(features)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{
		Label:        label,
		Confidence:   confidence,
		IsThreat:     label != BenignLabel,
		ModelVersion: c.artifact.Version,
	}, nil
}
