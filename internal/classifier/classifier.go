// Package classifier defines the model inference boundary: a production
// classifier interface plus the two implementations the backend ships with
// (a remote inference sidecar client and a local linear artifact scorer).
package classifier

import (
	"errors"
)

// BenignLabel is the label the model assigns to non-threat traffic.
const BenignLabel = "BENIGN"

// ErrModelUnavailable indicates no model is loaded or the inference
// endpoint cannot serve. Distinguishable so the pipeline can treat it as a
// transient failure rather than a bad payload.
var ErrModelUnavailable = errors.New("classifier model unavailable")

// Prediction is one classification outcome.
type Prediction struct {
	Label        string  `json:"prediction"`
	Confidence   float64 `json:"confidence"`
	IsThreat     bool    `json:"is_threat"`
	ModelVersion string  `json:"model_version,omitempty"`
}

// Classifier scores one fixed-width flow feature vector.
type Classifier interface {
	Classify(features []float64) (Prediction, error)
}
