package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClassifier calls a model inference sidecar over HTTP. The sidecar
// exposes POST /predict taking {"features": [...]} and returning a
// Prediction-shaped JSON body.
type HTTPClassifier struct {
	baseURL string
	client  *http.Client
}

// Compile-time check that HTTPClassifier implements Classifier.
var _ Classifier = (*HTTPClassifier)(nil)

// NewHTTPClassifier creates a client for the inference endpoint.
func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClassifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Classify posts one feature vector to the inference endpoint.
func (c *HTTPClassifier) Classify(features []float64) (Prediction, error) {
	body, err := json.Marshal(map[string]any{"features": features})
	if err != nil {
		return Prediction{}, fmt.Errorf("marshal features: %w", err)
	}

	resp, err := c.client.Post(c.baseURL+"/predict", "application/json", bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return Prediction{}, fmt.Errorf("%w: inference endpoint has no model loaded", ErrModelUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("inference endpoint returned %d", resp.StatusCode)
	}

	var pred Prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return Prediction{}, fmt.Errorf("decode prediction: %w", err)
	}
	if pred.Label == "" {
		return Prediction{}, fmt.Errorf("inference endpoint returned empty prediction")
	}

	pred.IsThreat = pred.Label != BenignLabel
	return pred, nil
}
