package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/centerback/centerback-go/internal/config"
	"github.com/centerback/centerback-go/internal/metrics"
	"github.com/centerback/centerback-go/internal/models"
)

// AlertSummary is the structured record delivered to notification sinks.
type AlertSummary struct {
	AlertID       string               `json:"alert_id"`
	Type          string               `json:"type"`
	Severity      models.AlertSeverity `json:"severity"`
	SourceIP      string               `json:"source_ip"`
	DestinationIP string               `json:"destination_ip"`
	Confidence    float64              `json:"confidence"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Broadcaster pushes an alert summary to connected live-stream clients.
// Implemented by the websocket hub in the server package.
type Broadcaster interface {
	Broadcast(summary AlertSummary)
}

// DispatcherStatus reports which sinks are configured.
type DispatcherStatus struct {
	Webhook    bool `json:"webhook"`
	Slack      bool `json:"slack"`
	NATS       bool `json:"nats"`
	LiveStream bool `json:"live_stream"`
}

// Dispatcher delivers new-alert notifications to the configured sinks.
// Delivery is fire-and-forget: it runs off the caller's goroutine, failures
// are logged and never propagated, and an unconfigured dispatcher is a no-op.
type Dispatcher struct {
	webhookURL      string
	slackWebhookURL string
	timeout         time.Duration
	client          *http.Client

	nc      *nats.Conn
	subject string

	hub Broadcaster

	collector *metrics.Collector
	logger    *slog.Logger
}

// NewDispatcher builds a dispatcher from config. The NATS connection is
// optional; a connect failure downgrades to the remaining sinks rather than
// failing startup.
func NewDispatcher(cfg config.Config, hub Broadcaster, collector *metrics.Collector, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		webhookURL:      cfg.WebhookURL,
		slackWebhookURL: cfg.SlackWebhookURL,
		timeout:         cfg.NotificationTimeout,
		client:          &http.Client{Timeout: cfg.NotificationTimeout},
		subject:         cfg.NATSSubject,
		hub:             hub,
		collector:       collector,
		logger:          logger,
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL,
			nats.Name("centerback-notifier"),
			nats.MaxReconnects(-1))
		if err != nil {
			logger.Error("failed to connect to NATS, sink disabled",
				"url", cfg.NATSURL,
				"error", err)
		} else {
			d.nc = nc
		}
	}

	return d
}

// Close releases the NATS connection if one was established.
func (d *Dispatcher) Close() {
	if d.nc != nil {
		d.nc.Close()
	}
}

// NotifyAlert delivers the summary to every configured sink. Returns
// immediately; delivery happens in the background.
func (d *Dispatcher) NotifyAlert(summary AlertSummary) {
	go d.deliver(summary)
}

func (d *Dispatcher) deliver(summary AlertSummary) {
	start := time.Now()
	defer func() {
		d.collector.RecordTiming(metrics.OpNotify, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if d.hub != nil {
		d.hub.Broadcast(summary)
	}

	if d.webhookURL != "" {
		if err := d.postJSON(ctx, d.webhookURL, summary); err != nil {
			metrics.NotificationFailures.WithLabelValues("webhook").Inc()
			d.logger.Error("webhook notification failed", "alert_id", summary.AlertID, "error", err)
		}
	}

	if d.slackWebhookURL != "" {
		text := fmt.Sprintf(":rotating_light: *%s* alert (%s): %s -> %s, confidence %.2f",
			summary.Severity, summary.Type, summary.SourceIP, summary.DestinationIP, summary.Confidence)
		if err := d.postJSON(ctx, d.slackWebhookURL, map[string]string{"text": text}); err != nil {
			metrics.NotificationFailures.WithLabelValues("slack").Inc()
			d.logger.Error("slack notification failed", "alert_id", summary.AlertID, "error", err)
		}
	}

	if d.nc != nil {
		data, err := json.Marshal(summary)
		if err == nil {
			err = d.nc.Publish(d.subject, data)
		}
		if err != nil {
			metrics.NotificationFailures.WithLabelValues("nats").Inc()
			d.logger.Error("nats notification failed", "alert_id", summary.AlertID, "error", err)
		}
	}
}

func (d *Dispatcher) postJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification sink returned %d", resp.StatusCode)
	}
	return nil
}

// Status reports which sinks are active.
func (d *Dispatcher) Status() DispatcherStatus {
	return DispatcherStatus{
		Webhook:    d.webhookURL != "",
		Slack:      d.slackWebhookURL != "",
		NATS:       d.nc != nil,
		LiveStream: d.hub != nil,
	}
}
