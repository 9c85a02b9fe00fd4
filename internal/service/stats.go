package service

import (
	"context"
	"fmt"
	"time"
)

// DashboardStats is the headline dashboard summary.
type DashboardStats struct {
	TotalFlows         int        `json:"total_flows"`
	Threats            int        `json:"threats"`
	Benign             int        `json:"benign"`
	OpenCriticalAlerts int        `json:"open_critical_alerts"`
	LastUpdated        *time.Time `json:"last_updated,omitempty"`
}

// AttackShare is one prediction label's share of detected threats.
type AttackShare struct {
	Prediction string  `json:"prediction"`
	Count      int     `json:"count"`
	Percent    float64 `json:"percent"`
}

// TimelineBucket is one hour of classification traffic.
type TimelineBucket struct {
	Hour    time.Time `json:"hour"`
	Total   int       `json:"total"`
	Benign  int       `json:"benign"`
	Threats int       `json:"threats"`
}

// DashboardStats aggregates the headline numbers for the dashboard.
func (s *DetectionService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	total, threats, lastUpdated, err := s.store.EventCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	critical, err := s.store.CountOpenCritical(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count critical alerts: %w", err)
	}

	return &DashboardStats{
		TotalFlows:         total,
		Threats:            threats,
		Benign:             total - threats,
		OpenCriticalAlerts: critical,
		LastUpdated:        lastUpdated,
	}, nil
}

// AttackDistribution breaks detected threats down by prediction label.
func (s *DetectionService) AttackDistribution(ctx context.Context) ([]AttackShare, error) {
	counts, err := s.store.ThreatDistribution(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load threat distribution: %w", err)
	}

	total := 0
	for _, c := range counts {
		total += c.Count
	}

	shares := make([]AttackShare, 0, len(counts))
	for _, c := range counts {
		share := AttackShare{Prediction: c.Prediction, Count: c.Count}
		if total > 0 {
			share.Percent = float64(c.Count) / float64(total) * 100
		}
		shares = append(shares, share)
	}
	return shares, nil
}

// TrafficTimeline buckets the last `hours` of classifications per hour.
// Empty hours are present with zero counts so charts render gapless.
func (s *DetectionService) TrafficTimeline(ctx context.Context, hours int) ([]TimelineBucket, error) {
	if hours <= 0 {
		hours = 24
	}

	end := time.Now().UTC().Truncate(time.Hour)
	cutoff := end.Add(-time.Duration(hours-1) * time.Hour)

	samples, err := s.store.EventsSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline events: %w", err)
	}

	buckets := make([]TimelineBucket, hours)
	for i := range buckets {
		buckets[i].Hour = cutoff.Add(time.Duration(i) * time.Hour)
	}

	for _, sample := range samples {
		idx := int(sample.CreatedAt.UTC().Truncate(time.Hour).Sub(cutoff) / time.Hour)
		if idx < 0 || idx >= hours {
			continue
		}
		buckets[idx].Total++
		if sample.IsThreat {
			buckets[idx].Threats++
		} else {
			buckets[idx].Benign++
		}
	}

	return buckets, nil
}
