package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/DimaJoyti/defi-sentinel/internal/risk"
)

// AlertSink posts a risk event to a webhook endpoint (Slack, PagerDuty,
// an internal on-call bridge). It is rate-limited so a burst of
// correlated risk events never turns into a self-inflicted webhook flood.
type AlertSink struct {
	client  *http.Client
	url     string
	limiter *rate.Limiter
}

// NewAlertSink builds an AlertSink posting to url, allowing at most
// ratePerSecond requests per second with a burst of burst.
func NewAlertSink(url string, ratePerSecond float64, burst int) *AlertSink {
	return &AlertSink{
		client:  &http.Client{Timeout: 10 * time.Second},
		url:     url,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

func (s *AlertSink) Name() string { return "alert" }

func (s *AlertSink) Dispatch(ctx context.Context, ev risk.Event) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(newRiskEventWire(ev))
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
