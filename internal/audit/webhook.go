package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lumina/login-gate/internal/domain"
)

// EventDecision is the event name sent with every decision record.
const EventDecision = "login_decision"

// WebhookPayload is the body sent to the decision webhook.
type WebhookPayload struct {
	Event       string                `json:"event"`
	TriggeredAt time.Time             `json:"triggered_at"`
	Decision    domain.DecisionRecord `json:"decision"`
}

// Webhook POSTs decision records to a fixed URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook sink with a short client timeout.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Name implements Sink.
func (w *Webhook) Name() string { return "webhook" }

// Publish delivers a single record.
func (w *Webhook) Publish(ctx context.Context, rec *domain.DecisionRecord) error {
	body, err := json.Marshal(WebhookPayload{
		Event:       EventDecision,
		TriggeredAt: time.Now().UTC(),
		Decision:    *rec,
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Login-Gate-Event", EventDecision)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.HTTPStatusError{Method: http.MethodPost, URL: w.url, Status: resp.StatusCode}
	}
	return nil
}
