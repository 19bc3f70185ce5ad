// Package notify delivers committed alerts to an operator webhook.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	alertdomain "github.com/smallbiznis/tirta/internal/alert/domain"
	"go.uber.org/zap"
)

type WebhookConfig struct {
	URL       string
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
}

// Webhook posts alert batches as JSON. 5xx responses are retried.
type Webhook struct {
	client *resty.Client
	url    string
	log    *zap.Logger
}

type alertPayload struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	Type       string    `json:"type"`
	Code       string    `json:"code"`
	Severity   string    `json:"severity"`
	Priority   int       `json:"priority"`
	Message    string    `json:"message"`
	SourceType string    `json:"source_type"`
	SourceID   string    `json:"source_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type webhookBody struct {
	Alerts []alertPayload `json:"alerts"`
}

func NewWebhook(cfg WebhookConfig, log *zap.Logger) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = 500 * time.Millisecond
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(4*retryWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Webhook{
		client: client,
		url:    strings.TrimSpace(cfg.URL),
		log:    log.Named("notify.webhook"),
	}
}

func (w *Webhook) NotifyAlerts(ctx context.Context, alerts []alertdomain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	body := webhookBody{Alerts: make([]alertPayload, 0, len(alerts))}
	for _, alert := range alerts {
		body.Alerts = append(body.Alerts, toPayload(alert))
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post alerts: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post alerts: unexpected status %d", resp.StatusCode())
	}

	w.log.Debug("alerts delivered",
		zap.Int("count", len(alerts)),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}

func toPayload(alert alertdomain.Alert) alertPayload {
	payload := alertPayload{
		ID:         alert.ID.String(),
		Type:       string(alert.Type),
		Code:       alert.Type.Code(),
		Severity:   string(alert.Severity),
		Priority:   alert.Priority,
		Message:    alert.Message,
		SourceType: alert.SourceType,
		CreatedAt:  alert.CreatedAt.UTC(),
	}
	if alert.UserID != nil {
		payload.UserID = alert.UserID.String()
	}
	if alert.SourceID != nil {
		payload.SourceID = alert.SourceID.String()
	}
	return payload
}
