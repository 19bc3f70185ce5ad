package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/smallbiznis/tirta/internal/alert/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleAlert() alertdomain.Alert {
	userID := snowflake.ID(42)
	sourceID := snowflake.ID(7)
	return alertdomain.Alert{
		ID:         snowflake.ID(1001),
		UserID:     &userID,
		Type:       alertdomain.TypeLeakDetection,
		Message:    "Possible leak on meter WM000001",
		Status:     alertdomain.AlertStatusActive,
		Severity:   alertdomain.SeverityHigh,
		Priority:   alertdomain.Priority(alertdomain.SeverityHigh, alertdomain.TypeLeakDetection),
		SourceType: alertdomain.SourceReading,
		SourceID:   &sourceID,
		CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestWebhookPostsAlerts(t *testing.T) {
	var got webhookBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	hook := NewWebhook(WebhookConfig{URL: srv.URL, Timeout: time.Second}, zap.NewNop())
	require.NoError(t, hook.NotifyAlerts(context.Background(), []alertdomain.Alert{sampleAlert()}))

	require.Len(t, got.Alerts, 1)
	alert := got.Alerts[0]
	assert.Equal(t, "1001", alert.ID)
	assert.Equal(t, "42", alert.UserID)
	assert.Equal(t, "7", alert.SourceID)
	assert.Equal(t, string(alertdomain.TypeLeakDetection), alert.Type)
	assert.Equal(t, alertdomain.TypeLeakDetection.Code(), alert.Code)
	assert.Equal(t, "High", alert.Severity)
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hook := NewWebhook(WebhookConfig{
		URL:       srv.URL,
		Timeout:   time.Second,
		Retries:   2,
		RetryWait: time.Millisecond,
	}, zap.NewNop())
	err := hook.NotifyAlerts(context.Background(), []alertdomain.Alert{sampleAlert()})
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestWebhookDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	hook := NewWebhook(WebhookConfig{URL: srv.URL, Retries: 2, RetryWait: time.Millisecond}, zap.NewNop())
	require.Error(t, hook.NotifyAlerts(context.Background(), []alertdomain.Alert{sampleAlert()}))
	assert.Equal(t, int32(1), hits.Load())
}

func TestWebhookSkipsEmptyBatch(t *testing.T) {
	hook := NewWebhook(WebhookConfig{URL: "http://127.0.0.1:1"}, zap.NewNop())
	assert.NoError(t, hook.NotifyAlerts(context.Background(), nil))
}
