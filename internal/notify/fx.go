package notify

import (
	"context"

	alertdomain "github.com/smallbiznis/tirta/internal/alert/domain"
	"github.com/smallbiznis/tirta/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notify",
	fx.Provide(NewNotifier),
)

// NewNotifier returns the webhook notifier, or a logging no-op when no
// webhook URL is configured.
func NewNotifier(cfg config.Config, log *zap.Logger) alertdomain.Notifier {
	if cfg.AlertWebhookURL == "" {
		return logOnly{log: log.Named("notify")}
	}
	return NewWebhook(WebhookConfig{
		URL:     cfg.AlertWebhookURL,
		Timeout: cfg.AlertWebhookTimeout,
		Retries: 2,
	}, log)
}

type logOnly struct {
	log *zap.Logger
}

func (n logOnly) NotifyAlerts(_ context.Context, alerts []alertdomain.Alert) error {
	for _, alert := range alerts {
		n.log.Info("alert raised",
			zap.String("alert_id", alert.ID.String()),
			zap.String("type", string(alert.Type)),
			zap.String("severity", string(alert.Severity)),
		)
	}
	return nil
}
