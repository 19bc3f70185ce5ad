package ingest

import (
	"context"

	"github.com/smallbiznis/tirta/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ingest",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterSubscriber),
)

func RegisterSubscriber(lc fx.Lifecycle, cfg config.Config, handler *Handler, log *zap.Logger) {
	if !cfg.MQTT.Enabled() {
		log.Info("mqtt ingestion disabled")
		return
	}
	sub := NewSubscriber(cfg.MQTT, handler.HandleMessage, log)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sub.Start()
		},
		OnStop: func(context.Context) error {
			sub.Stop()
			return nil
		},
	})
}
