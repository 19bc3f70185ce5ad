package ingest

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/smallbiznis/tirta/internal/config"
	"go.uber.org/zap"
)

// MessageHandler receives one MQTT message.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Subscriber keeps an MQTT subscription on the readings topic.
type Subscriber struct {
	client  mqtt.Client
	cfg     config.MQTTConfig
	handler MessageHandler
	log     *zap.Logger
}

func NewSubscriber(cfg config.MQTTConfig, handler MessageHandler, log *zap.Logger) *Subscriber {
	s := &Subscriber{
		cfg:     cfg,
		handler: handler,
		log:     log.Named("ingest.mqtt"),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		// Clean sessions drop subscriptions, so every connect subscribes again.
		if err := s.subscribe(client); err != nil {
			s.log.Error("resubscribe failed", zap.Error(err))
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.log.Warn("mqtt connection lost", zap.Error(err))
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Start connects to the broker. The subscription is made by the connect
// handler so it survives reconnects.
func (s *Subscriber) Start() error {
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}
	s.log.Info("mqtt subscriber started",
		zap.String("broker", s.cfg.Broker),
		zap.String("topic", s.cfg.Topic),
	)
	return nil
}

func (s *Subscriber) subscribe(client mqtt.Client) error {
	token := client.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.Topic, token.Error())
	}
	return nil
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.handler(context.Background(), msg.Topic(), msg.Payload())
}

// Stop unsubscribes and disconnects, waiting up to 250ms for in-flight work.
func (s *Subscriber) Stop() {
	if !s.client.IsConnected() {
		return
	}
	if token := s.client.Unsubscribe(s.cfg.Topic); token.Wait() && token.Error() != nil {
		s.log.Warn("mqtt unsubscribe failed", zap.Error(token.Error()))
	}
	s.client.Disconnect(250)
}
