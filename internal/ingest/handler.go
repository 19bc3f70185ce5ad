// Package ingest accepts smart-meter readings published over MQTT and runs
// them through the billing cascade.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/auditcontext"
	"github.com/smallbiznis/tirta/internal/cascade"
	connectiondomain "github.com/smallbiznis/tirta/internal/connection/domain"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"github.com/smallbiznis/tirta/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidPayload   = errs.Validation("invalid_reading_payload")
	ErrMissingMeter     = errs.Validation("missing_meter_number")
	ErrInvalidReadingID = errs.Validation("invalid_reading_id")
)

// Payload is the JSON body a meter publishes.
type Payload struct {
	ReadingID     string     `json:"reading_id,omitempty"`
	MeterNumber   string     `json:"meter_number,omitempty"`
	UnitsConsumed *float64   `json:"units_consumed"`
	ReadingDate   *time.Time `json:"reading_date"`
}

// Runner is the part of the cascade the handler drives.
type Runner interface {
	RunCascade(ctx context.Context, reading readingdomain.NewReading, lookup cascade.Lookup) (*cascade.Result, error)
}

type HandlerParams struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Connections connectiondomain.Repository
	Runner      *cascade.Orchestrator
}

type Handler struct {
	db          *gorm.DB
	log         *zap.Logger
	connections connectiondomain.Repository
	runner      Runner
}

func NewHandler(p HandlerParams) *Handler {
	return newHandler(p.DB, p.Log, p.Connections, p.Runner)
}

func newHandler(db *gorm.DB, log *zap.Logger, connections connectiondomain.Repository, runner Runner) *Handler {
	return &Handler{
		db:          db,
		log:         log.Named("ingest.handler"),
		connections: connections,
		runner:      runner,
	}
}

// Handle decodes one message and runs its cascade. The meter number comes
// from the payload, or from the topic segment before "readings" when absent.
func (h *Handler) Handle(ctx context.Context, topic string, body []byte) (*cascade.Result, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ErrInvalidPayload.Wrap(err)
	}

	raw := strings.TrimSpace(payload.MeterNumber)
	if raw == "" {
		raw = meterFromTopic(topic)
	}
	if raw == "" {
		return nil, ErrMissingMeter
	}
	meterNumber, err := connectiondomain.NormalizeMeterNumber(raw)
	if err != nil {
		return nil, err
	}

	reading := readingdomain.NewReading{
		UnitsConsumed: payload.UnitsConsumed,
		Source:        readingdomain.SourceMQTT,
	}
	if payload.ReadingDate != nil {
		reading.ReadingDate = payload.ReadingDate.UTC()
	}
	if id := strings.TrimSpace(payload.ReadingID); id != "" {
		parsed, err := snowflake.ParseString(id)
		if err != nil {
			return nil, ErrInvalidReadingID.Wrap(err)
		}
		reading.ID = parsed
	}

	conn, err := h.connections.FindByMeterNumber(ctx, h.db.WithContext(ctx), meterNumber)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, connectiondomain.ErrNotFound
	}
	reading.ConnectionID = conn.ID

	ctx = auditcontext.WithActor(ctx, auditcontext.ActorMeter, meterNumber)
	ctx = auditcontext.WithSource(ctx, "mqtt:"+topic)
	return h.runner.RunCascade(ctx, reading, nil)
}

// HandleMessage is the subscriber callback. Failures are logged; rejected
// readings are not redelivered.
func (h *Handler) HandleMessage(ctx context.Context, topic string, body []byte) {
	result, err := h.Handle(ctx, topic, body)
	if err != nil {
		level := h.log.Error
		if errors.Is(err, errs.ErrValidation) || errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrConflict) {
			level = h.log.Warn
		}
		level("reading rejected",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}
	fields := []zap.Field{
		zap.String("topic", topic),
		zap.String("correlation_id", result.CorrelationID),
		zap.String("reading_id", result.Reading.ID.String()),
		zap.String("bill_id", result.Bill.ID.String()),
		zap.Int("alerts", len(result.Alerts)),
	}
	for _, ruleErr := range result.RuleErrors {
		h.log.Warn("alert rule error", append(fields, zap.Error(ruleErr))...)
	}
	h.log.Info("reading ingested", fields...)
}

func meterFromTopic(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	for i := len(parts) - 1; i > 0; i-- {
		if parts[i] == "readings" {
			return parts[i-1]
		}
	}
	return ""
}
