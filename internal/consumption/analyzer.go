// Package consumption derives usage statistics for a connection from its
// reading history.
package consumption

import (
	"math"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/config"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
)

type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"
)

// TrendResult compares the earliest and latest reading of a window. Change is
// a percentage rounded to two decimals.
type TrendResult struct {
	Trend  Direction `json:"trend"`
	Change float64   `json:"change"`
}

// Analyzer evaluates readings against configurable thresholds.
type Analyzer struct {
	config func() config.ConsumptionConfig
}

var defaultAnalyzer = NewAnalyzer(config.DefaultTariffConfig().Consumption)

func NewAnalyzer(cfg config.ConsumptionConfig) *Analyzer {
	return &Analyzer{config: func() config.ConsumptionConfig { return cfg }}
}

// ProvideAnalyzer follows the tariff holder so reloaded thresholds apply on the
// next evaluation.
func ProvideAnalyzer(holder *config.TariffConfigHolder) *Analyzer {
	return &Analyzer{config: func() config.ConsumptionConfig { return holder.Get().Consumption }}
}

// Default returns the analyzer with default thresholds.
func Default() *Analyzer { return defaultAnalyzer }

func (a *Analyzer) HighThreshold() float64 {
	return a.config().HighThreshold
}

// AverageConsumption is the mean of UnitsConsumed over the connection's
// readings dated within the trailing window of months. months <= 0 uses the
// configured default window.
func (a *Analyzer) AverageConsumption(connectionID snowflake.ID, readings []readingdomain.MeterReading, months int, now time.Time) float64 {
	if months <= 0 {
		months = a.config().AverageWindowMonths
	}
	window := inWindow(connectionID, readings, months, now)
	if len(window) == 0 {
		return 0
	}
	var total float64
	for _, r := range window {
		total += r.UnitsConsumed
	}
	return total / float64(len(window))
}

func (a *Analyzer) IsHighConsumption(units float64) bool {
	return units > a.config().HighThreshold
}

// IsAbnormalConsumption compares units with the rolling average of the
// abnormal window. Without history it falls back to IsHighConsumption.
func (a *Analyzer) IsAbnormalConsumption(units float64, connectionID snowflake.ID, readings []readingdomain.MeterReading, now time.Time) bool {
	cfg := a.config()
	avg := a.AverageConsumption(connectionID, readings, cfg.AbnormalWindowMonths, now)
	if avg == 0 {
		return a.IsHighConsumption(units)
	}
	return units > avg*cfg.AbnormalMultiplier
}

func (a *Analyzer) Trend(connectionID snowflake.ID, readings []readingdomain.MeterReading, months int, now time.Time) TrendResult {
	cfg := a.config()
	if months <= 0 {
		months = cfg.AverageWindowMonths
	}
	window := inWindow(connectionID, readings, months, now)
	if len(window) < 2 {
		return TrendResult{Trend: DirectionStable}
	}
	earliest := window[0].UnitsConsumed
	latest := window[len(window)-1].UnitsConsumed
	if earliest == 0 {
		return TrendResult{Trend: DirectionStable}
	}

	change := math.Round((latest-earliest)/earliest*100*100) / 100
	switch {
	case change > cfg.TrendThresholdPct:
		return TrendResult{Trend: DirectionIncreasing, Change: change}
	case change < -cfg.TrendThresholdPct:
		return TrendResult{Trend: DirectionDecreasing, Change: change}
	default:
		return TrendResult{Trend: DirectionStable, Change: change}
	}
}

// DailyRate is the unit increase per day from previous to current. ok is false
// when the readings are not strictly ordered in time.
func DailyRate(previous, current readingdomain.MeterReading) (rate float64, ok bool) {
	days := current.ReadingDate.Sub(previous.ReadingDate).Hours() / 24
	if days <= 0 {
		return 0, false
	}
	return (current.UnitsConsumed - previous.UnitsConsumed) / days, true
}

// inWindow returns the connection's readings dated on or after now minus
// months, ordered by reading date.
func inWindow(connectionID snowflake.ID, readings []readingdomain.MeterReading, months int, now time.Time) []readingdomain.MeterReading {
	cutoff := now.AddDate(0, -months, 0)
	window := make([]readingdomain.MeterReading, 0, len(readings))
	for _, r := range readings {
		if r.ConnectionID != connectionID {
			continue
		}
		if r.ReadingDate.Before(cutoff) || r.ReadingDate.After(now) {
			continue
		}
		window = append(window, r)
	}
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].ReadingDate.Before(window[j].ReadingDate)
	})
	return window
}

func AverageConsumption(connectionID snowflake.ID, readings []readingdomain.MeterReading, months int, now time.Time) float64 {
	return defaultAnalyzer.AverageConsumption(connectionID, readings, months, now)
}

func IsHighConsumption(units float64) bool {
	return defaultAnalyzer.IsHighConsumption(units)
}

func IsAbnormalConsumption(units float64, connectionID snowflake.ID, readings []readingdomain.MeterReading, now time.Time) bool {
	return defaultAnalyzer.IsAbnormalConsumption(units, connectionID, readings, now)
}

func Trend(connectionID snowflake.ID, readings []readingdomain.MeterReading, months int, now time.Time) TrendResult {
	return defaultAnalyzer.Trend(connectionID, readings, months, now)
}
