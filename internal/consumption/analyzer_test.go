package consumption

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/config"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

func reading(conn snowflake.ID, monthsAgo int, units float64) readingdomain.MeterReading {
	return readingdomain.MeterReading{
		ConnectionID:  conn,
		ReadingDate:   now.AddDate(0, -monthsAgo, 0),
		UnitsConsumed: units,
	}
}

func TestAverageConsumption(t *testing.T) {
	readings := []readingdomain.MeterReading{
		reading(1, 1, 100),
		reading(1, 2, 50),
		reading(1, 8, 1000), // outside the 6 month window
		reading(2, 1, 500),  // other connection
	}

	assert.InDelta(t, 75, AverageConsumption(1, readings, 6, now), 1e-9)
	assert.InDelta(t, 75, AverageConsumption(1, readings, 0, now), 1e-9)
	assert.InDelta(t, 100, AverageConsumption(1, readings, 1, now), 1e-9)
	assert.Equal(t, 0.0, AverageConsumption(3, readings, 6, now))
}

func TestAverageConsumptionIncludesWindowStart(t *testing.T) {
	readings := []readingdomain.MeterReading{reading(1, 6, 60)}
	assert.InDelta(t, 60, AverageConsumption(1, readings, 6, now), 1e-9)
}

func TestIsHighConsumption(t *testing.T) {
	assert.False(t, IsHighConsumption(100))
	assert.True(t, IsHighConsumption(100.01))
	assert.True(t, IsHighConsumption(150))
}

func TestIsAbnormalConsumption(t *testing.T) {
	history := []readingdomain.MeterReading{reading(1, 1, 40), reading(1, 2, 60)}

	// average 50, abnormal above 75
	assert.False(t, IsAbnormalConsumption(75, 1, history, now))
	assert.True(t, IsAbnormalConsumption(76, 1, history, now))

	// readings older than three months do not count
	old := []readingdomain.MeterReading{reading(1, 4, 10)}
	assert.False(t, IsAbnormalConsumption(90, 1, old, now))
	assert.True(t, IsAbnormalConsumption(150, 1, old, now))

	// no history falls back to the fixed threshold
	assert.True(t, IsAbnormalConsumption(150, 1, nil, now))
	assert.False(t, IsAbnormalConsumption(99, 1, nil, now))
}

func TestTrend(t *testing.T) {
	cases := []struct {
		name     string
		readings []readingdomain.MeterReading
		want     TrendResult
	}{
		{
			name:     "increasing",
			readings: []readingdomain.MeterReading{reading(1, 1, 120), reading(1, 5, 100)},
			want:     TrendResult{Trend: DirectionIncreasing, Change: 20},
		},
		{
			name:     "decreasing",
			readings: []readingdomain.MeterReading{reading(1, 5, 100), reading(1, 3, 70), reading(1, 1, 80)},
			want:     TrendResult{Trend: DirectionDecreasing, Change: -20},
		},
		{
			name:     "stable within ten percent",
			readings: []readingdomain.MeterReading{reading(1, 5, 100), reading(1, 1, 110)},
			want:     TrendResult{Trend: DirectionStable, Change: 10},
		},
		{
			name:     "single reading",
			readings: []readingdomain.MeterReading{reading(1, 1, 100)},
			want:     TrendResult{Trend: DirectionStable},
		},
		{
			name:     "earliest zero",
			readings: []readingdomain.MeterReading{reading(1, 5, 0), reading(1, 1, 50)},
			want:     TrendResult{Trend: DirectionStable},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Trend(1, tc.readings, 6, now))
		})
	}
}

func TestAnalyzerUsesConfiguredThresholds(t *testing.T) {
	cfg := config.DefaultTariffConfig().Consumption
	cfg.HighThreshold = 10
	cfg.AbnormalMultiplier = 2
	analyzer := NewAnalyzer(cfg)

	assert.True(t, analyzer.IsHighConsumption(11))
	history := []readingdomain.MeterReading{reading(1, 1, 20)}
	assert.False(t, analyzer.IsAbnormalConsumption(40, 1, history, now))
	assert.True(t, analyzer.IsAbnormalConsumption(41, 1, history, now))
}

func TestAnalyzerFollowsHolder(t *testing.T) {
	holder := config.NewStaticTariffHolder(config.DefaultTariffConfig())
	analyzer := ProvideAnalyzer(holder)
	assert.False(t, analyzer.IsHighConsumption(80))

	updated := config.DefaultTariffConfig()
	updated.Consumption.HighThreshold = 50
	if err := holder.Store(updated); err != nil {
		t.Fatalf("store: %v", err)
	}
	assert.True(t, analyzer.IsHighConsumption(80))
}

func TestDailyRate(t *testing.T) {
	prev := readingdomain.MeterReading{ReadingDate: now.AddDate(0, 0, -2), UnitsConsumed: 100}
	cur := readingdomain.MeterReading{ReadingDate: now, UnitsConsumed: 250}

	rate, ok := DailyRate(prev, cur)
	assert.True(t, ok)
	assert.InDelta(t, 75, rate, 1e-9)

	_, ok = DailyRate(cur, cur)
	assert.False(t, ok)
}
