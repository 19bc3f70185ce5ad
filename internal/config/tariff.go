package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// TariffTier is one surcharge or discount band. Exactly one of Above or Below
// is set; tiers are matched in order and the first match wins.
type TariffTier struct {
	Label      string   `mapstructure:"label"`
	Above      *float64 `mapstructure:"above"`
	Below      *float64 `mapstructure:"below"`
	Multiplier float64  `mapstructure:"multiplier"`
}

// LateFeeTier charges Percent of the bill once a bill is more than AfterDays overdue.
type LateFeeTier struct {
	AfterDays int     `mapstructure:"afterDays"`
	Percent   float64 `mapstructure:"percent"`
}

type ConsumptionConfig struct {
	HighThreshold        float64 `mapstructure:"highThreshold"`
	AbnormalMultiplier   float64 `mapstructure:"abnormalMultiplier"`
	AbnormalWindowMonths int     `mapstructure:"abnormalWindowMonths"`
	AverageWindowMonths  int     `mapstructure:"averageWindowMonths"`
	TrendThresholdPct    float64 `mapstructure:"trendThresholdPct"`
}

type TariffConfig struct {
	Rate        float64           `mapstructure:"rate"`
	Tiers       []TariffTier      `mapstructure:"tiers"`
	LateFees    []LateFeeTier     `mapstructure:"lateFees"`
	OverdueDays int               `mapstructure:"overdueDays"`
	Consumption ConsumptionConfig `mapstructure:"consumption"`
}

func DefaultTariffConfig() TariffConfig {
	return TariffConfig{
		Rate: 15.50,
		Tiers: []TariffTier{
			{Label: "surcharge_10", Above: floatPtr(200), Multiplier: 1.10},
			{Label: "surcharge_5", Above: floatPtr(150), Multiplier: 1.05},
			{Label: "discount_5", Below: floatPtr(50), Multiplier: 0.95},
		},
		LateFees: []LateFeeTier{
			{AfterDays: 60, Percent: 10},
			{AfterDays: 30, Percent: 5},
			{AfterDays: 15, Percent: 2},
		},
		OverdueDays: 30,
		Consumption: ConsumptionConfig{
			HighThreshold:        100,
			AbnormalMultiplier:   1.5,
			AbnormalWindowMonths: 3,
			AverageWindowMonths:  6,
			TrendThresholdPct:    10,
		},
	}
}

func floatPtr(v float64) *float64 { return &v }

type TariffConfigHolder struct {
	current atomic.Value // holds TariffConfig
	log     *zap.Logger
}

// NewTariffConfigHolder loads tariff.yml from the usual config paths and keeps
// it current as the file changes. A missing file means defaults.
func NewTariffConfigHolder(log *zap.Logger) (*TariffConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("tariff")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/tirta/config")
	v.AddConfigPath("/etc/tirta")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TIRTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return newTariffConfigHolder(v, log, true)
}

// LoadTariffConfigFile reads a single tariff file without watching it.
func LoadTariffConfigFile(path string, log *zap.Logger) (*TariffConfigHolder, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return newTariffConfigHolder(v, log, false)
}

// NewStaticTariffHolder wraps a fixed config.
func NewStaticTariffHolder(cfg TariffConfig) *TariffConfigHolder {
	holder := &TariffConfigHolder{log: zap.NewNop()}
	holder.current.Store(cfg)
	return holder
}

func newTariffConfigHolder(v *viper.Viper, log *zap.Logger, watch bool) (*TariffConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.tariff")

	defaults := DefaultTariffConfig()
	v.SetDefault("tariff.rate", defaults.Rate)
	v.SetDefault("tariff.overdueDays", defaults.OverdueDays)
	v.SetDefault("tariff.consumption.highThreshold", defaults.Consumption.HighThreshold)
	v.SetDefault("tariff.consumption.abnormalMultiplier", defaults.Consumption.AbnormalMultiplier)
	v.SetDefault("tariff.consumption.abnormalWindowMonths", defaults.Consumption.AbnormalWindowMonths)
	v.SetDefault("tariff.consumption.averageWindowMonths", defaults.Consumption.AverageWindowMonths)
	v.SetDefault("tariff.consumption.trendThresholdPct", defaults.Consumption.TrendThresholdPct)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info("tariff config not found, using defaults")
	}

	cfg, err := unmarshalTariff(v)
	if err != nil {
		return nil, err
	}

	holder := &TariffConfigHolder{log: log}
	if err := holder.Store(cfg); err != nil {
		return nil, err
	}

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := unmarshalTariff(v)
			if err != nil {
				log.Warn("reload failed", zap.Error(err))
				return
			}
			if err := holder.Store(updated); err != nil {
				log.Warn("invalid config ignored", zap.Error(err))
				return
			}
			log.Info("reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func unmarshalTariff(v *viper.Viper) (TariffConfig, error) {
	// Unmarshal merges nested defaults; UnmarshalKey does not.
	var wrapper struct {
		Tariff TariffConfig `mapstructure:"tariff"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return TariffConfig{}, err
	}
	cfg := wrapper.Tariff
	defaults := DefaultTariffConfig()
	if cfg.Tiers == nil {
		cfg.Tiers = defaults.Tiers
	}
	if cfg.LateFees == nil {
		cfg.LateFees = defaults.LateFees
	}
	return cfg, nil
}

// Get returns the current tariff.
func (h *TariffConfigHolder) Get() TariffConfig {
	return h.current.Load().(TariffConfig)
}

// Store replaces the current tariff when cfg is valid.
func (h *TariffConfigHolder) Store(cfg TariffConfig) error {
	if err := ValidateTariffConfig(cfg); err != nil {
		return err
	}
	h.current.Store(cfg)
	return nil
}

func ValidateTariffConfig(cfg TariffConfig) error {
	if cfg.Rate <= 0 {
		return errors.New("tariff.rate must be positive")
	}
	for i, tier := range cfg.Tiers {
		if (tier.Above == nil) == (tier.Below == nil) {
			return fmt.Errorf("tariff.tiers[%d]: exactly one of above or below is required", i)
		}
		if tier.Multiplier <= 0 {
			return fmt.Errorf("tariff.tiers[%d]: multiplier must be positive", i)
		}
	}
	prev := -1
	for i := len(cfg.LateFees) - 1; i >= 0; i-- {
		tier := cfg.LateFees[i]
		if tier.AfterDays <= prev {
			return errors.New("tariff.lateFees must be ordered by afterDays descending")
		}
		if tier.Percent < 0 {
			return fmt.Errorf("tariff.lateFees[%d]: percent cannot be negative", i)
		}
		prev = tier.AfterDays
	}
	if cfg.OverdueDays < 0 {
		return errors.New("tariff.overdueDays cannot be negative")
	}
	c := cfg.Consumption
	if c.HighThreshold < 0 || c.AbnormalMultiplier <= 0 {
		return errors.New("tariff.consumption thresholds are invalid")
	}
	if c.AbnormalWindowMonths <= 0 || c.AverageWindowMonths <= 0 {
		return errors.New("tariff.consumption windows must be positive")
	}
	return nil
}
