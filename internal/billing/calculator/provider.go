package calculator

import "github.com/smallbiznis/tirta/internal/config"

// Provider hands out the tariff that is current at call time.
type Provider interface {
	Tariff() Tariff
}

type holderProvider struct {
	holder *config.TariffConfigHolder
}

// NewProvider follows holder, so a reloaded tariff.yml applies to the next call.
func NewProvider(holder *config.TariffConfigHolder) Provider {
	return &holderProvider{holder: holder}
}

func (p *holderProvider) Tariff() Tariff {
	return FromConfig(p.holder.Get())
}

type staticProvider struct {
	tariff Tariff
}

func Static(t Tariff) Provider {
	return staticProvider{tariff: t}
}

func (p staticProvider) Tariff() Tariff { return p.tariff }
