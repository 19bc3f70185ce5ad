// Package rules evaluates alert rules against engine events.
package rules

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	alertdomain "github.com/smallbiznis/tirta/internal/alert/domain"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/consumption"
	"github.com/smallbiznis/tirta/internal/observability/metrics"
	"github.com/smallbiznis/tirta/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Analyzer *consumption.Analyzer
	Metrics  *metrics.Metrics `optional:"true"`
}

// Engine runs every rule against an event. A failing rule never stops the
// others; its failure is returned as an *errs.RuleError.
type Engine struct {
	log     *zap.Logger
	clock   clock.Clock
	metrics *metrics.Metrics
	rules   []Rule
}

func NewEngine(p Params) *Engine {
	analyzer := p.Analyzer
	if analyzer == nil {
		analyzer = consumption.Default()
	}
	return &Engine{
		log:     p.Log.Named("alert.rules"),
		clock:   p.Clock,
		metrics: p.Metrics,
		rules: []Rule{
			highConsumption{analyzer: analyzer},
			paymentOverdue{},
			leakDetection{},
			waterQuality{},
			meterReadingDue{},
			complaintEscalated{},
		},
	}
}

// WithRules returns an engine running rules instead of the built-in set.
func (e *Engine) WithRules(rules ...Rule) *Engine {
	clone := *e
	clone.rules = rules
	return &clone
}

// Only returns an engine restricted to the named rules.
func (e *Engine) Only(names ...string) *Engine {
	keep := make(map[string]struct{}, len(names))
	for _, name := range names {
		keep[name] = struct{}{}
	}
	clone := *e
	clone.rules = nil
	for _, rule := range e.rules {
		if _, ok := keep[rule.Name()]; ok {
			clone.rules = append(clone.rules, rule)
		}
	}
	return &clone
}

func (e *Engine) RuleNames() []string {
	names := make([]string, 0, len(e.rules))
	for _, rule := range e.rules {
		names = append(names, rule.Name())
	}
	return names
}

// Evaluate returns the alerts raised by event along with the rules that failed.
func (e *Engine) Evaluate(ctx context.Context, event Event) ([]alertdomain.Alert, []*errs.RuleError) {
	now := e.clock.Now()
	var (
		alerts   []alertdomain.Alert
		failures []*errs.RuleError
	)
	for _, rule := range e.rules {
		raised, err := e.evaluateRule(rule, event, now)
		if err != nil {
			ruleErr := &errs.RuleError{Rule: rule.Name(), Cause: err}
			failures = append(failures, ruleErr)
			e.metrics.RecordRuleFailure(ctx, rule.Name())
			e.log.Warn("alert rule failed",
				zap.String("rule", rule.Name()),
				zap.String("event", event.Kind()),
				zap.Error(err),
			)
			continue
		}
		alerts = append(alerts, raised...)
	}
	return alerts, failures
}

func (e *Engine) evaluateRule(rule Rule, event Event, now time.Time) (alerts []alertdomain.Alert, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("alert rule panicked",
				zap.String("rule", rule.Name()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			alerts = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return rule.Evaluate(event, now)
}
