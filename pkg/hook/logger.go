package hook

import (
	log "github.com/sirupsen/logrus"

	"github.com/enorith/hookbot/pkg/model"
	"github.com/enorith/hookbot/pkg/strategy"
)

// Logger writes one structured entry per outcome, including the indicator values
// of known strategy contexts.
type Logger struct {
	log log.FieldLogger
}

func NewLogger(logger log.FieldLogger) *Logger {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Logger{log: logger}
}

func (*Logger) Name() string { return "logger" }

func (l *Logger) PostTrade(outcome model.Outcome) error {
	fields := log.Fields{
		"pair":  outcome.Proposal.Pair,
		"side":  outcome.Proposal.Side,
		"price": outcome.Proposal.Price,
		"size":  outcome.Proposal.Size,
	}
	for key, value := range contextFields(outcome.Context) {
		fields[key] = value
	}
	for _, key := range outcome.Metadata.Keys() {
		value, _ := outcome.Metadata.Get(key)
		fields["meta."+key] = value
	}

	if outcome.Rejected() {
		fields["reason"] = outcome.Rejection.String()
		l.log.WithFields(fields).Info("trade rejected")
		return nil
	}

	if outcome.Trade != nil {
		fields["id"] = outcome.Trade.ID
		fields["pnl"] = outcome.Trade.RealizedPnL
		fields["position"] = outcome.Trade.Position.Size
	}
	l.log.WithFields(fields).Info("trade executed")
	return nil
}

func contextFields(ctx model.StrategyContext) log.Fields {
	switch c := ctx.(type) {
	case strategy.RSIContext:
		return log.Fields{
			"rsi":        c.RSI,
			"oversold":   c.Oversold,
			"overbought": c.Overbought,
			"dynamic":    c.Dynamic,
		}
	case strategy.StochasticContext:
		return log.Fields{
			"k":          c.K,
			"d":          c.D,
			"oversold":   c.Oversold,
			"overbought": c.Overbought,
			"stop":       c.StopPrice,
		}
	case nil:
		return nil
	}
	return log.Fields{"strategy": ctx.Strategy()}
}
