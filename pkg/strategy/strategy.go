package strategy

import (
	"fmt"
	"strings"

	"github.com/enorith/hookbot/pkg/model"
)

// Strategy turns sealed candles into at most one trade proposal per candle.
// Implementations keep rolling indicator state and must fold each new candle
// exactly once, reading only history.Last().
type Strategy interface {
	Name() string
	// WarmupPeriod is the number of candles needed before the first signal can be produced.
	WarmupPeriod() int
	Evaluate(history *model.History) *Signal
}

// Signal is a proposal together with the context that explains it.
type Signal struct {
	Proposal model.Proposal
	Context  model.StrategyContext
	Metadata model.Metadata
}

type Kind string

const (
	KindRSI        Kind = "rsi"
	KindStochastic Kind = "stochastic"
)

// Params groups the settings of every known strategy, only the one matching Kind is used.
type Params struct {
	RSI        RSIConfig
	Stochastic StochasticConfig
}

func Build(kind Kind, pair string, params Params) (Strategy, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(string(kind)))) {
	case KindRSI:
		return NewRSI(pair, params.RSI)
	case KindStochastic:
		return NewStochastic(pair, params.Stochastic)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", model.ErrInvalidConfiguration, kind)
	}
}

func validateThresholds(oversold, overbought float64) error {
	if oversold < 0 || overbought > 100 {
		return fmt.Errorf("%w: thresholds must be within [0, 100]", model.ErrInvalidConfiguration)
	}
	if oversold >= overbought {
		return fmt.Errorf("%w: oversold (%.2f) must be below overbought (%.2f)",
			model.ErrInvalidConfiguration, oversold, overbought)
	}
	return nil
}

// crossed applies the threshold rule shared by the oscillators.
func crossed(prev, current, oversold, overbought float64) (model.Side, bool) {
	switch {
	case prev >= oversold && current < oversold:
		return model.SideBuy, true
	case prev <= overbought && current > overbought:
		return model.SideSell, true
	}
	return "", false
}

// window is a fixed capacity ring buffer of float values.
type window struct {
	values []float64
	head   int
	count  int
}

func newWindow(size int) *window {
	return &window{values: make([]float64, size)}
}

func (w *window) Push(value float64) {
	w.values[w.head] = value
	w.head = (w.head + 1) % len(w.values)
	if w.count < len(w.values) {
		w.count++
	}
}

func (w *window) Full() bool {
	return w.count == len(w.values)
}

func (w *window) Len() int {
	return w.count
}

// Values returns the buffered values from oldest to newest.
func (w *window) Values() []float64 {
	out := make([]float64, w.count)
	start := 0
	if w.Full() {
		start = w.head
	}
	for i := 0; i < w.count; i++ {
		out[i] = w.values[(start+i)%len(w.values)]
	}
	return out
}
