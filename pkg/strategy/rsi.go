package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/enorith/hookbot/pkg/model"
)

// DynamicThresholds widens the oversold/overbought band when the recent range is large.
// shift = min(MaxShift, Scale * (highest high - lowest low) / close) over Period candles.
type DynamicThresholds struct {
	Enabled  bool
	Period   int
	Scale    float64
	MaxShift float64
}

type RSIConfig struct {
	Period     int
	Oversold   float64
	Overbought float64
	Size       float64
	Dynamic    DynamicThresholds
}

// RSIContext carries the indicator values and the thresholds that were applied to the decision.
type RSIContext struct {
	RSI        float64
	PrevRSI    float64
	Oversold   float64
	Overbought float64
	Dynamic    bool
	Volatility float64
	Shift      float64
}

func (RSIContext) Strategy() string { return "rsi" }

// RSI is a Wilder smoothed relative strength index updated once per sealed candle.
type RSI struct {
	pair   string
	config RSIConfig

	lastTime time.Time
	started  bool

	prevClose float64
	changes   int
	avgGain   float64
	avgLoss   float64
	value     float64
	ready     bool

	highs *window
	lows  *window
}

func NewRSI(pair string, config RSIConfig) (*RSI, error) {
	if config.Period <= 0 {
		return nil, fmt.Errorf("%w: rsi period must be positive, got %d", model.ErrInvalidConfiguration, config.Period)
	}
	if config.Size <= 0 {
		return nil, fmt.Errorf("%w: rsi size must be positive", model.ErrInvalidConfiguration)
	}
	if err := validateThresholds(config.Oversold, config.Overbought); err != nil {
		return nil, err
	}

	strategy := &RSI{pair: pair, config: config}
	if config.Dynamic.Enabled {
		if config.Dynamic.Period <= 0 {
			return nil, fmt.Errorf("%w: dynamic threshold period must be positive", model.ErrInvalidConfiguration)
		}
		if config.Dynamic.Scale < 0 || config.Dynamic.MaxShift < 0 {
			return nil, fmt.Errorf("%w: dynamic threshold scale and max shift cannot be negative", model.ErrInvalidConfiguration)
		}
		strategy.highs = newWindow(config.Dynamic.Period)
		strategy.lows = newWindow(config.Dynamic.Period)
	}
	return strategy, nil
}

func (r *RSI) Name() string { return "RSI" }

func (r *RSI) WarmupPeriod() int {
	warmup := r.config.Period + 2
	if r.config.Dynamic.Enabled && r.config.Dynamic.Period > warmup {
		warmup = r.config.Dynamic.Period
	}
	return warmup
}

// Value returns the latest RSI and whether enough candles were seen to compute it.
func (r *RSI) Value() (float64, bool) {
	return r.value, r.ready
}

func (r *RSI) Evaluate(history *model.History) *Signal {
	candle, ok := history.Last()
	if !ok || (r.started && !candle.Time.After(r.lastTime)) {
		return nil
	}

	prev, hadPrev := r.value, r.ready
	r.update(candle)

	oversold, overbought, volatility, shift := r.thresholds(candle)
	if !hadPrev || !r.ready {
		return nil
	}

	side, ok := crossed(prev, r.value, oversold, overbought)
	if !ok {
		return nil
	}

	reason := "rsi crossed below oversold"
	if side == model.SideSell {
		reason = "rsi crossed above overbought"
	}

	return &Signal{
		Proposal: model.Proposal{
			Pair:  r.pair,
			Side:  side,
			Price: candle.Close,
			Size:  r.config.Size,
			Time:  candle.Time,
		},
		Context: RSIContext{
			RSI:        r.value,
			PrevRSI:    prev,
			Oversold:   oversold,
			Overbought: overbought,
			Dynamic:    r.config.Dynamic.Enabled,
			Volatility: volatility,
			Shift:      shift,
		},
		Metadata: model.NewMetadata(map[string]string{"reason": reason}),
	}
}

func (r *RSI) update(candle model.Candle) {
	first := !r.started
	r.started = true
	r.lastTime = candle.Time

	if r.highs != nil {
		r.highs.Push(candle.High)
		r.lows.Push(candle.Low)
	}

	if first {
		r.prevClose = candle.Close
		return
	}

	change := candle.Close - r.prevClose
	r.prevClose = candle.Close
	gain, loss := math.Max(change, 0), math.Max(-change, 0)

	period := float64(r.config.Period)
	r.changes++
	switch {
	case r.changes < r.config.Period:
		r.avgGain += gain
		r.avgLoss += loss
		return
	case r.changes == r.config.Period:
		r.avgGain = (r.avgGain + gain) / period
		r.avgLoss = (r.avgLoss + loss) / period
	default:
		r.avgGain = (r.avgGain*(period-1) + gain) / period
		r.avgLoss = (r.avgLoss*(period-1) + loss) / period
	}

	r.ready = true
	switch {
	case r.avgLoss == 0 && r.avgGain == 0:
		r.value = 50
	case r.avgLoss == 0:
		r.value = 100
	default:
		r.value = 100 - 100/(1+r.avgGain/r.avgLoss)
	}
}

func (r *RSI) thresholds(candle model.Candle) (oversold, overbought, volatility, shift float64) {
	oversold, overbought = r.config.Oversold, r.config.Overbought
	if !r.config.Dynamic.Enabled || !r.highs.Full() || candle.Close <= 0 {
		return oversold, overbought, 0, 0
	}

	highest := highestOf(r.highs.Values())
	lowest := lowestOf(r.lows.Values())
	volatility = (highest - lowest) / candle.Close
	shift = math.Min(r.config.Dynamic.MaxShift, r.config.Dynamic.Scale*volatility)

	return math.Max(0, oversold-shift), math.Min(100, overbought+shift), volatility, shift
}

func highestOf(values []float64) float64 {
	if len(values) < 2 {
		return values[0]
	}
	return talib.Max(values, len(values))[len(values)-1]
}

func lowestOf(values []float64) float64 {
	if len(values) < 2 {
		return values[0]
	}
	return talib.Min(values, len(values))[len(values)-1]
}
