package strategy

import (
	"fmt"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/enorith/hookbot/pkg/model"
)

type StochasticConfig struct {
	KPeriod       int
	DPeriod       int
	Oversold      float64
	Overbought    float64
	Size          float64
	ATRPeriod     int
	ATRMultiplier float64
}

// StochasticContext exposes %K, %D and an ATR based protective stop for the proposal.
type StochasticContext struct {
	K          float64
	D          float64
	PrevK      float64
	Oversold   float64
	Overbought float64
	ATR        float64
	StopPrice  float64
}

func (StochasticContext) Strategy() string { return "stochastic" }

type Stochastic struct {
	pair   string
	config StochasticConfig

	lastTime time.Time
	started  bool

	highs *window
	lows  *window
	ks    *window

	atrHighs  *window
	atrLows   *window
	atrCloses *window

	k      float64
	d      float64
	kReady bool
}

func NewStochastic(pair string, config StochasticConfig) (*Stochastic, error) {
	if config.KPeriod <= 0 || config.DPeriod <= 0 {
		return nil, fmt.Errorf("%w: stochastic periods must be positive, got k=%d d=%d",
			model.ErrInvalidConfiguration, config.KPeriod, config.DPeriod)
	}
	if config.ATRPeriod < 0 || config.ATRMultiplier < 0 {
		return nil, fmt.Errorf("%w: atr settings cannot be negative", model.ErrInvalidConfiguration)
	}
	if config.Size <= 0 {
		return nil, fmt.Errorf("%w: stochastic size must be positive", model.ErrInvalidConfiguration)
	}
	if err := validateThresholds(config.Oversold, config.Overbought); err != nil {
		return nil, err
	}

	strategy := &Stochastic{
		pair:   pair,
		config: config,
		highs:  newWindow(config.KPeriod),
		lows:   newWindow(config.KPeriod),
		ks:     newWindow(config.DPeriod),
	}
	if config.ATRPeriod > 0 {
		strategy.atrHighs = newWindow(config.ATRPeriod + 1)
		strategy.atrLows = newWindow(config.ATRPeriod + 1)
		strategy.atrCloses = newWindow(config.ATRPeriod + 1)
	}
	return strategy, nil
}

func (s *Stochastic) Name() string { return "Stochastic" }

// WarmupPeriod covers the longest of the %K crossover, %D and ATR windows.
func (s *Stochastic) WarmupPeriod() int {
	warmup := s.config.KPeriod + 1
	if d := s.config.KPeriod + s.config.DPeriod - 1; d > warmup {
		warmup = d
	}
	if atr := s.config.ATRPeriod + 1; atr > warmup {
		warmup = atr
	}
	return warmup
}

// Value returns the latest %K and %D. %D is zero until DPeriod values of %K exist.
func (s *Stochastic) Value() (k, d float64, ready bool) {
	return s.k, s.d, s.kReady
}

func (s *Stochastic) Evaluate(history *model.History) *Signal {
	candle, ok := history.Last()
	if !ok || (s.started && !candle.Time.After(s.lastTime)) {
		return nil
	}

	prevK, hadPrev := s.k, s.kReady
	s.update(candle)
	if !hadPrev || !s.kReady {
		return nil
	}

	side, ok := crossed(prevK, s.k, s.config.Oversold, s.config.Overbought)
	if !ok {
		return nil
	}

	atr := s.atr()
	stop := 0.0
	if atr > 0 {
		stop = candle.Close - side.Sign()*atr*s.config.ATRMultiplier
	}

	return &Signal{
		Proposal: model.Proposal{
			Pair:  s.pair,
			Side:  side,
			Price: candle.Close,
			Size:  s.config.Size,
			Time:  candle.Time,
		},
		Context: StochasticContext{
			K:          s.k,
			D:          s.d,
			PrevK:      prevK,
			Oversold:   s.config.Oversold,
			Overbought: s.config.Overbought,
			ATR:        atr,
			StopPrice:  stop,
		},
		Metadata: model.NewMetadata(map[string]string{"reason": fmt.Sprintf("%%K crossed %s", side)}),
	}
}

func (s *Stochastic) update(candle model.Candle) {
	s.started = true
	s.lastTime = candle.Time

	s.highs.Push(candle.High)
	s.lows.Push(candle.Low)
	if s.atrHighs != nil {
		s.atrHighs.Push(candle.High)
		s.atrLows.Push(candle.Low)
		s.atrCloses.Push(candle.Close)
	}

	if !s.highs.Full() {
		return
	}

	highest := highestOf(s.highs.Values())
	lowest := lowestOf(s.lows.Values())
	if highest == lowest {
		s.k = 50
	} else {
		s.k = (candle.Close - lowest) / (highest - lowest) * 100
	}
	s.kReady = true

	s.ks.Push(s.k)
	if s.ks.Full() {
		s.d = talib.Sma(s.ks.Values(), s.config.DPeriod)[s.config.DPeriod-1]
	}
}

func (s *Stochastic) atr() float64 {
	if s.atrCloses == nil || !s.atrCloses.Full() {
		return 0
	}
	values := talib.Atr(s.atrHighs.Values(), s.atrLows.Values(), s.atrCloses.Values(), s.config.ATRPeriod)
	return values[len(values)-1]
}
