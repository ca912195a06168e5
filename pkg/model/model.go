package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrOutOfOrderTick       = errors.New("out of order tick")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidProposal      = errors.New("invalid proposal")
)

type Tick struct {
	Pair   string
	Time   time.Time
	Price  float64
	Volume float64
}

// Candle is an OHLCV bucket starting at Time. Complete candles are sealed and never change.
type Candle struct {
	Pair     string
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Trades   int
	Complete bool
}

func (c Candle) String() string {
	return fmt.Sprintf("[%s] %s | O: %f, H: %f, L: %f, C: %f, V: %f",
		c.Time.UTC().Format(time.RFC3339), c.Pair, c.Open, c.High, c.Low, c.Close, c.Volume)
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) String() string {
	return string(s)
}

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// Proposal is a trade suggested by a strategy. Only pre-trade hooks may replace it.
type Proposal struct {
	Pair  string
	Side  Side
	Price float64
	Size  float64
	Time  time.Time
}

func (p Proposal) Notional() float64 {
	return p.Price * p.Size
}

func (p Proposal) Validate() error {
	if p.Side != SideBuy && p.Side != SideSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidProposal, p.Side)
	}
	if p.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %f", ErrInvalidProposal, p.Size)
	}
	if p.Price <= 0 {
		return fmt.Errorf("%w: price must be positive, got %f", ErrInvalidProposal, p.Price)
	}
	return nil
}

func (p Proposal) String() string {
	return fmt.Sprintf("%s %s %f @ %f", p.Side, p.Pair, p.Size, p.Price)
}

// Position is the signed exposure of one pair. Size is negative for shorts.
type Position struct {
	Pair          string
	Size          float64
	AvgEntryPrice float64
	RealizedPnL   float64
	UnrealizedPnL float64
	MarkPrice     float64
}

func (p Position) Flat() bool {
	return p.Size == 0
}

type ExecutedTrade struct {
	ID          string
	Pair        string
	Side        Side
	Price       float64
	Size        float64
	Time        time.Time
	RealizedPnL float64
	Position    Position
}

// Rejection marks a proposal that never reached execution.
type Rejection struct {
	Reason string
	Hook   string
	Err    error
}

func (r Rejection) String() string {
	if r.Hook == "" {
		return r.Reason
	}
	return fmt.Sprintf("%s: %s", r.Hook, r.Reason)
}

// Outcome is what post-trade observers receive for every proposal that passed the gate or was stopped by it.
type Outcome struct {
	Candle    Candle
	Proposal  Proposal
	Context   StrategyContext
	Metadata  Metadata
	Trade     *ExecutedTrade
	Rejection *Rejection
	Failures  []error
}

func (o Outcome) Executed() bool {
	return o.Trade != nil
}

func (o Outcome) Rejected() bool {
	return o.Rejection != nil
}
