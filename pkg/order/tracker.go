// Package order applies approved proposals to a position ledger.
package order

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/enorith/hookbot/pkg/model"
)

// Tracker keeps a single pair position with weighted average entry accounting.
// Amounts are kept as decimals so that P&L does not drift with the number of trades.
type Tracker struct {
	mu sync.RWMutex

	pair        string
	initialCash decimal.Decimal
	cash        decimal.Decimal

	size     decimal.Decimal // signed, negative for shorts
	avgEntry decimal.Decimal
	realized decimal.Decimal
	mark     decimal.Decimal

	trades []model.ExecutedTrade
}

func NewTracker(pair string, initialCash float64) *Tracker {
	cash := decimal.NewFromFloat(initialCash)
	return &Tracker{
		pair:        pair,
		initialCash: cash,
		cash:        cash,
	}
}

// Execute fills the whole proposal at its price. Nothing is changed when an error is returned.
func (t *Tracker) Execute(proposal model.Proposal) (model.ExecutedTrade, error) {
	if err := proposal.Validate(); err != nil {
		return model.ExecutedTrade{}, err
	}
	if proposal.Pair != "" && t.pair != "" && proposal.Pair != t.pair {
		return model.ExecutedTrade{}, fmt.Errorf("%w: pair %s does not match tracker %s",
			model.ErrInvalidProposal, proposal.Pair, t.pair)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	price := decimal.NewFromFloat(proposal.Price)
	qty := decimal.NewFromFloat(proposal.Size)
	delta := qty
	if proposal.Side == model.SideSell {
		delta = qty.Neg()
	}

	size, avg, realized := apply(t.size, t.avgEntry, price, delta)

	t.size = size
	t.avgEntry = avg
	t.realized = t.realized.Add(realized)
	t.cash = t.cash.Sub(delta.Mul(price))
	if t.mark.IsZero() {
		t.mark = price
	}

	trade := model.ExecutedTrade{
		ID:          uuid.NewString(),
		Pair:        t.pair,
		Side:        proposal.Side,
		Price:       proposal.Price,
		Size:        proposal.Size,
		Time:        proposal.Time,
		RealizedPnL: realized.InexactFloat64(),
		Position:    t.position(),
	}
	t.trades = append(t.trades, trade)
	return trade, nil
}

// apply adds a signed delta at price to a position and returns the new size,
// average entry and the P&L realized by the part of delta that closed exposure.
func apply(size, avg, price, delta decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	newSize := size.Add(delta)

	// opening or increasing
	if size.IsZero() || size.Sign() == delta.Sign() {
		cost := avg.Mul(size.Abs()).Add(price.Mul(delta.Abs()))
		return newSize, cost.Div(newSize.Abs()), decimal.Zero
	}

	closed := decimal.Min(size.Abs(), delta.Abs())
	realized := price.Sub(avg).Mul(closed)
	if size.IsNegative() {
		realized = realized.Neg()
	}

	switch {
	case newSize.IsZero():
		return newSize, decimal.Zero, realized
	case newSize.Sign() != size.Sign():
		// flipped, the remainder opens at the trade price
		return newSize, price, realized
	}
	return newSize, avg, realized
}

// Mark revalues the open position against price, normally the latest candle close.
func (t *Tracker) Mark(price float64) {
	t.mu.Lock()
	t.mark = decimal.NewFromFloat(price)
	t.mu.Unlock()
}

func (t *Tracker) Position() model.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.position()
}

func (t *Tracker) position() model.Position {
	unrealized := decimal.Zero
	if !t.size.IsZero() && !t.mark.IsZero() {
		unrealized = t.mark.Sub(t.avgEntry).Mul(t.size)
	}
	return model.Position{
		Pair:          t.pair,
		Size:          t.size.InexactFloat64(),
		AvgEntryPrice: t.avgEntry.InexactFloat64(),
		RealizedPnL:   t.realized.InexactFloat64(),
		UnrealizedPnL: unrealized.InexactFloat64(),
		MarkPrice:     t.mark.InexactFloat64(),
	}
}

func (t *Tracker) InitialCash() float64 {
	return t.initialCash.InexactFloat64()
}

func (t *Tracker) Cash() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cash.InexactFloat64()
}

// Equity is cash plus the marked value of the open position.
func (t *Tracker) Equity() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cash.Add(t.size.Mul(t.mark)).InexactFloat64()
}

func (t *Tracker) Trades() []model.ExecutedTrade {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.ExecutedTrade, len(t.trades))
	copy(out, t.trades)
	return out
}
