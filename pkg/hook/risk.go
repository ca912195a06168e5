package hook

import (
	"fmt"

	"github.com/enorith/hookbot/pkg/model"
)

// SizeCap shrinks proposals larger than Max.
type SizeCap struct {
	Max float64
}

func (SizeCap) Name() string { return "size-cap" }

func (s SizeCap) PreTrade(proposal model.Proposal, _ model.StrategyContext, _ model.Metadata) (Decision, error) {
	if s.Max <= 0 || proposal.Size <= s.Max {
		return Approve(), nil
	}
	proposal.Size = s.Max
	return Modify(proposal), nil
}

// PriceCeiling rejects proposals priced above Max.
type PriceCeiling struct {
	Max float64
}

func (PriceCeiling) Name() string { return "price-ceiling" }

func (c PriceCeiling) PreTrade(proposal model.Proposal, _ model.StrategyContext, _ model.Metadata) (Decision, error) {
	if c.Max > 0 && proposal.Price > c.Max {
		return Reject(fmt.Sprintf("price %.2f above ceiling %.2f", proposal.Price, c.Max)), nil
	}
	return Approve(), nil
}

// PriceFloor rejects proposals priced below Min.
type PriceFloor struct {
	Min float64
}

func (PriceFloor) Name() string { return "price-floor" }

func (f PriceFloor) PreTrade(proposal model.Proposal, _ model.StrategyContext, _ model.Metadata) (Decision, error) {
	if f.Min > 0 && proposal.Price < f.Min {
		return Reject(fmt.Sprintf("price %.2f below floor %.2f", proposal.Price, f.Min)), nil
	}
	return Approve(), nil
}

// NotionalLimit rejects proposals whose price * size exceeds MaxNotional.
type NotionalLimit struct {
	MaxNotional float64
}

func (NotionalLimit) Name() string { return "notional-limit" }

func (l NotionalLimit) Allow(notional float64) bool {
	return l.MaxNotional <= 0 || notional <= l.MaxNotional
}

func (l NotionalLimit) PreTrade(proposal model.Proposal, _ model.StrategyContext, _ model.Metadata) (Decision, error) {
	if !l.Allow(proposal.Notional()) {
		return Reject(fmt.Sprintf("notional %.2f above limit %.2f", proposal.Notional(), l.MaxNotional)), nil
	}
	return Approve(), nil
}
