package order

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enorith/hookbot/pkg/model"
)

func buy(size, price float64) model.Proposal {
	return model.Proposal{Pair: "BTCUSDT", Side: model.SideBuy, Size: size, Price: price}
}

func sell(size, price float64) model.Proposal {
	return model.Proposal{Pair: "BTCUSDT", Side: model.SideSell, Size: size, Price: price}
}

func TestTracker_WeightedAverageEntry(t *testing.T) {
	tracker := NewTracker("BTCUSDT", 10000)

	_, err := tracker.Execute(buy(1, 100))
	require.NoError(t, err)
	trade, err := tracker.Execute(buy(3, 120))
	require.NoError(t, err)

	assert.NotEmpty(t, trade.ID)
	assert.Equal(t, 0.0, trade.RealizedPnL)
	assert.Equal(t, 4.0, trade.Position.Size)
	assert.Equal(t, 115.0, trade.Position.AvgEntryPrice)
	assert.Equal(t, 10000.0-100-360, tracker.Cash())
}

func TestTracker_RealizedOnReduce(t *testing.T) {
	tracker := NewTracker("BTCUSDT", 1000)

	_, err := tracker.Execute(buy(2, 100))
	require.NoError(t, err)
	trade, err := tracker.Execute(sell(0.5, 110))
	require.NoError(t, err)

	assert.Equal(t, 5.0, trade.RealizedPnL)
	position := tracker.Position()
	assert.Equal(t, 1.5, position.Size)
	assert.Equal(t, 100.0, position.AvgEntryPrice, "reducing keeps the entry price")
	assert.Equal(t, 5.0, position.RealizedPnL)

	trade, err = tracker.Execute(sell(1.5, 90))
	require.NoError(t, err)
	assert.Equal(t, -15.0, trade.RealizedPnL)
	position = tracker.Position()
	assert.True(t, position.Flat())
	assert.Equal(t, 0.0, position.AvgEntryPrice)
	assert.Equal(t, -10.0, position.RealizedPnL)
	assert.Equal(t, 990.0, tracker.Cash())
}

func TestTracker_FlipAndShort(t *testing.T) {
	tracker := NewTracker("BTCUSDT", 0)

	_, err := tracker.Execute(buy(1, 100))
	require.NoError(t, err)
	trade, err := tracker.Execute(sell(3, 110))
	require.NoError(t, err)

	assert.Equal(t, 10.0, trade.RealizedPnL)
	assert.Equal(t, -2.0, trade.Position.Size)
	assert.Equal(t, 110.0, trade.Position.AvgEntryPrice)

	tracker.Mark(100)
	position := tracker.Position()
	assert.Equal(t, 20.0, position.UnrealizedPnL, "short gains when price drops")

	trade, err = tracker.Execute(buy(2, 105))
	require.NoError(t, err)
	assert.Equal(t, 10.0, trade.RealizedPnL)
	assert.Equal(t, 20.0, tracker.Position().RealizedPnL)
}

func TestTracker_Unrealized(t *testing.T) {
	tracker := NewTracker("BTCUSDT", 1000)
	_, err := tracker.Execute(buy(2, 100))
	require.NoError(t, err)

	tracker.Mark(130)
	position := tracker.Position()
	assert.Equal(t, 60.0, position.UnrealizedPnL)
	assert.Equal(t, 130.0, position.MarkPrice)
	assert.Equal(t, 1060.0, tracker.Equity())
}

func TestTracker_RejectsInvalidAtomically(t *testing.T) {
	tracker := NewTracker("BTCUSDT", 1000)
	_, err := tracker.Execute(buy(1, 100))
	require.NoError(t, err)
	before := tracker.Position()

	for _, p := range []model.Proposal{
		buy(0, 100),
		buy(1, -5),
		{Pair: "BTCUSDT", Side: "HOLD", Size: 1, Price: 1},
		{Pair: "ETHUSDT", Side: model.SideBuy, Size: 1, Price: 1},
	} {
		_, err := tracker.Execute(p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrInvalidProposal))
	}

	assert.Equal(t, before, tracker.Position())
	assert.Len(t, tracker.Trades(), 1)
	assert.Equal(t, 900.0, tracker.Cash())
}

func TestTracker_PnLIndependentOfOrdering(t *testing.T) {
	// opens and closes that never overlap the same exposure in a different way
	sequences := [][]model.Proposal{
		{buy(1, 100), buy(1, 120), sell(2, 130)},
		{buy(1, 120), buy(1, 100), sell(2, 130)},
		{buy(1, 120), buy(1, 100), sell(1, 130), sell(1, 130)},
	}

	var results []model.Position
	for _, sequence := range sequences {
		tracker := NewTracker("BTCUSDT", 0)
		for _, p := range sequence {
			_, err := tracker.Execute(p)
			require.NoError(t, err)
		}
		results = append(results, tracker.Position())
	}

	for _, position := range results {
		assert.Equal(t, 40.0, position.RealizedPnL)
		assert.True(t, position.Flat())
	}
}
