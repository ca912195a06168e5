package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enorith/hookbot/pkg/model"
)

type fakeContext struct{}

func (fakeContext) Strategy() string { return "fake" }

func TestStorage_PostTrade(t *testing.T) {
	storage, err := FromMemory()
	require.NoError(t, err)
	defer storage.Close()

	proposal := model.Proposal{Pair: "BTCUSDT", Side: model.SideBuy, Price: 100, Size: 2, Time: time.Unix(10, 0)}
	trade := model.ExecutedTrade{
		ID:       "t-1",
		Pair:     "BTCUSDT",
		Side:     model.SideBuy,
		Price:    100,
		Size:     2,
		Time:     time.Unix(10, 0),
		Position: model.Position{Size: 2},
	}

	require.NoError(t, storage.PostTrade(model.Outcome{Proposal: proposal, Trade: &trade, Context: fakeContext{}}))
	require.NoError(t, storage.PostTrade(model.Outcome{
		Proposal:  proposal,
		Rejection: &model.Rejection{Hook: "price-ceiling", Reason: "too high"},
	}))
	require.NoError(t, storage.PostTrade(model.Outcome{Proposal: proposal}))

	trades, err := storage.Trades()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "t-1", trades[0].ID)
	assert.Equal(t, model.SideBuy, trades[0].Side)
	assert.Equal(t, 2.0, trades[0].Position.Size)
	assert.True(t, trades[0].Time.Equal(time.Unix(10, 0)))

	rejections, err := storage.Rejections()
	require.NoError(t, err)
	require.Len(t, rejections, 1)
	assert.Equal(t, "price-ceiling", rejections[0].Rejection.Hook)
	assert.Equal(t, "too high", rejections[0].Rejection.Reason)
	assert.Equal(t, 100.0, rejections[0].Proposal.Price)
}

func TestStorage_DuplicateTrade(t *testing.T) {
	storage, err := FromMemory()
	require.NoError(t, err)
	defer storage.Close()

	trade := model.ExecutedTrade{ID: "dup", Pair: "BTCUSDT", Side: model.SideSell, Price: 1, Size: 1}
	require.NoError(t, storage.SaveTrade(trade, "rsi"))
	assert.Error(t, storage.SaveTrade(trade, "rsi"))
}

func TestStorage_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	storage, err := FromFile(path)
	require.NoError(t, err)
	require.NoError(t, storage.SaveTrade(model.ExecutedTrade{ID: "a", Pair: "X", Side: model.SideBuy, Price: 1, Size: 1}, ""))
	require.NoError(t, storage.Close())

	reopened, err := FromFile(path)
	require.NoError(t, err)
	defer reopened.Close()

	trades, err := reopened.Trades()
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}
