package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposal_Validate(t *testing.T) {
	tt := []struct {
		name     string
		proposal Proposal
		valid    bool
	}{
		{"buy", Proposal{Side: SideBuy, Price: 10, Size: 1}, true},
		{"sell", Proposal{Side: SideSell, Price: 10, Size: 1}, true},
		{"zero size", Proposal{Side: SideBuy, Price: 10}, false},
		{"negative price", Proposal{Side: SideBuy, Price: -1, Size: 1}, false},
		{"unknown side", Proposal{Side: "HOLD", Price: 10, Size: 1}, false},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.proposal.Validate()
			if tc.valid {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProposal))
		})
	}
}

func TestMetadata_ReadOnly(t *testing.T) {
	source := map[string]string{"user": "alice"}
	meta := NewMetadata(source)
	source["user"] = "mallory"

	value, ok := meta.Get("user")
	require.True(t, ok)
	assert.Equal(t, "alice", value)

	exported := meta.Map()
	exported["user"] = "mallory"
	value, _ = meta.Get("user")
	assert.Equal(t, "alice", value)

	extended := meta.With("session", "s-1")
	assert.Equal(t, 1, meta.Len())
	assert.Equal(t, []string{"session", "user"}, extended.Keys())

	merged := meta.Merge(NewMetadata(map[string]string{"user": "bob"}))
	value, _ = merged.Get("user")
	assert.Equal(t, "bob", value)
}

type testContext struct{ Value float64 }

func (testContext) Strategy() string { return "test" }

func TestContextAs(t *testing.T) {
	var ctx StrategyContext = testContext{Value: 42}

	value, ok := ContextAs[testContext](ctx)
	require.True(t, ok)
	assert.Equal(t, 42.0, value.Value)

	_, ok = ContextAs[*testContext](ctx)
	assert.False(t, ok)

	_, ok = ContextAs[testContext](nil)
	assert.False(t, ok)
}

func TestHistory(t *testing.T) {
	history := NewHistory(3)
	_, ok := history.Last()
	require.False(t, ok)

	start := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		history.Push(Candle{Time: start.Add(time.Duration(i) * time.Second), Close: float64(i)})
	}

	assert.Equal(t, 3, history.Len())
	last, ok := history.Last()
	require.True(t, ok)
	assert.Equal(t, 4.0, last.Close)

	candles := history.Candles()
	require.Len(t, candles, 3)
	assert.Equal(t, 2.0, candles[0].Close)
	assert.Equal(t, 3.0, candles[1].Close)
	assert.Equal(t, 4.0, candles[2].Close)
}
