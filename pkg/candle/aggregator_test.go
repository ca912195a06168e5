package candle

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enorith/hookbot/pkg/model"
)

func tick(sec float64, price, volume float64) model.Tick {
	return model.Tick{
		Pair:   "BTCUSDT",
		Time:   time.Unix(0, int64(sec*float64(time.Second))),
		Price:  price,
		Volume: volume,
	}
}

func TestNewAggregator_InvalidWidth(t *testing.T) {
	_, err := NewAggregator("BTCUSDT", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidConfiguration))
}

func TestAggregator_Push(t *testing.T) {
	agg, err := NewAggregator("BTCUSDT", time.Second)
	require.NoError(t, err)

	for _, tk := range []model.Tick{tick(10.2, 100, 1), tick(10.5, 105, 2), tick(10.7, 98, 1), tick(10.9, 101, 3)} {
		sealed, err := agg.Push(tk)
		require.NoError(t, err)
		require.Nil(t, sealed)
	}

	current, ok := agg.Current()
	require.True(t, ok)
	assert.False(t, current.Complete)
	assert.Equal(t, time.Unix(10, 0).UTC(), current.Time)

	sealed, err := agg.Push(tick(11.1, 102, 1))
	require.NoError(t, err)
	require.NotNil(t, sealed)

	assert.True(t, sealed.Complete)
	assert.Equal(t, time.Unix(10, 0).UTC(), sealed.Time)
	assert.Equal(t, 100.0, sealed.Open)
	assert.Equal(t, 105.0, sealed.High)
	assert.Equal(t, 98.0, sealed.Low)
	assert.Equal(t, 101.0, sealed.Close)
	assert.Equal(t, 7.0, sealed.Volume)
	assert.Equal(t, 4, sealed.Trades)

	last, ok := agg.Flush()
	require.True(t, ok)
	assert.True(t, last.Complete)
	assert.Equal(t, time.Unix(11, 0).UTC(), last.Time)
	assert.Equal(t, 102.0, last.Close)

	_, ok = agg.Flush()
	assert.False(t, ok)
}

func TestAggregator_FirstTickAligned(t *testing.T) {
	agg, err := NewAggregator("BTCUSDT", time.Minute)
	require.NoError(t, err)

	_, err = agg.Push(tick(125, 1, 1))
	require.NoError(t, err)

	current, ok := agg.Current()
	require.True(t, ok)
	assert.Equal(t, time.Unix(120, 0).UTC(), current.Time)
}

func TestAggregator_OutOfOrder(t *testing.T) {
	agg, err := NewAggregator("BTCUSDT", time.Second)
	require.NoError(t, err)

	_, err = agg.Push(tick(20.5, 100, 1))
	require.NoError(t, err)

	// earlier inside the same bucket is accepted
	_, err = agg.Push(tick(20.1, 99, 1))
	require.NoError(t, err)

	_, err = agg.Push(tick(19.9, 98, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrOutOfOrderTick))

	agg.Reset()
	_, err = agg.Push(tick(19.9, 98, 1))
	require.NoError(t, err)
}

func TestAggregator_SealedIntervalsStayClosed(t *testing.T) {
	agg, err := NewAggregator("BTCUSDT", time.Second)
	require.NoError(t, err)

	_, err = agg.Push(tick(10.2, 100, 1))
	require.NoError(t, err)
	first, ok := agg.Flush()
	require.True(t, ok)

	// same bucket as the flushed candle
	_, err = agg.Push(tick(10.5, 101, 1))
	assert.True(t, errors.Is(err, model.ErrOutOfOrderTick))

	// earlier bucket
	_, err = agg.Push(tick(5, 99, 1))
	assert.True(t, errors.Is(err, model.ErrOutOfOrderTick))

	_, err = agg.Push(tick(30, 102, 1))
	require.NoError(t, err)
	second, ok := agg.Flush()
	require.True(t, ok)
	assert.True(t, second.Time.After(first.Time))

	_, err = agg.Push(tick(5, 99, 1))
	assert.True(t, errors.Is(err, model.ErrOutOfOrderTick))
	_, ok = agg.Current()
	assert.False(t, ok)

	agg.Reset()
	_, err = agg.Push(tick(5, 99, 1))
	require.NoError(t, err)
}

func TestAggregator_GapStartsAlignedBucket(t *testing.T) {
	agg, err := NewAggregator("BTCUSDT", time.Second)
	require.NoError(t, err)

	_, err = agg.Push(tick(1.5, 100, 1))
	require.NoError(t, err)
	sealed, err := agg.Push(tick(5.2, 101, 1))
	require.NoError(t, err)
	require.NotNil(t, sealed)
	assert.Equal(t, time.Unix(1, 0).UTC(), sealed.Time)

	current, _ := agg.Current()
	assert.Equal(t, time.Unix(5, 0).UTC(), current.Time)
}

func TestAggregator_Invariants(t *testing.T) {
	agg, err := NewAggregator("BTCUSDT", 3*time.Second)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	ts := 1000.0
	price := 100.0
	var candles []model.Candle
	for i := 0; i < 2000; i++ {
		ts += rng.Float64() * 1.5
		price += rng.Float64()*2 - 1
		sealed, err := agg.Push(tick(ts, price, rng.Float64()))
		require.NoError(t, err)
		if sealed != nil {
			candles = append(candles, *sealed)
		}
	}
	if last, ok := agg.Flush(); ok {
		candles = append(candles, *last)
	}

	require.NotEmpty(t, candles)
	for i, c := range candles {
		assert.GreaterOrEqual(t, c.High, c.Open)
		assert.GreaterOrEqual(t, c.High, c.Close)
		assert.LessOrEqual(t, c.Low, c.Open)
		assert.LessOrEqual(t, c.Low, c.Close)
		assert.Equal(t, Align(c.Time, 3*time.Second), c.Time)
		if i > 0 {
			assert.True(t, c.Time.After(candles[i-1].Time), "candles must be strictly increasing")
		}
	}
}
