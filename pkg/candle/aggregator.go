// Package candle folds a tick stream into fixed width OHLCV candles.
package candle

import (
	"fmt"
	"time"

	"github.com/enorith/hookbot/pkg/model"
)

// Aggregator builds candles for a single pair. It is not safe for concurrent use.
type Aggregator struct {
	pair    string
	width   time.Duration
	current *model.Candle

	// start of the last sealed bucket, valid when sealed is set
	lastSealed time.Time
	sealed     bool
}

func NewAggregator(pair string, width time.Duration) (*Aggregator, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: candle width must be positive, got %s", model.ErrInvalidConfiguration, width)
	}
	return &Aggregator{pair: pair, width: width}, nil
}

func (a *Aggregator) Width() time.Duration {
	return a.width
}

// Align returns the start of the bucket containing t, aligned to the Unix epoch.
func Align(t time.Time, width time.Duration) time.Time {
	ns := t.UnixNano()
	offset := ns % int64(width)
	if offset < 0 {
		offset += int64(width)
	}
	return time.Unix(0, ns-offset).UTC()
}

// Push folds a tick into the in-progress candle. When the tick belongs to a later
// bucket the previous candle is sealed and returned.
func (a *Aggregator) Push(tick model.Tick) (*model.Candle, error) {
	start := Align(tick.Time, a.width)

	if a.sealed && !start.After(a.lastSealed) {
		return nil, fmt.Errorf("%w: tick at %s belongs to sealed interval %s",
			model.ErrOutOfOrderTick, tick.Time.UTC().Format(time.RFC3339Nano), a.lastSealed.Format(time.RFC3339Nano))
	}

	if a.current == nil {
		a.open(start, tick)
		return nil, nil
	}

	if tick.Time.Before(a.current.Time) {
		return nil, fmt.Errorf("%w: tick at %s precedes interval %s",
			model.ErrOutOfOrderTick, tick.Time.UTC().Format(time.RFC3339Nano), a.current.Time.Format(time.RFC3339Nano))
	}

	if start.After(a.current.Time) {
		sealed := a.seal()
		a.open(start, tick)
		return sealed, nil
	}

	c := a.current
	if tick.Price > c.High {
		c.High = tick.Price
	}
	if tick.Price < c.Low {
		c.Low = tick.Price
	}
	c.Close = tick.Price
	c.Volume += tick.Volume
	c.Trades++
	return nil, nil
}

// Current returns a copy of the in-progress candle.
func (a *Aggregator) Current() (model.Candle, bool) {
	if a.current == nil {
		return model.Candle{}, false
	}
	return *a.current, true
}

// Flush seals the trailing partial candle at the end of a stream.
func (a *Aggregator) Flush() (*model.Candle, bool) {
	if a.current == nil {
		return nil, false
	}
	return a.seal(), true
}

// Reset drops the in-progress candle and forgets sealed intervals so a stream can restart.
func (a *Aggregator) Reset() {
	a.current = nil
	a.sealed = false
	a.lastSealed = time.Time{}
}

func (a *Aggregator) open(start time.Time, tick model.Tick) {
	pair := tick.Pair
	if pair == "" {
		pair = a.pair
	}
	a.current = &model.Candle{
		Pair:   pair,
		Time:   start,
		Open:   tick.Price,
		High:   tick.Price,
		Low:    tick.Price,
		Close:  tick.Price,
		Volume: tick.Volume,
		Trades: 1,
	}
}

func (a *Aggregator) seal() *model.Candle {
	sealed := *a.current
	sealed.Complete = true
	a.current = nil
	a.lastSealed = sealed.Time
	a.sealed = true
	return &sealed
}
