package hookbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"

	"github.com/enorith/hookbot/pkg/candle"
	"github.com/enorith/hookbot/pkg/hook"
	"github.com/enorith/hookbot/pkg/model"
	"github.com/enorith/hookbot/pkg/notification"
	"github.com/enorith/hookbot/pkg/order"
	"github.com/enorith/hookbot/pkg/storage"
	"github.com/enorith/hookbot/pkg/strategy"
)

const (
	defaultTimeframe   = time.Minute
	defaultHistorySize = 500
	defaultInitialCash = 10000
)

// ErrPairMismatch is returned for ticks of a pair the engine does not trade.
var ErrPairMismatch = errors.New("tick pair does not match engine pair")

// State is the engine stage a sealed candle is in.
type State int

const (
	StateAwaitingCandle State = iota
	StateEvaluatingStrategy
	StatePreTradeGate
	StateExecuting
	StatePostTrade
)

func (s State) String() string {
	switch s {
	case StateAwaitingCandle:
		return "AwaitingCandle"
	case StateEvaluatingStrategy:
		return "EvaluatingStrategy"
	case StatePreTradeGate:
		return "PreTradeGate"
	case StateExecuting:
		return "Executing"
	case StatePostTrade:
		return "PostTrade"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Engine drives one strategy over one pair. Every tick is processed to
// completion before OnTick returns. An Engine is not safe for concurrent use;
// run one engine per goroutine, engines share nothing.
type Engine struct {
	pair     string
	strategy strategy.Strategy

	timeframe      time.Duration
	historySize    int
	initialCash    float64
	notifyRejected bool
	metadata       model.Metadata
	hooks          []interface{}
	storage        *storage.Storage
	notifier       notification.Notifier

	aggregator *candle.Aggregator
	history    *model.History
	pipeline   *hook.Pipeline
	tracker    *order.Tracker

	state      State
	rejections []model.Outcome
}

// Option configures an Engine in NewEngine.
type Option func(*Engine)

func WithTimeframe(timeframe time.Duration) Option {
	return func(e *Engine) {
		e.timeframe = timeframe
	}
}

// WithHooks appends hooks to the engine pipeline. Pre-trade hooks are folded in the order given.
func WithHooks(hooks ...interface{}) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, hooks...)
	}
}

// WithStorage journals every outcome. It is registered after the user hooks.
func WithStorage(storage *storage.Storage) Option {
	return func(e *Engine) {
		e.storage = storage
	}
}

func WithNotifier(notifier notification.Notifier) Option {
	return func(e *Engine) {
		e.notifier = notifier
	}
}

// WithMetadata sets metadata attached to every proposal of the engine.
func WithMetadata(metadata model.Metadata) Option {
	return func(e *Engine) {
		e.metadata = e.metadata.Merge(metadata)
	}
}

func WithHistorySize(size int) Option {
	return func(e *Engine) {
		e.historySize = size
	}
}

func WithInitialCash(cash float64) Option {
	return func(e *Engine) {
		e.initialCash = cash
	}
}

// WithRejectionNotices controls whether post-trade hooks are called for rejected proposals.
func WithRejectionNotices(enabled bool) Option {
	return func(e *Engine) {
		e.notifyRejected = enabled
	}
}

func WithLogLevel(level log.Level) Option {
	return func(*Engine) {
		log.SetLevel(level)
	}
}

func NewEngine(pair string, strategy strategy.Strategy, options ...Option) (*Engine, error) {
	if pair == "" {
		return nil, fmt.Errorf("%w: pair is required", model.ErrInvalidConfiguration)
	}
	if strategy == nil {
		return nil, fmt.Errorf("%w: strategy is required", model.ErrInvalidConfiguration)
	}

	engine := &Engine{
		pair:           pair,
		strategy:       strategy,
		timeframe:      defaultTimeframe,
		historySize:    defaultHistorySize,
		initialCash:    defaultInitialCash,
		notifyRejected: true,
		state:          StateAwaitingCandle,
	}
	for _, option := range options {
		option(engine)
	}

	if engine.historySize < strategy.WarmupPeriod() {
		return nil, fmt.Errorf("%w: history size %d is smaller than the %s warmup of %d candles",
			model.ErrInvalidConfiguration, engine.historySize, strategy.Name(), strategy.WarmupPeriod())
	}
	if engine.initialCash < 0 {
		return nil, fmt.Errorf("%w: initial cash cannot be negative", model.ErrInvalidConfiguration)
	}

	aggregator, err := candle.NewAggregator(pair, engine.timeframe)
	if err != nil {
		return nil, err
	}
	engine.aggregator = aggregator

	hooks := append([]interface{}{}, engine.hooks...)
	if engine.storage != nil {
		hooks = append(hooks, engine.storage)
	}
	if engine.notifier != nil {
		hooks = append(hooks, notification.NewHook(engine.notifier))
	}
	engine.pipeline, err = hook.NewPipeline(hooks...)
	if err != nil {
		return nil, err
	}

	engine.history = model.NewHistory(engine.historySize)
	engine.tracker = order.NewTracker(pair, engine.initialCash)
	return engine, nil
}

func (e *Engine) Pair() string {
	return e.pair
}

func (e *Engine) State() State {
	return e.state
}

func (e *Engine) transition(next State) {
	log.WithFields(log.Fields{
		"pair": e.pair,
		"from": e.state,
		"to":   next,
	}).Debug("engine state")
	e.state = next
}

func (e *Engine) OnTick(tick model.Tick) (*model.Outcome, error) {
	return e.OnTickWithMetadata(tick, model.Metadata{})
}

// OnTickWithMetadata folds tick into the current candle. When the tick seals a
// candle, the candle runs through the strategy and the hook pipeline with meta
// attached. The returned outcome is nil unless the strategy proposed a trade.
func (e *Engine) OnTickWithMetadata(tick model.Tick, meta model.Metadata) (*model.Outcome, error) {
	if tick.Pair == "" {
		tick.Pair = e.pair
	}
	if tick.Pair != e.pair {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrPairMismatch, tick.Pair, e.pair)
	}

	sealed, err := e.aggregator.Push(tick)
	if err != nil {
		return nil, err
	}
	if sealed == nil {
		return nil, nil
	}
	return e.processCandle(*sealed, meta), nil
}

// Flush closes the in-progress candle early, as done at the end of a replay.
func (e *Engine) Flush() *model.Outcome {
	sealed, ok := e.aggregator.Flush()
	if !ok {
		return nil
	}
	return e.processCandle(*sealed, model.Metadata{})
}

// CurrentCandle returns the candle still being aggregated, if any.
func (e *Engine) CurrentCandle() (model.Candle, bool) {
	return e.aggregator.Current()
}

func (e *Engine) processCandle(c model.Candle, meta model.Metadata) *model.Outcome {
	e.history.Push(c)
	e.tracker.Mark(c.Close)

	e.transition(StateEvaluatingStrategy)
	signal := e.strategy.Evaluate(e.history)
	if signal == nil {
		e.transition(StateAwaitingCandle)
		return nil
	}

	proposal := signal.Proposal
	if proposal.Pair == "" {
		proposal.Pair = e.pair
	}
	if proposal.Time.IsZero() {
		proposal.Time = c.Time
	}
	// caller metadata wins over the strategy's annotations
	meta = e.metadata.Merge(signal.Metadata).Merge(meta)

	e.transition(StatePreTradeGate)
	verdict := e.pipeline.RunPreTrade(proposal, signal.Context, meta)

	outcome := &model.Outcome{
		Candle:   c,
		Proposal: verdict.Decision.Proposal,
		Context:  signal.Context,
		Metadata: meta,
	}
	if verdict.Failure != nil {
		outcome.Failures = append(outcome.Failures, verdict.Failure)
	}

	if verdict.Rejected() {
		outcome.Rejection = verdict.Rejection()
	} else {
		e.transition(StateExecuting)
		trade, err := e.tracker.Execute(outcome.Proposal)
		if err != nil {
			log.WithError(err).WithField("proposal", outcome.Proposal).Warn("execution failed")
			outcome.Rejection = &model.Rejection{Reason: err.Error(), Hook: "execution", Err: err}
		} else {
			outcome.Trade = &trade
		}
	}

	if outcome.Rejected() {
		e.rejections = append(e.rejections, *outcome)
	}

	e.transition(StatePostTrade)
	if outcome.Executed() || e.notifyRejected {
		for _, failure := range e.pipeline.RunPostTrade(*outcome) {
			outcome.Failures = append(outcome.Failures, failure)
		}
	}

	e.transition(StateAwaitingCandle)
	return outcome
}

// Replay feeds ticks in order and flushes the last candle. It stops at the
// first error and returns the outcomes produced so far.
func (e *Engine) Replay(ticks []model.Tick) ([]model.Outcome, error) {
	var outcomes []model.Outcome
	for _, tick := range ticks {
		outcome, err := e.OnTick(tick)
		if err != nil {
			return outcomes, err
		}
		if outcome != nil {
			outcomes = append(outcomes, *outcome)
		}
	}
	if outcome := e.Flush(); outcome != nil {
		outcomes = append(outcomes, *outcome)
	}
	return outcomes, nil
}

// Run consumes ticks until the channel is closed or ctx is done. Late ticks
// from a live feed are dropped with a warning instead of stopping the engine.
func (e *Engine) Run(ctx context.Context, ticks <-chan model.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				e.Flush()
				return nil
			}
			if _, err := e.OnTick(tick); err != nil {
				if errors.Is(err, model.ErrOutOfOrderTick) {
					log.WithField("tick", tick.Time).Warn("dropping out of order tick")
					continue
				}
				return err
			}
		}
	}
}

func (e *Engine) Trades() []model.ExecutedTrade {
	return e.tracker.Trades()
}

// Rejections returns the outcomes of rejected proposals in the order they happened.
func (e *Engine) Rejections() []model.Outcome {
	out := make([]model.Outcome, len(e.rejections))
	copy(out, e.rejections)
	return out
}

func (e *Engine) Position() model.Position {
	return e.tracker.Position()
}

func (e *Engine) Equity() float64 {
	return e.tracker.Equity()
}

func (e *Engine) Summary(w io.Writer) {
	position := e.tracker.Position()
	equity := e.tracker.Equity()

	profit := "-"
	if initial := e.tracker.InitialCash(); initial > 0 {
		profit = fmt.Sprintf("%.2f%%", (equity-initial)/initial*100)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Pair", "Trades", "Rejected", "Position", "Avg Entry", "Realized", "Unrealized", "Equity", "P&L %"})
	table.Append([]string{
		e.pair,
		strconv.Itoa(len(e.tracker.Trades())),
		strconv.Itoa(len(e.rejections)),
		fmt.Sprintf("%.4f", position.Size),
		fmt.Sprintf("%.2f", position.AvgEntryPrice),
		fmt.Sprintf("%.2f", position.RealizedPnL),
		fmt.Sprintf("%.2f", position.UnrealizedPnL),
		fmt.Sprintf("%.2f", equity),
		profit,
	})
	table.Render()
}
