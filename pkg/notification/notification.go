package notification

import (
	"fmt"
	"io"
	"sync"

	"github.com/enorith/hookbot/pkg/model"
)

type Notifier interface {
	Notify(string)
	OnTrade(trade model.ExecutedTrade)
	OnError(err error)
}

// Hook forwards post-trade outcomes to a Notifier.
type Hook struct {
	notifier Notifier
}

func NewHook(notifier Notifier) *Hook {
	return &Hook{notifier: notifier}
}

func (*Hook) Name() string { return "notifier" }

func (h *Hook) PostTrade(outcome model.Outcome) error {
	switch {
	case outcome.Trade != nil:
		h.notifier.OnTrade(*outcome.Trade)
	case outcome.Rejection != nil:
		h.notifier.Notify(fmt.Sprintf("rejected %s: %s", outcome.Proposal, outcome.Rejection))
		if outcome.Rejection.Err != nil {
			h.notifier.OnError(outcome.Rejection.Err)
		}
	}
	return nil
}

// Writer is a Notifier that prints one line per event.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (n *Writer) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, text)
}

func (n *Writer) OnTrade(trade model.ExecutedTrade) {
	n.Notify(fmt.Sprintf("[%s] %s %s %f @ %f | position %f | pnl %.2f",
		trade.Time.UTC().Format("2006-01-02 15:04:05"), trade.Side, trade.Pair, trade.Size, trade.Price,
		trade.Position.Size, trade.RealizedPnL))
}

func (n *Writer) OnError(err error) {
	n.Notify("error: " + err.Error())
}
