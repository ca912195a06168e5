// Package exchange adapts venue market data into ticks.
package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	log "github.com/sirupsen/logrus"

	"github.com/enorith/hookbot/pkg/model"
)

// TickFromAggTrade converts a Binance aggregate trade event into a tick.
func TickFromAggTrade(event *binance.WsAggTradeEvent) (model.Tick, error) {
	price, err := strconv.ParseFloat(event.Price, 64)
	if err != nil {
		return model.Tick{}, fmt.Errorf("parse price %q: %w", event.Price, err)
	}
	quantity, err := strconv.ParseFloat(event.Quantity, 64)
	if err != nil {
		return model.Tick{}, fmt.Errorf("parse quantity %q: %w", event.Quantity, err)
	}
	return model.Tick{
		Pair:   event.Symbol,
		Time:   time.Unix(0, event.TradeTime*int64(time.Millisecond)).UTC(),
		Price:  price,
		Volume: quantity,
	}, nil
}

// SubscribeAggTrades streams aggregate trades of pair until ctx is done.
// Both channels are closed when the websocket stops. Cancel ctx as soon as
// the ticks are no longer read: a full buffer blocks the websocket handler
// until ctx is done.
func SubscribeAggTrades(ctx context.Context, pair string) (<-chan model.Tick, <-chan error, error) {
	ticks := make(chan model.Tick, 1024)
	errs := make(chan error, 16)

	handler := aggTradeHandler(ctx, ticks, errs)
	errHandler := func(err error) {
		select {
		case errs <- err:
		default:
			log.WithError(err).Warn("dropping websocket error")
		}
	}

	done, stop, err := binance.WsAggTradeServe(pair, handler, errHandler)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe %s: %w", pair, err)
	}

	go func() {
		select {
		case <-ctx.Done():
			close(stop)
			<-done
		case <-done:
		}
		close(ticks)
		close(errs)
	}()

	return ticks, errs, nil
}

// aggTradeHandler forwards converted events to ticks, giving up once ctx is done.
func aggTradeHandler(ctx context.Context, ticks chan<- model.Tick, errs chan<- error) binance.WsAggTradeHandler {
	return func(event *binance.WsAggTradeEvent) {
		tick, err := TickFromAggTrade(event)
		if err != nil {
			select {
			case errs <- err:
			default:
				log.WithError(err).Warn("dropping aggregate trade error")
			}
			return
		}
		select {
		case ticks <- tick:
		case <-ctx.Done():
		}
	}
}
