// Package execution turns trading signals into venue orders and reports
// accepted orders to the sink.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tradebot-go/internal/metrics"
	"tradebot-go/internal/risk"
	"tradebot-go/internal/signal"
	"tradebot-go/internal/sink"
	"tradebot-go/internal/venue"
)

// ErrLimitExceeded is returned when an order breaches the notional cap.
var ErrLimitExceeded = errors.New("order exceeds notional limit")

// Result describes one accepted order.
type Result struct {
	Order  venue.OrderResult
	Record sink.TradeRecord
}

// Executor submits orders once; failures are reported, never retried.
type Executor struct {
	venue  venue.Venue
	sink   sink.Sink
	limits risk.Limits
	log    zerolog.Logger
	now    func() time.Time
}

// NewExecutor wires a venue and sink. A nil sink drops records.
func NewExecutor(v venue.Venue, s sink.Sink, limits risk.Limits, log zerolog.Logger) *Executor {
	return &Executor{
		venue:  v,
		sink:   s,
		limits: limits,
		log:    log.With().Str("component", "executor").Str("venue", v.Name()).Logger(),
		now:    time.Now,
	}
}

// Venue returns the venue orders go to.
func (e *Executor) Venue() venue.Venue { return e.venue }

// Submit places a market order for sig on behalf of userID.
func (e *Executor) Submit(ctx context.Context, userID string, sig *signal.TradingSignal) (*Result, error) {
	if sig == nil || !sig.Action.Valid() {
		return nil, errors.New("nothing to submit")
	}
	side := string(sig.Action)
	notional := sig.Quantity * sig.EntryPrice
	if !e.limits.Allow(notional) {
		metrics.OrdersTotal.WithLabelValues(e.venue.Name(), sig.Instrument, side, "limit").Inc()
		e.log.Warn().Str("sym", sig.Instrument).Float64("notional", notional).
			Float64("cap", e.limits.MaxNotionalPerTrade).Msg("order blocked by notional cap")
		return nil, fmt.Errorf("%w: %.2f > %.2f", ErrLimitExceeded, notional, e.limits.MaxNotionalPerTrade)
	}

	req := venue.TradeRequest{
		Symbol:   sig.Instrument,
		Side:     sig.Action,
		Type:     venue.Market,
		Quantity: sig.Quantity,
		Price:    sig.EntryPrice,
	}
	resp := e.venue.PlaceTrade(ctx, req)
	if err := resp.Err(); err != nil {
		metrics.OrdersTotal.WithLabelValues(e.venue.Name(), sig.Instrument, side, "rejected").Inc()
		e.log.Warn().Err(err).Str("sym", sig.Instrument).Str("side", side).Float64("qty", sig.Quantity).Msg("order rejected")
		return nil, err
	}
	metrics.OrdersTotal.WithLabelValues(e.venue.Name(), sig.Instrument, side, "accepted").Inc()

	order, _ := resp.Data.(venue.OrderResult)
	rec := sink.NewTradeRecord(userID, e.venue.Name(), sig, e.now())
	rec.OrderID = order.OrderID
	rec.Status = order.Status
	rec.FillPrice = order.Price

	e.log.Info().Str("sym", sig.Instrument).Str("side", side).Float64("qty", sig.Quantity).
		Float64("px", sig.EntryPrice).Str("order_id", order.OrderID).Str("trade_id", rec.ID).Msg("order accepted")

	if e.sink != nil {
		// the order already happened; sink trouble is logged, not surfaced
		if err := e.sink.RecordTrade(ctx, rec); err != nil {
			e.log.Error().Err(err).Str("trade_id", rec.ID).Msg("record trade")
		}
		if err := e.sink.Notify(ctx, sink.TradeNotification(rec)); err != nil {
			e.log.Error().Err(err).Str("trade_id", rec.ID).Msg("notify trade")
		}
	}
	return &Result{Order: order, Record: rec}, nil
}
