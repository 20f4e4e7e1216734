// Package sink receives trade records and notifications after an order is
// accepted by a venue. Storage and delivery are left to the implementations.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradebot-go/internal/signal"
)

// TradeRecord is the audit entry for one accepted order.
type TradeRecord struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id,omitempty"`
	Venue        string        `json:"venue"`
	OrderID      string        `json:"order_id,omitempty"`
	Status       string        `json:"status,omitempty"`
	Instrument   string        `json:"instrument"`
	Side         signal.Action `json:"side"`
	Quantity     float64       `json:"quantity"`
	EntryPrice   float64       `json:"entry_price"`
	FillPrice    float64       `json:"fill_price,omitempty"`
	StopLoss     float64       `json:"stop_loss"`
	TakeProfit   float64       `json:"take_profit"`
	Confidence   float64       `json:"confidence"`
	RiskScore    float64       `json:"risk_score"`
	StrategyName string        `json:"strategy_name"`
	Reasoning    []string      `json:"reasoning,omitempty"`
	ExecutedAt   time.Time     `json:"executed_at"`
}

// NewTradeRecord copies the signal into a record with a fresh ID.
func NewTradeRecord(userID, venue string, s *signal.TradingSignal, at time.Time) TradeRecord {
	return TradeRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		Venue:        venue,
		Instrument:   s.Instrument,
		Side:         s.Action,
		Quantity:     s.Quantity,
		EntryPrice:   s.EntryPrice,
		StopLoss:     s.StopLoss,
		TakeProfit:   s.TakeProfit,
		Confidence:   s.Confidence,
		RiskScore:    s.RiskScore,
		StrategyName: s.StrategyName,
		Reasoning:    append([]string(nil), s.Reasoning...),
		ExecutedAt:   at,
	}
}

// Notification is a user-facing event derived from a trade.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	TradeID   string    `json:"trade_id"`
	CreatedAt time.Time `json:"created_at"`
}

// KindTradeExecuted marks notifications emitted after an accepted order.
const KindTradeExecuted = "trade_executed"

// TradeNotification describes rec for the user.
func TradeNotification(rec TradeRecord) Notification {
	return Notification{
		ID:     uuid.NewString(),
		UserID: rec.UserID,
		Kind:   KindTradeExecuted,
		Title:  fmt.Sprintf("%s %s executed", rec.Side, rec.Instrument),
		Message: fmt.Sprintf("%s %.8g %s at %.8g on %s (confidence %.0f%%, stop %.8g, target %.8g)",
			rec.Side, rec.Quantity, rec.Instrument, rec.EntryPrice, rec.Venue,
			rec.Confidence*100, rec.StopLoss, rec.TakeProfit),
		TradeID:   rec.ID,
		CreatedAt: rec.ExecutedAt,
	}
}

// Sink stores trade records and delivers notifications.
type Sink interface {
	RecordTrade(ctx context.Context, rec TradeRecord) error
	Notify(ctx context.Context, n Notification) error
	Close() error
}

// Multi fans out to every sink and joins their errors.
type Multi []Sink

func (m Multi) RecordTrade(ctx context.Context, rec TradeRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordTrade(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
