// Package venue adapts execution venues to one uniform request/response shape.
package venue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"tradebot-go/internal/signal"
)

// ErrRejected wraps every failed venue response.
var ErrRejected = errors.New("venue rejected request")

// OrderType is the order style sent to a venue.
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

// TradeRequest is venue-agnostic. Price is required for LIMIT orders; for
// MARKET orders it is a reference price that only simulated venues use.
type TradeRequest struct {
	Symbol   string        `json:"symbol"`
	Side     signal.Action `json:"side"`
	Type     OrderType     `json:"type"`
	Quantity float64       `json:"quantity"`
	Price    float64       `json:"price,omitempty"`
}

// Validate rejects requests no venue could execute.
func (r TradeRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Symbol) == "":
		return errors.New("symbol required")
	case !r.Side.Valid():
		return fmt.Errorf("invalid side %q", r.Side)
	case r.Quantity <= 0 || math.IsNaN(r.Quantity) || math.IsInf(r.Quantity, 0):
		return fmt.Errorf("invalid quantity %v", r.Quantity)
	case r.Type != Market && r.Type != Limit:
		return fmt.Errorf("invalid order type %q", r.Type)
	case r.Type == Limit && r.Price <= 0:
		return errors.New("limit order requires a positive price")
	}
	return nil
}

// Response is returned by every venue call. Data is set on success, Error on failure.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK builds a successful response.
func OK(data any) Response { return Response{Success: true, Data: data} }

// Fail builds a failed response from err.
func Fail(err error) Response {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Response{Error: err.Error()}
}

// Err converts a failed response into an error wrapping ErrRejected.
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRejected, r.Error)
}

// Balance is the spendable amount of the venue's quote asset.
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// OrderResult is the Data of a successful PlaceTrade.
type OrderResult struct {
	Venue       string        `json:"venue"`
	OrderID     string        `json:"order_id"`
	Symbol      string        `json:"symbol"`
	Side        signal.Action `json:"side"`
	Quantity    float64       `json:"quantity"`
	Price       float64       `json:"price,omitempty"`
	Status      string        `json:"status"`
	ExecutedQty float64       `json:"executed_qty,omitempty"`
}

// Venue is implemented by every execution backend. Implementations never
// panic or return transport errors directly; failures come back as Response.
type Venue interface {
	Name() string
	TestConnection(ctx context.Context) Response
	GetBalance(ctx context.Context) Response
	PlaceTrade(ctx context.Context, req TradeRequest) Response
}

// BalanceSource reads the free quote balance from a venue.
type BalanceSource struct {
	Venue Venue
}

// Balance implements the generator's balance lookup.
func (b BalanceSource) Balance(ctx context.Context) (float64, error) {
	resp := b.Venue.GetBalance(ctx)
	if err := resp.Err(); err != nil {
		return 0, err
	}
	bal, ok := resp.Data.(Balance)
	if !ok {
		return 0, fmt.Errorf("%s: unexpected balance payload %T", b.Venue.Name(), resp.Data)
	}
	return bal.Free, nil
}
