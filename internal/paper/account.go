// Package paper simulates a spot account so strategies can run without a live venue.
package paper

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradebot-go/internal/signal"
)

const epsilon = 1e-9

var (
	ErrInsufficientCash     = errors.New("insufficient cash for buy")
	ErrInsufficientPosition = errors.New("insufficient position to sell")
	ErrPositionLimit        = errors.New("position limit exceeded")
)

// Fill is a simulated execution.
type Fill struct {
	Symbol   string        `json:"symbol"`
	Side     signal.Action `json:"side"`
	Qty      float64       `json:"qty"`
	Price    float64       `json:"price"`
	Notional float64       `json:"notional"`
	Realized float64       `json:"realized"`
	At       time.Time     `json:"at"`
}

type positionState struct {
	Qty     float64
	AvgCost float64
}

// Account tracks virtual cash, realized PnL, and per-symbol positions.
type Account struct {
	mu                   sync.Mutex
	startingCash         float64
	cash                 float64
	realizedPnL          float64
	maxPositionPerSymbol float64
	positions            map[string]positionState
	now                  func() time.Time
}

// PositionSnapshot exposes a read-only view of a single symbol position.
type PositionSnapshot struct {
	Qty         float64 `json:"qty"`
	AvgCost     float64 `json:"avg_cost"`
	MarketValue float64 `json:"market_value"`
	Unrealized  float64 `json:"unrealized"`
}

// Snapshot is a copy of the account state, optionally marked to market.
type Snapshot struct {
	Cash        float64                     `json:"cash"`
	RealizedPnL float64                     `json:"realized_pnl"`
	Equity      float64                     `json:"equity"`
	Positions   map[string]PositionSnapshot `json:"positions"`
}

// NewAccount starts with startingCash. A zero maxPositionPerSymbol disables the cap.
func NewAccount(startingCash, maxPositionPerSymbol float64) *Account {
	return &Account{
		startingCash:         startingCash,
		cash:                 startingCash,
		maxPositionPerSymbol: maxPositionPerSymbol,
		positions:            make(map[string]positionState),
		now:                  time.Now,
	}
}

// StartingCash returns the initial bankroll.
func (a *Account) StartingCash() float64 { return a.startingCash }

// MarketFill executes qty at price, mutating balances on success.
func (a *Account) MarketFill(symbol string, side signal.Action, qty, price float64) (Fill, error) {
	if qty <= 0 {
		return Fill{}, errors.New("quantity must be positive")
	}
	if price <= 0 {
		return Fill{}, errors.New("price must be positive")
	}
	symbol = strings.ToUpper(symbol)

	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.positions[symbol]
	fill := Fill{Symbol: symbol, Side: side, Qty: qty, Price: price, Notional: qty * price, At: a.now()}

	switch side {
	case signal.Buy:
		if fill.Notional > a.cash+epsilon {
			return Fill{}, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, fill.Notional, a.cash)
		}
		newQty := state.Qty + qty
		if a.maxPositionPerSymbol > 0 && newQty > a.maxPositionPerSymbol+epsilon {
			return Fill{}, ErrPositionLimit
		}
		a.cash -= fill.Notional
		a.positions[symbol] = positionState{Qty: newQty, AvgCost: (state.AvgCost*state.Qty + fill.Notional) / newQty}

	case signal.Sell:
		if state.Qty <= 0 || state.Qty+epsilon < qty {
			return Fill{}, fmt.Errorf("%w: hold %.8f %s", ErrInsufficientPosition, state.Qty, symbol)
		}
		fill.Realized = (price - state.AvgCost) * qty
		a.realizedPnL += fill.Realized
		a.cash += fill.Notional
		if left := state.Qty - qty; left <= epsilon {
			delete(a.positions, symbol)
		} else {
			a.positions[symbol] = positionState{Qty: left, AvgCost: state.AvgCost}
		}

	default:
		return Fill{}, fmt.Errorf("unknown order side %q", side)
	}
	return fill, nil
}

// Snapshot returns a copy of balances marked with prices; unmarked positions count as zero.
func (a *Account) Snapshot(prices map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]PositionSnapshot, len(a.positions))
	equity := a.cash
	for sym, pos := range a.positions {
		snap := PositionSnapshot{Qty: pos.Qty, AvgCost: pos.AvgCost}
		if mark := prices[sym]; mark > 0 {
			snap.MarketValue = pos.Qty * mark
			snap.Unrealized = (mark - pos.AvgCost) * pos.Qty
		}
		positions[sym] = snap
		equity += snap.MarketValue
	}
	return Snapshot{Cash: a.cash, RealizedPnL: a.realizedPnL, Equity: equity, Positions: positions}
}

// AvailableCash reports free cash that can be deployed into new longs.
func (a *Account) AvailableCash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Position returns the current position size for symbol.
func (a *Account) Position(symbol string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[strings.ToUpper(symbol)].Qty
}

// RealizedPnL returns total closed-trade profit and loss.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL
}
