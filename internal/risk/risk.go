// Package risk sizes positions and places protective stop and target prices.
package risk

import (
	"math"

	"tradebot-go/internal/signal"
	"tradebot-go/internal/strategy"
)

// tierParams holds the stop base fraction and reward multiplier for a tier.
type tierParams struct {
	stopFraction     float64
	rewardMultiplier float64
}

var tiers = map[strategy.RiskTier]tierParams{
	strategy.Conservative: {stopFraction: 0.02, rewardMultiplier: 1.5},
	strategy.Moderate:     {stopFraction: 0.035, rewardMultiplier: 2.0},
	strategy.Aggressive:   {stopFraction: 0.05, rewardMultiplier: 3.0},
}

const rewardScale = 0.02

// maxStopDistance keeps a BUY stop a positive price under any volatility.
const maxStopDistance = 0.95

// params falls back to the moderate tier for unrecognized values; the catalog
// validator rejects those before they reach here.
func params(tier strategy.RiskTier) tierParams {
	if p, ok := tiers[tier]; ok {
		return p
	}
	return tiers[strategy.Moderate]
}

// StopLoss returns the protective stop for a position opened at entry.
// BUY stops sit below entry, SELL stops above.
func StopLoss(side signal.Action, entry, volatility float64, tier strategy.RiskTier) float64 {
	distance := math.Min(params(tier).stopFraction*(1+nonNegative(volatility)*0.5), maxStopDistance)
	if side == signal.Sell {
		return entry * (1 + distance)
	}
	return entry * (1 - distance)
}

// TakeProfit returns the profit target. BUY targets sit above entry, SELL below.
func TakeProfit(side signal.Action, entry, confidence float64, tier strategy.RiskTier) float64 {
	distance := (params(tier).rewardMultiplier + unit(confidence)*0.5) * rewardScale
	if side == signal.Sell {
		return entry * (1 - distance)
	}
	return entry * (1 + distance)
}

// PositionSize returns the notional to commit. The result never exceeds
// balance*riskPerTrade.
func PositionSize(balance, riskPerTrade, confidence, volatility float64) float64 {
	if balance <= 0 || riskPerTrade <= 0 {
		return 0
	}
	return balance * riskPerTrade * unit(confidence) / (1 + nonNegative(volatility))
}

// Score is an advisory [0,1] risk rating; it never gates execution.
// changeFraction is the 24h change as a fraction (0.05 for +5%).
func Score(confidence, volatility, changeFraction float64) float64 {
	s := nonNegative(volatility)*0.4 + (1-unit(confidence))*0.3 + math.Abs(changeFraction)*0.3
	return math.Min(math.Max(s, 0), 1)
}

// Limits caps individual orders. A zero cap disables the check.
type Limits struct {
	MaxNotionalPerTrade float64
}

// Allow reports whether an order with the given notional may be submitted.
func (l Limits) Allow(notional float64) bool {
	if l.MaxNotionalPerTrade <= 0 {
		return true
	}
	return notional <= l.MaxNotionalPerTrade
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
