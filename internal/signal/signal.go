// Package signal standardizes payloads shared between the decision pipeline, execution, and sinks.
package signal

import "time"

// Action is the direction a decision resolves to.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Valid reports whether a is an order side (BUY or SELL).
func (a Action) Valid() bool { return a == Buy || a == Sell }

// Decision is the fused outcome before risk sizing.
type Decision struct {
	Action     Action
	Confidence float64
	EntryPrice float64
	Score      float64
	Reasoning  []string
}

// TradingSignal is a fully sized, actionable signal. It is only built when the
// decision confidence meets the strategy's minimum.
type TradingSignal struct {
	Instrument   string    `json:"instrument"`
	Action       Action    `json:"action"`
	Confidence   float64   `json:"confidence"`
	EntryPrice   float64   `json:"entry_price"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	Quantity     float64   `json:"quantity"`
	Notional     float64   `json:"notional"`
	Reasoning    []string  `json:"reasoning"`
	StrategyName string    `json:"strategy_name"`
	RiskScore    float64   `json:"risk_score"`
	GeneratedAt  time.Time `json:"generated_at"`
}
