// Package fusion combines indicator, sentiment and pattern readings into a
// single directional decision.
package fusion

import (
	"fmt"
	"math"

	"tradebot-go/internal/indicator"
	"tradebot-go/internal/pattern"
	"tradebot-go/internal/sentiment"
	"tradebot-go/internal/signal"
	"tradebot-go/internal/strategy"
)

// Weights and thresholds for the weighted sum.
const (
	RSIWeight       = 0.30
	MACDWeight      = 0.25
	SentimentWeight = 0.20
	PatternWeight   = 0.25

	RSIOversold   = 30.0
	RSIOverbought = 70.0

	// ActionThreshold must be strictly exceeded in either direction.
	ActionThreshold = 0.30
)

// Decide scores the inputs and returns nil when the score does not clear
// ActionThreshold. It is pure: the same inputs always give the same result.
func Decide(ind indicator.Set, sent sentiment.Reading, pat pattern.Result, profile strategy.Profile, currentPrice float64) *signal.Decision {
	var (
		score     float64
		reasoning []string
	)

	if profile.Uses(strategy.IndicatorRSI) {
		switch {
		case ind.RSI < RSIOversold:
			score += RSIWeight
			reasoning = append(reasoning, fmt.Sprintf("RSI %.1f oversold (+%.2f)", ind.RSI, RSIWeight))
		case ind.RSI > RSIOverbought:
			score -= RSIWeight
			reasoning = append(reasoning, fmt.Sprintf("RSI %.1f overbought (-%.2f)", ind.RSI, RSIWeight))
		default:
			reasoning = append(reasoning, fmt.Sprintf("RSI %.1f neutral", ind.RSI))
		}
	}

	if profile.Uses(strategy.IndicatorMACD) {
		if ind.MACD.Value > ind.MACD.SignalLine {
			score += MACDWeight
			reasoning = append(reasoning, fmt.Sprintf("MACD %.4f above signal %.4f (+%.2f)", ind.MACD.Value, ind.MACD.SignalLine, MACDWeight))
		} else {
			score -= MACDWeight
			reasoning = append(reasoning, fmt.Sprintf("MACD %.4f at or below signal %.4f (-%.2f)", ind.MACD.Value, ind.MACD.SignalLine, MACDWeight))
		}
	}

	if profile.Uses(strategy.IndicatorBollinger) {
		if line := bollingerNote(ind.Bollinger, currentPrice); line != "" {
			reasoning = append(reasoning, line)
		}
	}

	sentTerm := sent.Score * sent.Confidence * SentimentWeight
	score += sentTerm
	reasoning = append(reasoning, fmt.Sprintf("sentiment %.2f at confidence %.2f (%+.3f)", sent.Score, sent.Confidence, sentTerm))

	patTerm := pat.Confidence * PatternWeight
	if pat.Label != pattern.Bullish {
		patTerm = -patTerm
	}
	score += patTerm
	reasoning = append(reasoning, fmt.Sprintf("%s pattern at confidence %.2f (%+.3f)", pat.Label, pat.Confidence, patTerm))

	action := Classify(score)
	if action == signal.Hold {
		return nil
	}
	return &signal.Decision{
		Action:     action,
		Confidence: math.Min(math.Abs(score), 1),
		EntryPrice: currentPrice,
		Score:      score,
		Reasoning:  reasoning,
	}
}

// Classify maps a fused score to an action. Scores within
// [-ActionThreshold, ActionThreshold] are HOLD.
func Classify(score float64) signal.Action {
	// Round off summation noise so 0.05+0.25 lands on the boundary, not past it.
	s := math.Round(score*1e9) / 1e9
	switch {
	case s > ActionThreshold:
		return signal.Buy
	case s < -ActionThreshold:
		return signal.Sell
	default:
		return signal.Hold
	}
}

func bollingerNote(b indicator.Bollinger, price float64) string {
	switch {
	case b.Upper == b.Lower:
		return ""
	case price > b.Upper:
		return fmt.Sprintf("price %.4f above upper band %.4f", price, b.Upper)
	case price < b.Lower:
		return fmt.Sprintf("price %.4f below lower band %.4f", price, b.Lower)
	default:
		return fmt.Sprintf("price inside bands %.4f-%.4f", b.Lower, b.Upper)
	}
}
