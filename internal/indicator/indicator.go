// Package indicator computes RSI, MACD and Bollinger Bands from a closing price window.
// Every function is pure and tolerates windows shorter than the requested period.
package indicator

import (
	"math"

	ta "github.com/cinar/indicator"
	"github.com/samber/lo"
)

const (
	DefaultRSIPeriod           = 14
	DefaultBollingerPeriod     = 20
	DefaultBollingerMultiplier = 2.0
	neutralRSI                 = 50.0
)

// MACD holds the latest MACD reading.
type MACD struct {
	Value      float64 `json:"value"`
	SignalLine float64 `json:"signal_line"`
	Histogram  float64 `json:"histogram"`
}

// Bollinger holds the latest band values.
type Bollinger struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Set is the per-cycle indicator snapshot. It is never cached.
type Set struct {
	RSI       float64   `json:"rsi"`
	MACD      MACD      `json:"macd"`
	Bollinger Bollinger `json:"bollinger"`
}

// Compute runs every indicator with its default parameters.
func Compute(prices []float64) Set {
	return Set{
		RSI:       RSI(prices, DefaultRSIPeriod),
		MACD:      ComputeMACD(prices),
		Bollinger: ComputeBollinger(prices, DefaultBollingerPeriod, DefaultBollingerMultiplier),
	}
}

// RSI averages gains and losses over the trailing period changes. Fewer than
// period+1 points yields 50; zero average loss yields 100.
func RSI(prices []float64, period int) float64 {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if len(prices) < period+1 {
		return neutralRSI
	}

	window := prices[len(prices)-period-1:]
	var gains, losses float64
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rsi := 100 - 100/(1+avgGain/avgLoss)
	if math.IsNaN(rsi) {
		return neutralRSI
	}
	return rsi
}

// ComputeMACD returns EMA(12) - EMA(26) and its EMA(9) signal line, both
// evaluated over the supplied window only. No MACD history is kept between
// calls, so the signal line warms up inside the window on every cycle.
func ComputeMACD(prices []float64) MACD {
	if len(prices) == 0 {
		return MACD{}
	}
	macdLine, signalLine := ta.Macd(prices)
	value := lo.LastOrEmpty(macdLine)
	sig := lo.LastOrEmpty(signalLine)
	return MACD{Value: value, SignalLine: sig, Histogram: value - sig}
}

// ComputeBollinger returns SMA(period) +/- multiplier standard deviations over
// the trailing window. Short windows use whatever points exist.
func ComputeBollinger(prices []float64, period int, multiplier float64) Bollinger {
	if len(prices) == 0 {
		return Bollinger{}
	}
	if period <= 0 {
		period = DefaultBollingerPeriod
	}
	if multiplier <= 0 {
		multiplier = DefaultBollingerMultiplier
	}

	middle := lo.LastOrEmpty(ta.Sma(period, prices))
	window := prices[max(0, len(prices)-period):]
	band := stdDev(window, middle) * multiplier
	return Bollinger{Upper: middle + band, Middle: middle, Lower: middle - band}
}

// stdDev is the population standard deviation around mean.
func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sumSquares := lo.SumBy(values, func(v float64) float64 {
		return (v - mean) * (v - mean)
	})
	return math.Sqrt(sumSquares / float64(len(values)))
}
