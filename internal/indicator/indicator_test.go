package indicator

import (
	"math"
	"testing"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestRSIShortSeriesIsNeutral(t *testing.T) {
	for n := 0; n <= DefaultRSIPeriod; n++ {
		if got := RSI(ramp(n, 100, 1), DefaultRSIPeriod); got != 50 {
			t.Fatalf("len=%d: expected 50, got %.4f", n, got)
		}
	}
}

func TestRSIMonotonicIncreaseIs100(t *testing.T) {
	if got := RSI(ramp(40, 100, 0.5), DefaultRSIPeriod); got != 100 {
		t.Fatalf("expected 100 for rising series, got %.4f", got)
	}
}

func TestRSIMonotonicDecreaseIsZero(t *testing.T) {
	if got := RSI(ramp(40, 200, -1), DefaultRSIPeriod); got != 0 {
		t.Fatalf("expected 0 for falling series, got %.4f", got)
	}
}

func TestRSIBalancedMoves(t *testing.T) {
	prices := []float64{100}
	for i := 0; i < 14; i++ {
		if i%2 == 0 {
			prices = append(prices, prices[len(prices)-1]+1)
		} else {
			prices = append(prices, prices[len(prices)-1]-1)
		}
	}
	if got := RSI(prices, 14); math.Abs(got-50) > 1e-9 {
		t.Fatalf("expected 50 for equal gains and losses, got %.4f", got)
	}
}

func TestRSIUsesTrailingWindowOnly(t *testing.T) {
	// An early crash outside the trailing 14 changes must not matter.
	prices := append([]float64{500, 100}, ramp(20, 101, 1)...)
	if got := RSI(prices, 14); got != 100 {
		t.Fatalf("expected 100, got %.4f", got)
	}
}

func TestComputeMACDRisingSeries(t *testing.T) {
	m := ComputeMACD(ramp(100, 100, 1))
	if m.Value <= 0 {
		t.Fatalf("expected positive MACD for rising series, got %.4f", m.Value)
	}
	if m.Value <= m.SignalLine {
		t.Fatalf("expected MACD above signal line, got value=%.4f signal=%.4f", m.Value, m.SignalLine)
	}
	if math.Abs(m.Histogram-(m.Value-m.SignalLine)) > 1e-12 {
		t.Fatalf("histogram mismatch: %+v", m)
	}
}

func TestComputeMACDEmptyAndShort(t *testing.T) {
	if got := ComputeMACD(nil); got != (MACD{}) {
		t.Fatalf("expected zero MACD for empty input, got %+v", got)
	}
	if got := ComputeMACD([]float64{42}); got != (MACD{}) {
		t.Fatalf("expected zero MACD for single point, got %+v", got)
	}
}

func TestComputeBollingerFlatSeries(t *testing.T) {
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 10
	}
	b := ComputeBollinger(flat, 20, 2)
	if b.Middle != 10 || b.Upper != 10 || b.Lower != 10 {
		t.Fatalf("expected collapsed bands at 10, got %+v", b)
	}
}

func TestComputeBollingerBands(t *testing.T) {
	prices := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	b := ComputeBollinger(prices, 8, 2)
	// mean 5, population std 2
	if math.Abs(b.Middle-5) > 1e-9 || math.Abs(b.Upper-9) > 1e-9 || math.Abs(b.Lower-1) > 1e-9 {
		t.Fatalf("unexpected bands %+v", b)
	}
}

func TestComputeBollingerShortWindow(t *testing.T) {
	b := ComputeBollinger([]float64{1, 3}, 20, 2)
	if math.Abs(b.Middle-2) > 1e-9 {
		t.Fatalf("expected best-effort middle 2, got %.4f", b.Middle)
	}
	if b.Upper <= b.Middle || b.Lower >= b.Middle {
		t.Fatalf("expected non-degenerate bands, got %+v", b)
	}
	if got := ComputeBollinger(nil, 20, 2); got != (Bollinger{}) {
		t.Fatalf("expected zero bands for empty input, got %+v", got)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	prices := ramp(120, 50, 0.3)
	if Compute(prices) != Compute(prices) {
		t.Fatalf("Compute must be deterministic")
	}
}
