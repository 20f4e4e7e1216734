package risk

import (
	"math"
	"testing"

	"tradebot-go/internal/signal"
	"tradebot-go/internal/strategy"
)

func TestAllow(t *testing.T) {
	limits := Limits{MaxNotionalPerTrade: 50}
	if !limits.Allow(49.9) {
		t.Fatalf("expected notional under limit to pass")
	}
	if limits.Allow(50.1) {
		t.Fatalf("expected notional above limit to fail")
	}
	if !(Limits{}).Allow(1e9) {
		t.Fatalf("zero cap should disable the check")
	}
}

func TestStopLossByTier(t *testing.T) {
	cases := []struct {
		tier strategy.RiskTier
		want float64
	}{
		{strategy.Conservative, 98},
		{strategy.Moderate, 96.5},
		{strategy.Aggressive, 95},
	}
	for _, tc := range cases {
		got := StopLoss(signal.Buy, 100, 0, tc.tier)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: expected %.4f got %.4f", tc.tier, tc.want, got)
		}
	}
	// volatility widens the stop: 0.02 * (1 + 0.2*0.5) = 0.022
	if got := StopLoss(signal.Buy, 100, 0.2, strategy.Conservative); math.Abs(got-97.8) > 1e-9 {
		t.Fatalf("expected widened stop 97.8, got %.4f", got)
	}
}

func TestStopLossStaysPositiveUnderExtremeVolatility(t *testing.T) {
	for _, v := range []float64{38, 100, 1e6} {
		sl := StopLoss(signal.Buy, 100, v, strategy.Aggressive)
		if !(sl > 0 && sl < 100) {
			t.Fatalf("volatility %v: buy stop %.6f must be a positive price below entry", v, sl)
		}
		if math.Abs(sl-5) > 1e-9 {
			t.Fatalf("volatility %v: expected stop capped at 5, got %.6f", v, sl)
		}
	}
}

func TestTakeProfitByTier(t *testing.T) {
	// (2.0 + 0.8*0.5) * 0.02 = 0.048
	if got := TakeProfit(signal.Buy, 100, 0.8, strategy.Moderate); math.Abs(got-104.8) > 1e-9 {
		t.Fatalf("expected 104.8, got %.4f", got)
	}
	if got := TakeProfit(signal.Sell, 100, 0.8, strategy.Moderate); math.Abs(got-95.2) > 1e-9 {
		t.Fatalf("expected mirrored 95.2, got %.4f", got)
	}
}

func TestStopAndTargetBracketEntry(t *testing.T) {
	tiersUnderTest := []strategy.RiskTier{strategy.Conservative, strategy.Moderate, strategy.Aggressive}
	for _, tier := range tiersUnderTest {
		for _, entry := range []float64{0.0001, 1, 42000} {
			for _, v := range []float64{0, 0.05, 1, 3} {
				for _, c := range []float64{0, 0.31, 1} {
					if sl := StopLoss(signal.Buy, entry, v, tier); !(sl < entry) {
						t.Fatalf("buy stop %.6f not below entry %.6f", sl, entry)
					}
					if tp := TakeProfit(signal.Buy, entry, c, tier); !(tp > entry) {
						t.Fatalf("buy target %.6f not above entry %.6f", tp, entry)
					}
					if sl := StopLoss(signal.Sell, entry, v, tier); !(sl > entry) {
						t.Fatalf("sell stop %.6f not above entry %.6f", sl, entry)
					}
					if tp := TakeProfit(signal.Sell, entry, c, tier); !(tp < entry) {
						t.Fatalf("sell target %.6f not below entry %.6f", tp, entry)
					}
				}
			}
		}
	}
}

func TestPositionSizeExactAllocation(t *testing.T) {
	if got := PositionSize(10000, 0.1, 1, 0); got != 1000 {
		t.Fatalf("expected exactly 1000, got %v", got)
	}
}

func TestPositionSizeMonotonicAndBounded(t *testing.T) {
	const balance, r = 5000.0, 0.05
	prev := -1.0
	for c := 0.0; c <= 1.0001; c += 0.05 {
		got := PositionSize(balance, r, c, 0.3)
		if got < prev {
			t.Fatalf("size decreased with confidence at c=%.2f", c)
		}
		if got > balance*r {
			t.Fatalf("size %.4f exceeds cap %.4f", got, balance*r)
		}
		prev = got
	}
	prev = math.Inf(1)
	for v := 0.0; v <= 5; v += 0.25 {
		got := PositionSize(balance, r, 0.7, v)
		if got > prev {
			t.Fatalf("size increased with volatility at v=%.2f", v)
		}
		prev = got
	}
	if got := PositionSize(balance, r, 3, -2); got > balance*r {
		t.Fatalf("out of range inputs must not grow the allocation: %.4f", got)
	}
	if PositionSize(0, r, 1, 0) != 0 || PositionSize(balance, 0, 1, 0) != 0 {
		t.Fatalf("expected zero size without balance or risk budget")
	}
}

func TestScoreClamped(t *testing.T) {
	// 0.1*0.4 + 0.2*0.3 + 0.05*0.3 = 0.115
	if got := Score(0.8, 0.1, -0.05); math.Abs(got-0.115) > 1e-9 {
		t.Fatalf("expected 0.115, got %.4f", got)
	}
	if got := Score(0, 5, 2); got != 1 {
		t.Fatalf("expected clamp to 1, got %.4f", got)
	}
	if got := Score(1, 0, 0); got != 0 {
		t.Fatalf("expected 0, got %.4f", got)
	}
}
