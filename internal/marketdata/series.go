// Package marketdata fetches per-cycle price snapshots for an instrument.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnavailable marks any failure to obtain real market data. Callers must
// abort instead of substituting synthetic values.
var ErrUnavailable = errors.New("market data unavailable")

// Provider returns a fresh PriceSeries for symbol or an error wrapping ErrUnavailable.
type Provider interface {
	Fetch(ctx context.Context, symbol string) (*PriceSeries, error)
}

// PriceSeries is an immutable per-cycle snapshot. Closes run oldest to newest.
type PriceSeries struct {
	Symbol       string
	Closes       []float64
	Current      float64
	High24h      float64
	Low24h       float64
	Volume24h    float64
	ChangePct24h float64
	FetchedAt    time.Time
}

const minCloses = 2

// Validate rejects series that cannot drive a decision.
func (s *PriceSeries) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil series", ErrUnavailable)
	}
	if len(s.Closes) < minCloses {
		return fmt.Errorf("%w: %s has %d closes", ErrUnavailable, s.Symbol, len(s.Closes))
	}
	if s.Current <= 0 || math.IsNaN(s.Current) || math.IsInf(s.Current, 0) {
		return fmt.Errorf("%w: %s has invalid price %v", ErrUnavailable, s.Symbol, s.Current)
	}
	for _, c := range s.Closes {
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: %s has invalid close %v", ErrUnavailable, s.Symbol, c)
		}
	}
	return nil
}

// ChangeFraction returns the 24h percent change as a fraction.
func (s *PriceSeries) ChangeFraction() float64 { return s.ChangePct24h / 100 }

// Volatility is the 24h range relative to the current price. When the range
// is unknown it falls back to the standard deviation of simple returns.
func (s *PriceSeries) Volatility() float64 {
	if s.Current > 0 && s.High24h > 0 && s.Low24h > 0 && s.High24h >= s.Low24h {
		return (s.High24h - s.Low24h) / s.Current
	}
	return returnsStdDev(s.Closes)
}

func returnsStdDev(closes []float64) float64 {
	if len(closes) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 {
			returns = append(returns, closes[i]/closes[i-1]-1)
		}
	}
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	return math.Sqrt(ss / float64(len(returns)))
}
