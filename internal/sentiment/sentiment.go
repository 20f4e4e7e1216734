// Package sentiment turns a market-wide fear & greed index and the instrument's
// 24h trend into a bounded score with a confidence weight.
package sentiment

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	SourceFearGreed = "Fear & Greed Index"
	SourceTrend     = "24h Price Trend"
	SourceBasic     = "Basic Analysis"

	indexConfidence    = 0.8
	fallbackConfidence = 0.3
	trendWeight        = 0.3
	maxKeywords        = 4
)

// Reading is the sentiment for one instrument and one cycle.
type Reading struct {
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
	Keywords   []string `json:"keywords"`
}

// Index is one fear & greed observation.
type Index struct {
	Value          int
	Classification string
}

// IndexSource supplies the market-wide fear & greed index.
type IndexSource interface {
	Index(ctx context.Context) (Index, error)
}

// TrendSource supplies an instrument's 24h percent change.
type TrendSource interface {
	Change24h(ctx context.Context, symbol string) (float64, error)
}

// Analyzer combines both sources. Either may be nil or failing.
type Analyzer struct {
	index IndexSource
	trend TrendSource
	log   zerolog.Logger
}

func NewAnalyzer(index IndexSource, trend TrendSource, log zerolog.Logger) *Analyzer {
	return &Analyzer{index: index, trend: trend, log: log.With().Str("component", "sentiment").Logger()}
}

// Analyze never fails: unavailable sources lower the confidence instead.
func (a *Analyzer) Analyze(ctx context.Context, instrument string) Reading {
	var (
		idx      Index
		idxErr   error = errNoSource
		change   float64
		trendErr error = errNoSource
	)

	var g errgroup.Group
	if a.index != nil {
		g.Go(func() error {
			idx, idxErr = a.index.Index(ctx)
			return nil
		})
	}
	if a.trend != nil {
		g.Go(func() error {
			change, trendErr = a.trend.Change24h(ctx, instrument)
			return nil
		})
	}
	_ = g.Wait()

	reading := Reading{}
	if idxErr == nil {
		reading.Score = IndexScore(idx.Value)
		reading.Confidence = indexConfidence
		reading.Sources = append(reading.Sources, SourceFearGreed)
		reading.Keywords = append(reading.Keywords, indexKeywords(idx)...)
	} else {
		a.log.Warn().Err(idxErr).Str("symbol", instrument).Msg("fear & greed index unavailable, using basic analysis")
		reading.Confidence = fallbackConfidence
		reading.Sources = append(reading.Sources, SourceBasic)
	}

	if trendErr == nil {
		reading.Score += change / 100 * trendWeight
		reading.Sources = append(reading.Sources, SourceTrend)
		reading.Keywords = append(reading.Keywords, trendKeyword(change))
	} else {
		a.log.Warn().Err(trendErr).Str("symbol", instrument).Msg("24h trend unavailable")
	}

	reading.Score = clamp(reading.Score, -1, 1)
	reading.Keywords = lo.Uniq(reading.Keywords)
	if len(reading.Keywords) > maxKeywords {
		reading.Keywords = reading.Keywords[:maxKeywords]
	}
	return reading
}

// IndexScore maps a 0-100 fear & greed value to a contrarian score.
func IndexScore(value int) float64 {
	switch {
	case value < 20:
		return 0.6
	case value < 40:
		return 0.3
	case value < 60:
		return 0
	case value <= 80:
		return -0.3
	default:
		return -0.6
	}
}

func indexKeywords(idx Index) []string {
	var out []string
	if c := strings.ToLower(strings.TrimSpace(idx.Classification)); c != "" {
		out = append(out, c)
	}
	switch score := IndexScore(idx.Value); {
	case score > 0:
		out = append(out, "contrarian buy")
	case score < 0:
		out = append(out, "contrarian sell")
	}
	return out
}

func trendKeyword(change float64) string {
	switch {
	case change > 0:
		return "bullish momentum"
	case change < 0:
		return "bearish momentum"
	default:
		return "flat trend"
	}
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
