// Package generator runs one decision cycle: fetch, analyze, fuse, size.
package generator

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tradebot-go/internal/fusion"
	"tradebot-go/internal/indicator"
	"tradebot-go/internal/marketdata"
	"tradebot-go/internal/metrics"
	"tradebot-go/internal/pattern"
	"tradebot-go/internal/risk"
	"tradebot-go/internal/sentiment"
	"tradebot-go/internal/signal"
	"tradebot-go/internal/strategy"
)

// BalanceSource reports the free balance positions are sized against.
type BalanceSource interface {
	Balance(ctx context.Context) (float64, error)
}

// FixedBalance is a constant balance, for dry runs and tests.
type FixedBalance float64

func (f FixedBalance) Balance(context.Context) (float64, error) { return float64(f), nil }

// SentimentSource produces a reading for an instrument. It must not fail.
type SentimentSource interface {
	Analyze(ctx context.Context, instrument string) sentiment.Reading
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// Generator wires the data sources to fusion and risk sizing.
type Generator struct {
	market    marketdata.Provider
	sentiment SentimentSource
	pattern   pattern.Classifier
	catalog   *strategy.Catalog
	balance   BalanceSource
	log       zerolog.Logger
	now       func() time.Time
}

// New builds a generator. Every collaborator is required.
func New(market marketdata.Provider, sent SentimentSource, classifier pattern.Classifier, catalog *strategy.Catalog, balance BalanceSource, log zerolog.Logger, opts ...Option) *Generator {
	g := &Generator{
		market:    market,
		sentiment: sent,
		pattern:   classifier,
		catalog:   catalog,
		balance:   balance,
		log:       log.With().Str("component", "generator").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithBalance returns a copy sizing against b; the original is unchanged.
func (g *Generator) WithBalance(b BalanceSource) *Generator {
	cp := *g
	cp.balance = b
	return &cp
}

// WithClassifier returns a copy classifying with c; the original is unchanged.
func (g *Generator) WithClassifier(c pattern.Classifier) *Generator {
	cp := *g
	cp.pattern = c
	return &cp
}

// Catalog exposes the strategy catalog the generator resolves names against.
func (g *Generator) Catalog() *strategy.Catalog { return g.catalog }

// Generate returns a sized signal, or nil when there is nothing to trade.
// The error is non-nil only for configuration problems: an unknown strategy
// or an instrument the strategy does not target. Data failures, holds,
// low confidence and panics all yield nil, nil and a log line.
func (g *Generator) Generate(ctx context.Context, instrument, strategyName string) (sig *signal.TradingSignal, err error) {
	profile, err := g.catalog.Resolve(strategyName, instrument)
	if err != nil {
		return nil, err
	}
	instrument = strings.ToUpper(strings.TrimSpace(instrument))
	log := g.log.With().Str("sym", instrument).Str("strategy", profile.Name).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("signal generation panicked")
			sig, err = nil, nil
		}
	}()

	series, err := g.market.Fetch(ctx, instrument)
	if err != nil && ctx.Err() != nil {
		log.Debug().Err(err).Msg("fetch canceled")
		return nil, nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("market data unavailable, skipping cycle")
		return nil, nil
	}

	ind := indicator.Compute(series.Closes)
	sent := g.sentiment.Analyze(ctx, instrument)
	pat := g.pattern.Classify(series.Closes)

	decision := fusion.Decide(ind, sent, pat, profile, series.Current)
	if decision == nil {
		log.Debug().Float64("rsi", ind.RSI).Float64("sentiment", sent.Score).Str("pattern", string(pat.Label)).Msg("hold")
		return nil, nil
	}
	if decision.Confidence < profile.MinConfidence {
		log.Info().Str("action", string(decision.Action)).Float64("confidence", decision.Confidence).
			Float64("min_confidence", profile.MinConfidence).Msg("below confidence threshold")
		return nil, nil
	}

	balance, err := g.balance.Balance(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("balance unavailable, cannot size position")
		return nil, nil
	}

	volatility := series.Volatility()
	entry := decision.EntryPrice
	notional := risk.PositionSize(balance, profile.MaxRiskPerTrade, decision.Confidence, volatility)
	if notional <= 0 {
		log.Info().Float64("balance", balance).Msg("no capital to allocate")
		return nil, nil
	}

	sig = &signal.TradingSignal{
		Instrument:   instrument,
		Action:       decision.Action,
		Confidence:   decision.Confidence,
		EntryPrice:   entry,
		StopLoss:     risk.StopLoss(decision.Action, entry, volatility, profile.RiskTier),
		TakeProfit:   risk.TakeProfit(decision.Action, entry, decision.Confidence, profile.RiskTier),
		Quantity:     notional / entry,
		Notional:     notional,
		Reasoning:    decision.Reasoning,
		StrategyName: profile.Name,
		RiskScore:    risk.Score(decision.Confidence, volatility, series.ChangeFraction()),
		GeneratedAt:  g.now(),
	}
	metrics.SignalsTotal.WithLabelValues(instrument, string(sig.Action)).Inc()
	log.Info().Str("action", string(sig.Action)).Float64("confidence", sig.Confidence).
		Float64("entry", sig.EntryPrice).Float64("qty", sig.Quantity).Float64("risk_score", sig.RiskScore).Msg("signal")
	return sig, nil
}
