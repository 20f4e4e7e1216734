package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tradebot-go/internal/metrics"
	"tradebot-go/internal/util"
)

const (
	defaultKlineInterval = "1h"
	defaultHistoryLimit  = 100
	defaultFetchTimeout  = 10 * time.Second
)

// BinanceProvider builds PriceSeries from Binance spot klines and 24h stats.
type BinanceProvider struct {
	client   *binance.Client
	interval string
	limit    int
	timeout  time.Duration
	backoff  util.Backoff
	stream   *TickerStream
	log      zerolog.Logger
}

// Option configures BinanceProvider construction parameters.
type Option func(*BinanceProvider)

// WithKlineInterval overrides the candle interval (e.g. "15m", "1h").
func WithKlineInterval(interval string) Option {
	return func(p *BinanceProvider) {
		if interval = strings.TrimSpace(interval); interval != "" {
			p.interval = interval
		}
	}
}

// WithHistoryLimit sets how many closes are requested per fetch.
func WithHistoryLimit(limit int) Option {
	return func(p *BinanceProvider) {
		if limit > 0 {
			p.limit = limit
		}
	}
}

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(p *BinanceProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithBackoff replaces the retry policy applied to every REST call.
func WithBackoff(b util.Backoff) Option {
	return func(p *BinanceProvider) { p.backoff = b }
}

// WithTickerStream lets fresh websocket snapshots replace the 24h stats call.
func WithTickerStream(stream *TickerStream) Option {
	return func(p *BinanceProvider) { p.stream = stream }
}

// NewBinanceProvider wraps a go-binance spot client.
func NewBinanceProvider(client *binance.Client, log zerolog.Logger, opts ...Option) *BinanceProvider {
	p := &BinanceProvider{
		client:   client,
		interval: defaultKlineInterval,
		limit:    defaultHistoryLimit,
		timeout:  defaultFetchTimeout,
		backoff:  util.DefaultBackoff,
		log:      log.With().Str("component", "marketdata").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch pulls klines and 24h stats concurrently and assembles a validated series.
func (p *BinanceProvider) Fetch(ctx context.Context, symbol string) (*PriceSeries, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var (
		closes []float64
		stats  Ticker
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		closes, err = p.fetchCloses(gctx, symbol)
		if err != nil {
			metrics.ExternalErrorsTotal.WithLabelValues("binance_klines").Inc()
			return fmt.Errorf("klines %s: %w", symbol, err)
		}
		return nil
	})
	g.Go(func() error {
		if snap, ok := p.stream.Snapshot(symbol); ok {
			stats = snap
			return nil
		}
		var err error
		stats, err = p.fetchStats(gctx, symbol)
		if err != nil {
			metrics.ExternalErrorsTotal.WithLabelValues("binance_ticker").Inc()
			return fmt.Errorf("24h stats %s: %w", symbol, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	series := &PriceSeries{
		Symbol:       symbol,
		Closes:       closes,
		Current:      stats.Last,
		High24h:      stats.High,
		Low24h:       stats.Low,
		Volume24h:    stats.Volume,
		ChangePct24h: stats.ChangePct,
		FetchedAt:    time.Now().UTC(),
	}
	if series.Current <= 0 && len(closes) > 0 {
		series.Current = closes[len(closes)-1]
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// Change24h returns the instrument's 24h percent change.
func (p *BinanceProvider) Change24h(ctx context.Context, symbol string) (float64, error) {
	symbol = normalizeSymbol(symbol)
	if snap, ok := p.stream.Snapshot(symbol); ok {
		return snap.ChangePct, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	stats, err := p.fetchStats(ctx, symbol)
	if err != nil {
		metrics.ExternalErrorsTotal.WithLabelValues("binance_ticker").Inc()
		return 0, fmt.Errorf("%w: 24h change %s: %v", ErrUnavailable, symbol, err)
	}
	return stats.ChangePct, nil
}

func (p *BinanceProvider) fetchCloses(ctx context.Context, symbol string) ([]float64, error) {
	klines, err := util.Retry(ctx, p.backoff, func(ctx context.Context) ([]*binance.Kline, error) {
		return p.client.NewKlinesService().Symbol(symbol).Interval(p.interval).Limit(p.limit).Do(ctx)
	})
	if err != nil {
		return nil, err
	}
	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		c, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("parse close %q: %w", k.Close, err)
		}
		closes = append(closes, c)
	}
	return closes, nil
}

func (p *BinanceProvider) fetchStats(ctx context.Context, symbol string) (Ticker, error) {
	list, err := util.Retry(ctx, p.backoff, func(ctx context.Context) ([]*binance.PriceChangeStats, error) {
		return p.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	})
	if err != nil {
		return Ticker{}, err
	}
	for _, st := range list {
		if st == nil || !strings.EqualFold(st.Symbol, symbol) {
			continue
		}
		return parseStats(st)
	}
	return Ticker{}, fmt.Errorf("symbol %s not in 24h stats", symbol)
}

func parseStats(st *binance.PriceChangeStats) (Ticker, error) {
	t := Ticker{Symbol: strings.ToUpper(st.Symbol), Ts: time.Now().UTC()}
	var err error
	if t.Last, err = parseDecimal("lastPrice", st.LastPrice); err != nil {
		return Ticker{}, err
	}
	if t.High, err = parseDecimal("highPrice", st.HighPrice); err != nil {
		return Ticker{}, err
	}
	if t.Low, err = parseDecimal("lowPrice", st.LowPrice); err != nil {
		return Ticker{}, err
	}
	if t.Volume, err = parseDecimal("volume", st.Volume); err != nil {
		return Ticker{}, err
	}
	if t.ChangePct, err = parseDecimal("priceChangePercent", st.PriceChangePercent); err != nil {
		return Ticker{}, err
	}
	return t, nil
}

// parseDecimal treats an empty field as zero.
func parseDecimal(name, raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", name, raw, err)
	}
	return v, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
