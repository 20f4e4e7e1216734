package main

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"tradebot-go/internal/bot"
	"tradebot-go/internal/config"
	"tradebot-go/internal/execution"
	"tradebot-go/internal/generator"
	"tradebot-go/internal/marketdata"
	"tradebot-go/internal/paper"
	"tradebot-go/internal/pattern"
	"tradebot-go/internal/risk"
	"tradebot-go/internal/sentiment"
	"tradebot-go/internal/sink"
	"tradebot-go/internal/strategy"
	"tradebot-go/internal/venue"
)

// app holds every wired component for one process.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	stream  *marketdata.TickerStream
	gen     *generator.Generator
	venue   venue.Venue
	sink    sink.Sink
	catalog *strategy.Catalog
}

func loadCatalog(cfg *config.Config) (*strategy.Catalog, error) {
	if cfg.Strategies.CatalogPath == "" {
		return strategy.Default(), nil
	}
	return strategy.LoadFile(cfg.Strategies.CatalogPath)
}

// build wires the decision pipeline. withSink is false for read-only commands.
func build(ctx context.Context, cfg *config.Config, log zerolog.Logger, withSink bool) (*app, error) {
	secrets, err := config.LoadSecrets(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckSecrets(secrets); err != nil {
		return nil, err
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, catalog: catalog}

	marketClient := binance.NewClient("", "")
	if cfg.Market.BaseURL != "" {
		marketClient.BaseURL = cfg.Market.BaseURL
	}
	opts := []marketdata.Option{
		marketdata.WithKlineInterval(cfg.Market.KlineInterval),
		marketdata.WithHistoryLimit(cfg.Market.HistoryLimit),
		marketdata.WithTimeout(config.Millis(cfg.Market.TimeoutMs)),
	}
	if cfg.Market.Stream.Enabled {
		symbols := lo.Uniq(lo.Map(cfg.Bots, func(b config.Bot, _ int) string { return strings.ToUpper(b.Instrument) }))
		if len(symbols) > 0 {
			a.stream = marketdata.NewTickerStream(cfg.Market.Stream.URL, symbols, config.Millis(cfg.Market.Stream.MaxAgeMs), log)
			opts = append(opts, marketdata.WithTickerStream(a.stream))
		}
	}
	market := marketdata.NewBinanceProvider(marketClient, log, opts...)

	fng := sentiment.NewFearGreedClient(cfg.Sentiment.FearGreedURL, config.Millis(cfg.Sentiment.TimeoutMs), config.Millis(cfg.Sentiment.RetryWaitMs))
	analyzer := sentiment.NewAnalyzer(fng, market, log)
	classifier := pattern.NewTrendClassifier(cfg.Pattern.Window, cfg.Pattern.Seed)

	a.venue, err = buildVenue(cfg, secrets)
	if err != nil {
		return nil, err
	}
	a.gen = generator.New(market, analyzer, classifier, catalog, venue.BalanceSource{Venue: a.venue}, log)

	if withSink {
		a.sink, err = buildSink(cfg)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func buildVenue(cfg *config.Config, secrets config.Secrets) (venue.Venue, error) {
	switch cfg.Venue.Name {
	case "paper":
		account := paper.NewAccount(cfg.Paper.StartingCash, cfg.Paper.MaxPositionPerSymbol)
		return venue.NewPaper(account, cfg.Paper.QuoteAsset), nil
	case "binance":
		bc := cfg.Venue.Binance
		client := binance.NewClient(secrets.BinanceAPIKey, secrets.BinanceAPISecret)
		if bc.BaseURL != "" {
			client.BaseURL = bc.BaseURL
		}
		return venue.NewBinance(client,
			venue.WithQuoteAsset(bc.QuoteAsset),
			venue.WithQuantityPrecision(bc.QuantityPrecision),
			venue.WithDryRun(bc.DryRun),
			venue.WithCallTimeout(config.Millis(bc.TimeoutMs)),
		), nil
	case "jupiter":
		jc := cfg.Venue.Jupiter
		owner, err := solana.PrivateKeyFromBase58(secrets.SolanaPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("parse SOLANA_PRIVATE_KEY_BASE58: %w", err)
		}
		return venue.NewJupiter(jc.RPCURL, jc.APIBase, owner, config.Millis(jc.TimeoutMs),
			venue.WithJupiterQuoteAsset(jc.QuoteAsset),
			venue.WithSlippageBps(jc.SlippageBps),
			venue.WithCommitment(jc.Commitment),
			venue.WithQuoteOnly(jc.QuoteOnly),
		), nil
	}
	return nil, fmt.Errorf("unknown venue %q", cfg.Venue.Name)
}

func buildSink(cfg *config.Config) (sink.Sink, error) {
	var sinks sink.Multi
	if path := cfg.Sink.JSONLPath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sink dir: %w", err)
		}
		j, err := sink.NewJSONL(path)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, j)
	}
	if kc := cfg.Sink.Kafka; len(kc.Brokers) > 0 {
		writer := sink.NewKafkaWriter(kc.Brokers, config.Millis(kc.WriteTimeoutMs))
		sinks = append(sinks, sink.NewKafka(writer, kc.TradeTopic, kc.NotificationTopic))
	}
	if len(sinks) == 0 {
		return sink.NewMemory(1000), nil
	}
	return sinks, nil
}

// factory builds each runner on its own collaborators.
func (a *app) factory() bot.Factory {
	return func(cfg bot.Config) (*bot.Runner, error) {
		gen, exec := a.botDeps(cfg.UserID, cfg.Instrument)
		return bot.NewRunner(cfg, gen, exec, a.log)
	}
}

// botDeps gives a bot its own pattern classifier, seeded from its key, and on
// the paper venue its own account. Live venues trade one external account, so
// their balance is shared by every bot on it.
func (a *app) botDeps(userID, instrument string) (*generator.Generator, *execution.Executor) {
	key := bot.NewKey(userID, instrument)
	v := a.venue
	if a.cfg.Venue.Name == "paper" {
		v = venue.NewPaper(paper.NewAccount(a.cfg.Paper.StartingCash, a.cfg.Paper.MaxPositionPerSymbol), a.cfg.Paper.QuoteAsset)
	}
	gen := a.gen.
		WithClassifier(pattern.NewTrendClassifier(a.cfg.Pattern.Window, botSeed(a.cfg.Pattern.Seed, key))).
		WithBalance(venue.BalanceSource{Venue: v})
	var exec *execution.Executor
	if a.sink != nil {
		exec = execution.NewExecutor(v, a.sink, risk.Limits{MaxNotionalPerTrade: a.cfg.Risk.MaxNotionalPerTrade}, a.log)
	}
	return gen, exec
}

func botSeed(base uint64, key bot.Key) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key.UserID + "/" + key.Instrument))
	return base ^ h.Sum64()
}

func (a *app) close() error {
	if a.sink == nil {
		return nil
	}
	if err := a.sink.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
