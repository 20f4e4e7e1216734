package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sethvargo/go-envconfig"
)

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "tradebot-test" || cfg.App.Env != "staging" || cfg.App.MetricsAddr != ":9200" {
		t.Fatalf("unexpected app section: %+v", cfg.App)
	}
	if cfg.App.ControlAddr != ":8080" {
		t.Fatalf("expected default control addr, got %s", cfg.App.ControlAddr)
	}
	if cfg.Market.KlineInterval != "15m" || cfg.Market.HistoryLimit != 200 || cfg.Market.TimeoutMs != 10000 {
		t.Fatalf("unexpected market section: %+v", cfg.Market)
	}
	if !cfg.Market.Stream.Enabled || cfg.Market.Stream.MaxAgeMs != 3000 || cfg.Market.Stream.URL == "" {
		t.Fatalf("unexpected stream section: %+v", cfg.Market.Stream)
	}
	if cfg.Sentiment.RetryWaitMs != 250 || cfg.Sentiment.FearGreedURL != "https://api.alternative.me" {
		t.Fatalf("unexpected sentiment section: %+v", cfg.Sentiment)
	}
	if cfg.Venue.Name != "jupiter" || cfg.Venue.Jupiter.Commitment != "processed" || cfg.Venue.Jupiter.SlippageBps != 75 {
		t.Fatalf("unexpected venue section: %+v", cfg.Venue)
	}
	if !cfg.Venue.Jupiter.QuoteOnly || !cfg.Venue.Binance.DryRun {
		t.Fatalf("venues should default to non-live modes: %+v", cfg.Venue)
	}
	if cfg.Venue.Jupiter.QuoteAsset != "USDT" {
		t.Fatalf("jupiter should size against the catalog's USDT quote, got %s", cfg.Venue.Jupiter.QuoteAsset)
	}
	if cfg.Paper.StartingCash != 5000 || cfg.Paper.QuoteAsset != "USDT" {
		t.Fatalf("unexpected paper section: %+v", cfg.Paper)
	}
	if cfg.Risk.MaxNotionalPerTrade != 250 {
		t.Fatalf("unexpected risk section: %+v", cfg.Risk)
	}
	if len(cfg.Sink.Kafka.Brokers) != 1 || cfg.Sink.Kafka.TradeTopic != "tradebot.trades" {
		t.Fatalf("unexpected sink section: %+v", cfg.Sink)
	}
	if len(cfg.Bots) != 2 {
		t.Fatalf("expected 2 bots, got %d", len(cfg.Bots))
	}
	if cfg.Bots[0].IntervalMs != 30000 || cfg.Bots[1].IntervalMs != 60000 {
		t.Fatalf("unexpected bot intervals: %+v", cfg.Bots)
	}
	if Millis(cfg.Bots[1].IntervalMs).Seconds() != 60 {
		t.Fatalf("Millis conversion broken")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.Venue.Name != "paper" || cfg.Paper.StartingCash != 10000 || cfg.Pattern.Window != 20 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"venue":    "venue:\n  name: ftx\n",
		"interval": "market:\n  kline_interval: 7m\n",
		"bot":      "bots:\n  - user_id: a\n    instrument: BTCUSDT\n",
		"cash":     "paper:\n  starting_cash: -1\n",
		"yaml":     "app: [",
	}
	for name, body := range cases {
		if _, err := Parse([]byte(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.App.Name = "saved"
	cfg.Bots = []Bot{{UserID: "u", Instrument: "ETHUSDT", Strategy: "ETH Moderate", IntervalMs: 45000}}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.App.Name != "saved" || loaded.Bots[0].IntervalMs != 45000 {
		t.Fatalf("round trip lost data: %+v", loaded)
	}
	if err := Save(path, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestSecrets(t *testing.T) {
	lookuper := envconfig.MapLookuper(map[string]string{
		"BINANCE_API_KEY":    "k",
		"BINANCE_API_SECRET": "s",
	})
	secrets, err := LoadSecretsFrom(context.Background(), lookuper)
	if err != nil {
		t.Fatalf("LoadSecretsFrom: %v", err)
	}
	if secrets.BinanceAPIKey != "k" || secrets.SolanaPrivateKey != "" {
		t.Fatalf("unexpected secrets %+v", secrets)
	}

	cfg := Default()
	cfg.Venue.Name = "binance"
	if err := cfg.CheckSecrets(secrets); err != nil {
		t.Fatalf("binance secrets present: %v", err)
	}
	cfg.Venue.Name = "jupiter"
	if err := cfg.CheckSecrets(secrets); err == nil || !strings.Contains(err.Error(), "SOLANA") {
		t.Fatalf("expected missing solana key, got %v", err)
	}
	cfg.Venue.Name = "paper"
	if err := cfg.CheckSecrets(Secrets{}); err != nil {
		t.Fatalf("paper needs no secrets: %v", err)
	}
}
