package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"tradebot-go/internal/bot"
	"tradebot-go/internal/generator"
	"tradebot-go/internal/marketdata"
	"tradebot-go/internal/paper"
	"tradebot-go/internal/pattern"
	"tradebot-go/internal/sentiment"
	"tradebot-go/internal/strategy"
	"tradebot-go/internal/venue"
)

type risingMarket struct{}

func (risingMarket) Fetch(_ context.Context, symbol string) (*marketdata.PriceSeries, error) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return &marketdata.PriceSeries{Symbol: symbol, Closes: closes, Current: 159, High24h: 160, Low24h: 150}, nil
}

type calmSentiment struct{}

func (calmSentiment) Analyze(context.Context, string) sentiment.Reading {
	return sentiment.Reading{Score: 0.5, Confidence: 0.8}
}

const catalogYAML = `version: 1
profiles:
  - {name: Momentum, risk_tier: aggressive, min_confidence: 0.3, max_risk_per_trade: 0.05, target_instruments: [BTCUSDT], indicators: [macd]}
  - {name: Other, risk_tier: moderate, min_confidence: 0.3, max_risk_per_trade: 0.05, target_instruments: [BTCUSDT], indicators: [macd]}
`

func newTestServer(t *testing.T) (*Server, *bot.Registry) {
	t.Helper()
	catalog, err := strategy.Parse([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	gen := generator.New(risingMarket{}, calmSentiment{}, pattern.Fixed{Label: pattern.Bullish, Confidence: 0.8},
		catalog, generator.FixedBalance(1000), zerolog.Nop())
	reg := bot.NewRegistry(context.Background(), func(cfg bot.Config) (*bot.Runner, error) {
		return bot.NewRunner(cfg, gen, nil, zerolog.Nop())
	}, zerolog.Nop())
	t.Cleanup(reg.StopAll)
	return New(reg, gen, venue.NewPaper(paper.NewAccount(500, 0), "USDT"), zerolog.Nop()), reg
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, target, err, rec.Body.String())
		}
	}
	return rec, out
}

func TestHealthAndStrategies(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || body["data"].(map[string]any)["status"] != "ok" {
		t.Fatalf("unexpected health %d %v", rec.Code, body)
	}
	rec, body = do(t, s, http.MethodGet, "/strategies", "")
	if rec.Code != http.StatusOK || len(body["data"].([]any)) != 2 {
		t.Fatalf("unexpected strategies %d %v", rec.Code, body)
	}
}

func TestVenueStatus(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := do(t, s, http.MethodGet, "/venue", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	data := body["data"].(map[string]any)
	if data["name"] != "paper" || data["balance"].(map[string]any)["success"] != true {
		t.Fatalf("unexpected venue payload %v", data)
	}
}

func TestBotLifecycle(t *testing.T) {
	s, reg := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/bots", `{"user_id":"alice","instrument":"btcusdt","strategy":"momentum","interval_ms":60000}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", rec.Code, body)
	}
	state := body["data"].(map[string]any)
	if state["running"] != true || state["instrument"] != "BTCUSDT" || state["interval_ms"].(float64) != 60000 {
		t.Fatalf("unexpected state %v", state)
	}

	rec, _ = do(t, s, http.MethodPost, "/bots", `{"user_id":"alice","instrument":"BTCUSDT","strategy":"Momentum","interval_ms":60000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat start should be idempotent, got %d", rec.Code)
	}
	rec, _ = do(t, s, http.MethodPost, "/bots", `{"user_id":"alice","instrument":"BTCUSDT","strategy":"Other"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict, got %d", rec.Code)
	}

	rec, body = do(t, s, http.MethodGet, "/bots", "")
	if rec.Code != http.StatusOK || len(body["data"].([]any)) != 1 {
		t.Fatalf("unexpected list %v", body)
	}
	rec, _ = do(t, s, http.MethodGet, "/bots/alice/btcusdt", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected bot lookup, got %d", rec.Code)
	}

	rec, _ = do(t, s, http.MethodDelete, "/bots/alice/BTCUSDT", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec, _ = do(t, s, http.MethodDelete, "/bots/alice/BTCUSDT", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for stopped bot, got %d", rec.Code)
	}
	if len(reg.List()) != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestStartBotValidation(t *testing.T) {
	s, _ := newTestServer(t)
	cases := map[string]string{
		`{"instrument":"BTCUSDT","strategy":"Momentum"}`:                               "missing user",
		`{"user_id":"a","instrument":"BTCUSDT","strategy":"Momentum","interval_ms":5}`: "interval too short",
		`{"user_id":"a","instrument":"BTCUSDT","strategy":"Ghost"}`:                    "unknown strategy",
		`{"user_id":"a","instrument":"ETHUSDT","strategy":"Momentum"}`:                 "not targeted",
		`{not json`: "bad body",
	}
	for body, name := range cases {
		if rec, _ := do(t, s, http.MethodPost, "/bots", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestSignalEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := do(t, s, http.MethodGet, "/signals/BTCUSDT?strategy=Momentum", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", rec.Code, body)
	}
	sig := body["data"].(map[string]any)["signal"].(map[string]any)
	if sig["action"] != "BUY" || sig["strategy_name"] != "Momentum" {
		t.Fatalf("unexpected signal %v", sig)
	}

	if rec, _ := do(t, s, http.MethodGet, "/signals/BTCUSDT", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without strategy, got %d", rec.Code)
	}
	if rec, _ := do(t, s, http.MethodGet, "/signals/ETHUSDT?strategy=Momentum", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for untargeted instrument, got %d", rec.Code)
	}
}

func TestShutdown(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown on idle server: %v", err)
	}
}
