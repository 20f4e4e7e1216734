package venue

import (
	"context"
	"testing"

	"tradebot-go/internal/paper"
	"tradebot-go/internal/signal"
)

func TestPaperRoundTrip(t *testing.T) {
	v := NewPaper(paper.NewAccount(1000, 0), "USDT")
	ctx := context.Background()

	if resp := v.TestConnection(ctx); !resp.Success {
		t.Fatalf("paper connection should always succeed: %+v", resp)
	}
	resp := v.PlaceTrade(ctx, TradeRequest{Symbol: "ethusdt", Side: signal.Buy, Type: Market, Quantity: 2, Price: 100})
	if !resp.Success {
		t.Fatalf("expected fill, got %+v", resp)
	}
	order := resp.Data.(OrderResult)
	if order.Symbol != "ETHUSDT" || order.Status != "FILLED" || order.OrderID == "" {
		t.Fatalf("unexpected order %+v", order)
	}
	bal := v.GetBalance(ctx).Data.(Balance)
	if bal.Free != 800 || bal.Asset != "USDT" {
		t.Fatalf("unexpected balance %+v", bal)
	}
	if v.Account().Position("ETHUSDT") != 2 {
		t.Fatalf("expected position of 2")
	}
}

func TestPaperRejects(t *testing.T) {
	v := NewPaper(paper.NewAccount(100, 0), "")
	ctx := context.Background()
	cases := []TradeRequest{
		{Symbol: "BTCUSDT", Side: signal.Buy, Type: Market, Quantity: 1},
		{Symbol: "BTCUSDT", Side: signal.Buy, Type: Market, Quantity: 1, Price: 500},
		{Symbol: "BTCUSDT", Side: signal.Sell, Type: Market, Quantity: 1, Price: 50},
	}
	for i, req := range cases {
		if resp := v.PlaceTrade(ctx, req); resp.Success || resp.Error == "" {
			t.Fatalf("case %d: expected rejection, got %+v", i, resp)
		}
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if resp := v.PlaceTrade(canceled, TradeRequest{Symbol: "BTCUSDT", Side: signal.Buy, Type: Market, Quantity: 0.1, Price: 10}); resp.Success {
		t.Fatalf("expected canceled context to reject")
	}
}
