package venue

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tradebot-go/internal/paper"
)

// Paper fills orders against a simulated account at the request price.
type Paper struct {
	account    *paper.Account
	quoteAsset string
}

// NewPaper wraps account. quoteAsset only labels balances.
func NewPaper(account *paper.Account, quoteAsset string) *Paper {
	if quoteAsset == "" {
		quoteAsset = "USDT"
	}
	return &Paper{account: account, quoteAsset: quoteAsset}
}

func (p *Paper) Name() string { return "paper" }

// Account exposes the simulated account for snapshots.
func (p *Paper) Account() *paper.Account { return p.account }

func (p *Paper) TestConnection(context.Context) Response {
	return OK(map[string]any{"venue": p.Name(), "starting_cash": p.account.StartingCash()})
}

func (p *Paper) GetBalance(context.Context) Response {
	return OK(Balance{Asset: p.quoteAsset, Free: p.account.AvailableCash()})
}

func (p *Paper) PlaceTrade(ctx context.Context, req TradeRequest) Response {
	if err := req.Validate(); err != nil {
		return Fail(err)
	}
	if req.Price <= 0 {
		return Fail(fmt.Errorf("paper fill needs a reference price"))
	}
	if err := ctx.Err(); err != nil {
		return Fail(err)
	}
	fill, err := p.account.MarketFill(req.Symbol, req.Side, req.Quantity, req.Price)
	if err != nil {
		return Fail(err)
	}
	return OK(OrderResult{
		Venue:       p.Name(),
		OrderID:     uuid.NewString(),
		Symbol:      fill.Symbol,
		Side:        fill.Side,
		Quantity:    fill.Qty,
		Price:       fill.Price,
		Status:      "FILLED",
		ExecutedQty: fill.Qty,
	})
}
