package venue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"tradebot-go/internal/signal"
)

// BinanceOption configures the Binance venue.
type BinanceOption func(*Binance)

// WithQuoteAsset sets the asset GetBalance reports (default USDT).
func WithQuoteAsset(asset string) BinanceOption {
	return func(b *Binance) {
		if asset != "" {
			b.quoteAsset = strings.ToUpper(asset)
		}
	}
}

// WithQuantityPrecision sets the decimal places quantities are truncated to.
func WithQuantityPrecision(places int32) BinanceOption {
	return func(b *Binance) {
		if places >= 0 {
			b.qtyPlaces = places
		}
	}
}

// WithDryRun routes orders to the validation-only endpoint.
func WithDryRun(enabled bool) BinanceOption {
	return func(b *Binance) { b.dryRun = enabled }
}

// WithCallTimeout bounds each REST call.
func WithCallTimeout(d time.Duration) BinanceOption {
	return func(b *Binance) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// Binance places spot orders through the signed REST API.
type Binance struct {
	client     *binance.Client
	quoteAsset string
	qtyPlaces  int32
	priceScale int32
	dryRun     bool
	timeout    time.Duration
}

// NewBinance wraps an authenticated client.
func NewBinance(client *binance.Client, opts ...BinanceOption) *Binance {
	b := &Binance{client: client, quoteAsset: "USDT", qtyPlaces: 6, priceScale: 8, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) TestConnection(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.client.NewPingService().Do(ctx); err != nil {
		return Fail(fmt.Errorf("binance ping: %w", err))
	}
	return OK(map[string]any{"venue": b.Name(), "dry_run": b.dryRun})
}

func (b *Binance) GetBalance(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return Fail(fmt.Errorf("binance account: %w", err))
	}
	for _, bal := range account.Balances {
		if !strings.EqualFold(bal.Asset, b.quoteAsset) {
			continue
		}
		free, err := strconv.ParseFloat(bal.Free, 64)
		if err != nil {
			return Fail(fmt.Errorf("binance free balance %q: %w", bal.Free, err))
		}
		locked, _ := strconv.ParseFloat(bal.Locked, 64)
		return OK(Balance{Asset: b.quoteAsset, Free: free, Locked: locked})
	}
	return OK(Balance{Asset: b.quoteAsset})
}

func (b *Binance) PlaceTrade(ctx context.Context, req TradeRequest) Response {
	if err := req.Validate(); err != nil {
		return Fail(err)
	}
	qty := decimal.NewFromFloat(req.Quantity).Truncate(b.qtyPlaces)
	if !qty.IsPositive() {
		return Fail(fmt.Errorf("quantity %v rounds to zero at %d places", req.Quantity, b.qtyPlaces))
	}

	symbol := strings.ToUpper(req.Symbol)
	svc := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binanceSide(req)).
		Quantity(qty.String()).
		NewOrderRespType(binance.NewOrderRespTypeRESULT)
	if req.Type == Limit {
		svc = svc.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(decimal.NewFromFloat(req.Price).Truncate(b.priceScale).String())
	} else {
		svc = svc.Type(binance.OrderTypeMarket)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if b.dryRun {
		if err := svc.Test(ctx); err != nil {
			return Fail(fmt.Errorf("binance test order: %w", err))
		}
		return OK(OrderResult{Venue: b.Name(), Symbol: symbol, Side: req.Side, Quantity: qty.InexactFloat64(), Price: req.Price, Status: "TEST"})
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return Fail(fmt.Errorf("binance order: %w", err))
	}
	executed, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	price, _ := strconv.ParseFloat(res.Price, 64)
	if quote, _ := strconv.ParseFloat(res.CummulativeQuoteQuantity, 64); price == 0 && executed > 0 {
		price = quote / executed
	}
	return OK(OrderResult{
		Venue:       b.Name(),
		OrderID:     strconv.FormatInt(res.OrderID, 10),
		Symbol:      res.Symbol,
		Side:        req.Side,
		Quantity:    qty.InexactFloat64(),
		Price:       price,
		Status:      string(res.Status),
		ExecutedQty: executed,
	})
}

func binanceSide(req TradeRequest) binance.SideType {
	if req.Side == signal.Sell {
		return binance.SideTypeSell
	}
	return binance.SideTypeBuy
}
