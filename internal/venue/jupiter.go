package venue

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/bytedance/sonic"
	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"tradebot-go/internal/signal"
)

// DefaultJupiterURL is the public swap API.
const DefaultJupiterURL = "https://quote-api.jup.ag"

// Token identifies an SPL mint and its decimals.
type Token struct {
	Mint     solana.PublicKey
	Decimals int32
}

var wrappedSOL = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// DefaultTokens covers the symbols the jupiter venue can split out of an
// instrument such as SOLUSDC.
var DefaultTokens = map[string]Token{
	"SOL":  {Mint: wrappedSOL, Decimals: 9},
	"USDC": {Mint: solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"), Decimals: 6},
	"USDT": {Mint: solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"), Decimals: 6},
}

// JupiterOption configures the jupiter venue.
type JupiterOption func(*Jupiter)

// WithTokens replaces the symbol to mint table.
func WithTokens(tokens map[string]Token) JupiterOption {
	return func(j *Jupiter) {
		if len(tokens) > 0 {
			j.tokens = tokens
		}
	}
}

// WithSlippageBps sets the quote slippage tolerance.
func WithSlippageBps(bps int) JupiterOption {
	return func(j *Jupiter) {
		if bps > 0 {
			j.slippageBps = bps
		}
	}
}

// WithJupiterQuoteAsset sets which token GetBalance reports (default USDT).
func WithJupiterQuoteAsset(asset string) JupiterOption {
	return func(j *Jupiter) {
		if asset != "" {
			j.quoteAsset = strings.ToUpper(asset)
		}
	}
}

// WithCommitment picks processed, confirmed or finalized.
func WithCommitment(commit string) JupiterOption {
	return func(j *Jupiter) {
		switch commit {
		case "processed":
			j.commit = rpc.CommitmentProcessed
		case "finalized":
			j.commit = rpc.CommitmentFinalized
		case "confirmed":
			j.commit = rpc.CommitmentConfirmed
		}
	}
}

// WithQuoteOnly stops after quoting; nothing is signed or sent.
func WithQuoteOnly(enabled bool) JupiterOption {
	return func(j *Jupiter) { j.quoteOnly = enabled }
}

// Jupiter swaps SPL tokens through the Jupiter aggregator and signs locally.
type Jupiter struct {
	api         *resty.Client
	rpc         *rpc.Client
	owner       solana.PrivateKey
	commit      rpc.CommitmentType
	tokens      map[string]Token
	quoteAsset  string
	slippageBps int
	quoteOnly   bool
	timeout     time.Duration
}

type jupiterQuote struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	SwapMode       string `json:"swapMode"`
	SlippageBps    int    `json:"slippageBps"`
	PriceImpactPct string `json:"priceImpactPct"`
}

// NewJupiter builds a venue bound to owner's wallet.
func NewJupiter(rpcURL, apiBase string, owner solana.PrivateKey, timeout time.Duration, opts ...JupiterOption) *Jupiter {
	if apiBase == "" {
		apiBase = DefaultJupiterURL
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	j := &Jupiter{
		api: resty.New().
			SetBaseURL(strings.TrimSuffix(apiBase, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		rpc:         rpc.New(rpcURL),
		owner:       owner,
		commit:      rpc.CommitmentConfirmed,
		tokens:      DefaultTokens,
		quoteAsset:  "USDT",
		slippageBps: 50,
		timeout:     timeout,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Jupiter) Name() string { return "jupiter" }

func (j *Jupiter) TestConnection(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	health, err := j.rpc.GetHealth(ctx)
	if err != nil {
		return Fail(fmt.Errorf("solana rpc health: %w", err))
	}
	return OK(map[string]any{"venue": j.Name(), "rpc": health, "wallet": j.owner.PublicKey().String()})
}

func (j *Jupiter) GetBalance(ctx context.Context) Response {
	token, ok := j.tokens[j.quoteAsset]
	if !ok {
		return Fail(fmt.Errorf("no mint configured for %s", j.quoteAsset))
	}
	owner := j.owner.PublicKey()
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if token.Mint.Equals(wrappedSOL) {
		res, err := j.rpc.GetBalance(ctx, owner, j.commit)
		if err != nil {
			return Fail(fmt.Errorf("solana balance: %w", err))
		}
		return OK(Balance{Asset: j.quoteAsset, Free: fromUnits(decimal.NewFromInt(int64(res.Value)), token.Decimals)})
	}

	ata, _, err := solana.FindAssociatedTokenAddress(owner, token.Mint)
	if err != nil {
		return Fail(fmt.Errorf("derive token account: %w", err))
	}
	res, err := j.rpc.GetTokenAccountBalance(ctx, ata, j.commit)
	if err != nil {
		return Fail(fmt.Errorf("token balance: %w", err))
	}
	if res == nil || res.Value == nil {
		return OK(Balance{Asset: j.quoteAsset})
	}
	amount, err := decimal.NewFromString(res.Value.Amount)
	if err != nil {
		return Fail(fmt.Errorf("token amount %q: %w", res.Value.Amount, err))
	}
	return OK(Balance{Asset: j.quoteAsset, Free: fromUnits(amount, int32(res.Value.Decimals))})
}

// PlaceTrade quotes and swaps. BUY spends the quote token for an exact base
// amount, SELL sells an exact base amount.
func (j *Jupiter) PlaceTrade(ctx context.Context, req TradeRequest) Response {
	if err := req.Validate(); err != nil {
		return Fail(err)
	}
	if req.Type != Market {
		return Fail(errors.New("jupiter supports market orders only"))
	}
	base, quote, err := j.splitSymbol(req.Symbol)
	if err != nil {
		return Fail(err)
	}
	amount := decimal.NewFromFloat(req.Quantity).Shift(base.Decimals).Truncate(0)
	if !amount.IsPositive() {
		return Fail(fmt.Errorf("quantity %v is below one base unit", req.Quantity))
	}

	input, output, mode := quote, base, "ExactOut"
	if req.Side == signal.Sell {
		input, output, mode = base, quote, "ExactIn"
	}
	q, raw, err := j.quote(ctx, input.Mint, output.Mint, amount.String(), mode)
	if err != nil {
		return Fail(err)
	}

	result := OrderResult{
		Venue:    j.Name(),
		Symbol:   strings.ToUpper(req.Symbol),
		Side:     req.Side,
		Quantity: req.Quantity,
		Price:    quotePrice(q, req.Side, base, quote),
		Status:   "QUOTED",
	}
	if j.quoteOnly {
		return OK(result)
	}

	sig, err := j.swap(ctx, raw)
	if err != nil {
		return Fail(err)
	}
	result.OrderID = sig.String()
	result.Status = "SUBMITTED"
	return OK(result)
}

func (j *Jupiter) quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount, mode string) (jupiterQuote, map[string]any, error) {
	resp, err := j.api.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":        inputMint.String(),
			"outputMint":       outputMint.String(),
			"amount":           amount,
			"swapMode":         mode,
			"slippageBps":      strconv.Itoa(j.slippageBps),
			"onlyDirectRoutes": "false",
		}).
		Get("/v6/quote")
	if err != nil {
		return jupiterQuote{}, nil, fmt.Errorf("jupiter quote: %w", err)
	}
	if resp.StatusCode() != 200 {
		return jupiterQuote{}, nil, fmt.Errorf("jupiter quote status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	var q jupiterQuote
	if err := json.Unmarshal(resp.Body(), &q); err != nil {
		return jupiterQuote{}, nil, fmt.Errorf("decode quote: %w", err)
	}
	// the swap endpoint wants the quote back verbatim
	var raw map[string]any
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return jupiterQuote{}, nil, fmt.Errorf("decode quote: %w", err)
	}
	return q, raw, nil
}

// swap asks Jupiter for a ready-to-sign transaction, signs it with the owner
// key and submits it over RPC.
func (j *Jupiter) swap(ctx context.Context, quote map[string]any) (solana.Signature, error) {
	body, err := json.Marshal(map[string]any{
		"userPublicKey":             j.owner.PublicKey().String(),
		"wrapAndUnwrapSol":          true,
		"asLegacyTransaction":       false,
		"prioritizationFeeLamports": 0,
		"quoteResponse":             quote,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("encode swap: %w", err)
	}
	resp, err := j.api.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/v6/swap")
	if err != nil {
		return solana.Signature{}, fmt.Errorf("jupiter swap: %w", err)
	}
	if resp.StatusCode() != 200 {
		return solana.Signature{}, fmt.Errorf("jupiter swap status %d", resp.StatusCode())
	}
	var sr struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(resp.Body(), &sr); err != nil {
		return solana.Signature{}, fmt.Errorf("decode swap: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(sr.SwapTransaction)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("decode tx: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("unmarshal tx: %w", err)
	}
	owner := j.owner.PublicKey()
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(owner) {
			return &j.owner
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign: %w", err)
	}
	sendCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	sig, err := j.rpc.SendTransactionWithOpts(sendCtx, tx, rpc.TransactionOpts{PreflightCommitment: j.commit})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send tx: %w", err)
	}
	return sig, nil
}

// splitSymbol resolves SOLUSDC into its base and quote tokens.
func (j *Jupiter) splitSymbol(symbol string) (Token, Token, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for name, quote := range j.tokens {
		if !strings.HasSuffix(symbol, name) || len(symbol) == len(name) {
			continue
		}
		if base, ok := j.tokens[strings.TrimSuffix(symbol, name)]; ok {
			return base, quote, nil
		}
	}
	return Token{}, Token{}, fmt.Errorf("no token pair for %q", symbol)
}

// quotePrice is the implied quote-per-base price of a quote.
func quotePrice(q jupiterQuote, side signal.Action, base, quote Token) float64 {
	in, errIn := decimal.NewFromString(q.InAmount)
	out, errOut := decimal.NewFromString(q.OutAmount)
	if errIn != nil || errOut != nil {
		return 0
	}
	baseAmt, quoteAmt := fromUnitsDec(out, base.Decimals), fromUnitsDec(in, quote.Decimals)
	if side == signal.Sell {
		baseAmt, quoteAmt = fromUnitsDec(in, base.Decimals), fromUnitsDec(out, quote.Decimals)
	}
	if baseAmt.IsZero() {
		return 0
	}
	return quoteAmt.Div(baseAmt).InexactFloat64()
}

func fromUnitsDec(v decimal.Decimal, decimals int32) decimal.Decimal {
	return v.Shift(-decimals)
}

func fromUnits(v decimal.Decimal, decimals int32) float64 {
	return fromUnitsDec(v, decimals).InexactFloat64()
}
