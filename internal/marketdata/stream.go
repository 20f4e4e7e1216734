package marketdata

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tradebot-go/internal/metrics"
)

// DefaultStreamURL is the Binance public websocket endpoint.
const DefaultStreamURL = "wss://stream.binance.com:9443"

// Ticker is the latest 24h rolling statistics for one symbol.
type Ticker struct {
	Symbol    string
	Last      float64
	High      float64
	Low       float64
	Volume    float64
	ChangePct float64
	Ts        time.Time
}

type tickerEnvelope struct {
	Stream string        `json:"stream"`
	Data   tickerPayload `json:"data"`
}

type tickerPayload struct {
	Symbol    string `json:"s"`
	ChangePct string `json:"P"`
	Last      string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	EventTime int64  `json:"E"`
}

// TickerStream keeps the latest <symbol>@ticker snapshot for each tracked symbol.
type TickerStream struct {
	baseURL string
	symbols []string
	maxAge  time.Duration
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	latest map[string]Ticker
}

// NewTickerStream constructs a stream; snapshots older than maxAge are ignored.
func NewTickerStream(baseURL string, symbols []string, maxAge time.Duration, log zerolog.Logger) *TickerStream {
	if baseURL == "" {
		baseURL = DefaultStreamURL
	}
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	normalized := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if sym = normalizeSymbol(sym); sym != "" {
			normalized = append(normalized, sym)
		}
	}
	return &TickerStream{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		symbols: normalized,
		maxAge:  maxAge,
		log:     log.With().Str("component", "ticker_stream").Logger(),
		now:     time.Now,
		latest:  make(map[string]Ticker),
	}
}

// Snapshot returns the latest ticker for symbol if it is fresh enough.
func (s *TickerStream) Snapshot(symbol string) (Ticker, bool) {
	if s == nil {
		return Ticker{}, false
	}
	s.mu.RLock()
	t, ok := s.latest[normalizeSymbol(symbol)]
	s.mu.RUnlock()
	if !ok || s.now().Sub(t.Ts) > s.maxAge || t.Last <= 0 {
		return Ticker{}, false
	}
	return t, true
}

// Run consumes the stream until ctx is canceled, reconnecting with backoff.
func (s *TickerStream) Run(ctx context.Context) error {
	if len(s.symbols) == 0 {
		return fmt.Errorf("ticker stream requires at least one symbol")
	}
	streams := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		streams[i] = strings.ToLower(sym) + "@ticker"
	}
	url := fmt.Sprintf("%s/stream?streams=%s", s.baseURL, strings.Join(streams, "/"))

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.consume(ctx, url)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn().Err(err).Dur("backoff", backoff).Msg("ticker stream disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

func (s *TickerStream) consume(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.log.Info().Strs("symbols", s.symbols).Msg("connected ticker stream")

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	// Unblock ReadMessage when the caller cancels.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if err := s.apply(message); err != nil {
			s.log.Warn().Err(err).Msg("failed to decode ticker message")
		}
	}
}

func (s *TickerStream) apply(message []byte) error {
	var env tickerEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return err
	}
	data := env.Data
	symbol := normalizeSymbol(data.Symbol)
	if symbol == "" {
		symbol = parseStreamSymbol(env.Stream)
	}
	if symbol == "" {
		return fmt.Errorf("ticker message without symbol")
	}

	t := Ticker{Symbol: symbol, Ts: s.now()}
	var err error
	if t.Last, err = parseDecimal("c", data.Last); err != nil {
		return err
	}
	if t.High, err = parseDecimal("h", data.High); err != nil {
		return err
	}
	if t.Low, err = parseDecimal("l", data.Low); err != nil {
		return err
	}
	if t.Volume, err = parseDecimal("v", data.Volume); err != nil {
		return err
	}
	if t.ChangePct, err = parseDecimal("P", data.ChangePct); err != nil {
		return err
	}

	s.mu.Lock()
	s.latest[symbol] = t
	s.mu.Unlock()
	metrics.TicksTotal.WithLabelValues(symbol).Inc()
	return nil
}

func parseStreamSymbol(stream string) string {
	parts := strings.Split(stream, "@")
	if len(parts) == 0 || parts[0] == "" {
		return strings.ToUpper(stream)
	}
	return strings.ToUpper(parts[0])
}
