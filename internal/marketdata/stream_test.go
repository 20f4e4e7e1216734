package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestParseStreamSymbol(t *testing.T) {
	cases := map[string]string{
		"btcusdt@ticker": "BTCUSDT",
		"ethusdt@trade":  "ETHUSDT",
		"dogeusdt":       "DOGEUSDT",
		"":               "",
	}
	for stream, expected := range cases {
		if got := parseStreamSymbol(stream); got != expected {
			t.Fatalf("expected %s got %s", expected, got)
		}
	}
}

func TestSnapshotStaleness(t *testing.T) {
	stream := NewTickerStream("", []string{"BTCUSDT"}, time.Minute, zerolog.Nop())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	stream.now = func() time.Time { return now }

	if err := stream.apply([]byte(`{"stream":"btcusdt@ticker","data":{"c":"100","h":"101","l":"99","v":"1","P":"0.5"}}`)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if snap, ok := stream.Snapshot("btcusdt"); !ok || snap.Last != 100 {
		t.Fatalf("expected fresh snapshot, got %+v ok=%v", snap, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := stream.Snapshot("BTCUSDT"); ok {
		t.Fatalf("expected stale snapshot to be ignored")
	}

	var nilStream *TickerStream
	if _, ok := nilStream.Snapshot("BTCUSDT"); ok {
		t.Fatalf("nil stream must report no snapshot")
	}
}

func TestApplyRejectsGarbage(t *testing.T) {
	stream := NewTickerStream("", []string{"BTCUSDT"}, time.Minute, zerolog.Nop())
	if err := stream.apply([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := stream.apply([]byte(`{"stream":"","data":{"c":"1"}}`)); err == nil {
		t.Fatalf("expected missing symbol error")
	}
	if err := stream.apply([]byte(`{"stream":"btcusdt@ticker","data":{"c":"abc"}}`)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRunConsumesWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("streams") != "ethusdt@ticker" {
			t.Errorf("unexpected streams %q", r.URL.Query().Get("streams"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"stream":"ethusdt@ticker","data":{"s":"ETHUSDT","c":"2500","h":"2600","l":"2400","v":"10","P":"3.1"}}`))
		// Hold the connection open until the client leaves.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	stream := NewTickerStream(wsURL, []string{"ethusdt"}, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- stream.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		if snap, ok := stream.Snapshot("ETHUSDT"); ok {
			if snap.Last != 2500 || snap.ChangePct != 3.1 {
				t.Fatalf("unexpected snapshot %+v", snap)
			}
			break
		}
		select {
		case <-deadline:
			cancel()
			t.Fatalf("timed out waiting for ticker snapshot")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not stop after cancel")
	}
}

func TestRunRequiresSymbols(t *testing.T) {
	stream := NewTickerStream("", nil, time.Minute, zerolog.Nop())
	if err := stream.Run(context.Background()); err == nil {
		t.Fatalf("expected error without symbols")
	}
}
