package sink

import (
	"context"
	"sync"
)

// Memory keeps the most recent entries in memory for inspection.
type Memory struct {
	mu            sync.Mutex
	limit         int
	trades        []TradeRecord
	notifications []Notification
}

// NewMemory keeps at most limit trades and limit notifications, dropping the
// oldest first. A limit of zero or less keeps everything.
func NewMemory(limit int) *Memory {
	if limit < 0 {
		limit = 0
	}
	return &Memory{limit: limit}
}

func (m *Memory) RecordTrade(_ context.Context, rec TradeRecord) error {
	m.mu.Lock()
	m.trades = keepLast(append(m.trades, rec), m.limit)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Notify(_ context.Context, n Notification) error {
	m.mu.Lock()
	m.notifications = keepLast(append(m.notifications, n), m.limit)
	m.mu.Unlock()
	return nil
}

func keepLast[T any](items []T, limit int) []T {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return append(items[:0:0], items[len(items)-limit:]...)
}

// Trades returns a copy of the recorded trades.
func (m *Memory) Trades() []TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TradeRecord, len(m.trades))
	copy(out, m.trades)
	return out
}

// Notifications returns a copy of the delivered notifications.
func (m *Memory) Notifications() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}

func (m *Memory) Close() error { return nil }
