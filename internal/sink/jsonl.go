package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/bytedance/sonic"
)

// Entry is one line of the JSONL journal. Exactly one payload is set.
type Entry struct {
	Kind         string        `json:"kind"`
	Trade        *TradeRecord  `json:"trade,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// JSONL appends trades and notifications to a single journal file.
type JSONL struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONL creates or opens path for appending.
func NewJSONL(path string) (*JSONL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONL{file: file}, nil
}

func (j *JSONL) RecordTrade(_ context.Context, rec TradeRecord) error {
	return j.write(Entry{Kind: "trade", Trade: &rec})
}

func (j *JSONL) Notify(_ context.Context, n Notification) error {
	return j.write(Entry{Kind: "notification", Notification: &n})
}

func (j *JSONL) write(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Kind, err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return errors.New("journal closed")
	}
	_, err = j.file.Write(append(line, '\n'))
	return err
}

// Close flushes and closes the file handle.
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
