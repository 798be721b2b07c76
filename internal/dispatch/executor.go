package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/roach88/rwamarket/internal/ledger"
)

// LogExecutor logs each transfer and reports success. It stands in for a
// settlement backend in development.
type LogExecutor struct {
	Logger *slog.Logger
}

func (e LogExecutor) Execute(ctx context.Context, id string, t ledger.Transfer) error {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "transfer", "transfer_id", id, "type", string(t.Kind()), "detail", t.String())
	return nil
}

// JSONLExecutor appends each transfer as one canonical JSON line
// {"id":...,"transfer":{...}} for an external settlement process to tail.
type JSONLExecutor struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewJSONLExecutor writes to w.
func NewJSONLExecutor(w io.Writer) *JSONLExecutor {
	return &JSONLExecutor{w: w}
}

// OpenJSONLExecutor appends to the file at path, creating it if needed.
func OpenJSONLExecutor(path string) (*JSONLExecutor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transfer log: %w", err)
	}
	return &JSONLExecutor{w: f, c: f}, nil
}

func (e *JSONLExecutor) Execute(ctx context.Context, id string, t ledger.Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := ledger.MarshalCanonical(map[string]any{
		"id":       id,
		"transfer": t.Fields(),
	})
	if err != nil {
		return fmt.Errorf("encode transfer %s: %w", id, err)
	}
	line = append(line, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(line); err != nil {
		return fmt.Errorf("write transfer %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying file when the executor opened it.
func (e *JSONLExecutor) Close() error {
	if e.c == nil {
		return nil
	}
	return e.c.Close()
}
