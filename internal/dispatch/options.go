package dispatch

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultBatchSize   = 50
	DefaultMaxAttempts = 5
)

type config struct {
	interval    time.Duration
	batchSize   int
	maxAttempts int
	logger      *slog.Logger
	recorder    Recorder
}

// Option configures a Dispatcher.
type Option func(*config) error

func getOpts(opts []Option) (config, error) {
	cfg := config{
		interval:    DefaultInterval,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
		recorder:    nopRecorder{},
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %w", i, err)
		}
	}
	return cfg, nil
}

// WithInterval sets how often Run polls the outbox.
func WithInterval(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return fmt.Errorf("interval must be positive, got %s", d)
		}
		c.interval = d
		return nil
	}
}

// WithBatchSize bounds the transfers handled per pass.
func WithBatchSize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		c.batchSize = n
		return nil
	}
}

// WithMaxAttempts sets the number of failed deliveries after which a
// transfer is parked as failed.
func WithMaxAttempts(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return fmt.Errorf("max attempts must be positive, got %d", n)
		}
		c.maxAttempts = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) error {
		if l != nil {
			c.logger = l
		}
		return nil
	}
}

// WithRecorder reports delivery outcomes, typically to *metrics.Metrics.
func WithRecorder(r Recorder) Option {
	return func(c *config) error {
		if r != nil {
			c.recorder = r
		}
		return nil
	}
}
