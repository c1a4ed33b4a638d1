package retry

import (
	"errors"
	"fmt"
	"time"

	errs "birdwatcher/pkg/errors"
	"birdwatcher/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of attempts, first try included
	MaxAttempts int
	// Delay is the fixed pause between attempts
	Delay time.Duration
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 2,
		Delay:       2 * time.Second,
		RetryIf:     DefaultRetryIf,
		Logger:      logger.GetLogger(),
	}
}

// DefaultRetryIf is the default retry predicate
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	var crawlErr *errs.Error
	if errors.As(err, &crawlErr) {
		return errs.IsRetryable(crawlErr.Type)
	}

	return true
}

// Do executes an operation, retrying on retryable errors up to MaxAttempts
func Do(op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !cfg.RetryIf(err) {
			if cfg.Logger != nil {
				cfg.Logger.DebugWithFields("error is not retryable", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return err
		}

		if attempt < cfg.MaxAttempts {
			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
					"attempt":      attempt,
					"error":        err.Error(),
					"delay_ms":     cfg.Delay.Milliseconds(),
					"max_attempts": cfg.MaxAttempts,
				})
			}
			time.Sleep(cfg.Delay)
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}
