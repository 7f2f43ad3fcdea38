package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/folio-service/folio_service/pkg/errors"
)

// Config holds configuration for retry behavior
type Config struct {
	MaxAttempts int           // Maximum number of attempts
	BaseBackoff time.Duration // Backoff unit; attempt n sleeps n*BaseBackoff
}

// DefaultConfig returns a default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
	}
}

// Op represents a fallible remote operation
type Op func() error

// Reauthenticator re-establishes an upstream session after an auth-class
// failure. Implemented by the session manager.
type Reauthenticator interface {
	Reauthenticate(ctx context.Context) error
}

// Caller executes remote operations with bounded retries and linear backoff.
// An auth-class failure triggers exactly one synchronous re-authentication
// followed by one immediate retry of the operation, outside the attempt
// budget; if that retry also fails the normal retry accounting resumes.
type Caller struct {
	session Reauthenticator
}

// NewCaller creates a retrying caller. session may be nil, in which case
// auth-class failures are treated like any other failure.
func NewCaller(session Reauthenticator) *Caller {
	return &Caller{session: session}
}

// Do invokes op under cfg. The last error is surfaced when attempts are
// exhausted; it is never swallowed at this layer.
func (c *Caller) Do(ctx context.Context, cfg Config, op Op) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	reauthTried := false

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !reauthTried && c.session != nil && errors.IsAuthError(err) {
			reauthTried = true
			if reauthErr := c.session.Reauthenticate(ctx); reauthErr == nil {
				// Immediate retry after a fresh login, not counted
				// against the attempt budget.
				if err := op(); err == nil {
					return nil
				} else {
					lastErr = err
				}
			}
			// Re-login failure falls through to normal accounting.
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := time.Duration(attempt) * cfg.BaseBackoff
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled by context: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}
