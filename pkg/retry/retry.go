package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richard-senior/football-analyzer/internal/logger"
)

// DefaultMaxDelay caps the backoff between attempts
const DefaultMaxDelay = 30 * time.Second

// Policy retries a function with exponential backoff (x1.5 per attempt)
type Policy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// NewPolicy creates a retry policy. maxAttempts below 1 is treated as 1.
func NewPolicy(maxAttempts int, initialDelay time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     DefaultMaxDelay,
	}
}

// WithMaxDelay returns a copy of the policy with a different backoff cap
func (p *Policy) WithMaxDelay(d time.Duration) *Policy {
	c := *p
	c.maxDelay = d
	return &c
}

// MaxAttempts returns the number of times Execute will call fn at most
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Execute runs fn until it succeeds, returns a permanent error, the attempts
// run out or ctx is done.
func (p *Policy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := p.initialDelay

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == p.maxAttempts {
			break
		}

		logger.Debug(fmt.Sprintf("attempt %d/%d failed, retrying in %s:", attempt, p.maxAttempts, delay), err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * 1.5)
		if delay > p.maxDelay {
			delay = p.maxDelay
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", p.maxAttempts, lastErr)
}
