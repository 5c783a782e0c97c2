package httpx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"io"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// HTTPStatusCoder is implemented by errors that carry an HTTP status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Body)
}

func (e *StatusError) HTTPStatusCode() int { return e.Status }

func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryableError reports whether err is a transient provider failure:
// a transport-level error (timeout, reset, refused, truncated body) or a
// retryable HTTP status. Caller cancellation is not.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	// *url.Error and *net.OpError both satisfy net.Error.
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Backoff retries transient failures with randomized exponential waits:
// before attempt n+1 it sleeps uniform[0, min(MaxWait, 2^n s)].
type Backoff struct {
	MaxAttempts int
	MaxWait     time.Duration

	// Retryable overrides IsRetryableError when set.
	Retryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)

	rand  func() float64
	sleep func(context.Context, time.Duration) error
}

// DefaultBackoff is six attempts with waits capped at thirty seconds.
func DefaultBackoff() Backoff {
	return Backoff{MaxAttempts: 6, MaxWait: 30 * time.Second}
}

// Wait returns the randomized wait that follows the given failed attempt.
func (b Backoff) Wait(attempt int) time.Duration {
	ceiling := math.Pow(2, float64(attempt)) * float64(time.Second)
	if b.MaxWait > 0 && ceiling > float64(b.MaxWait) {
		ceiling = float64(b.MaxWait)
	}
	r := rand.Float64
	if b.rand != nil {
		r = b.rand
	}
	return time.Duration(r() * ceiling)
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
func (b Backoff) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := b.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := b.Retryable
	if retryable == nil {
		retryable = IsRetryableError
	}
	sleep := b.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt == attempts {
			break
		}
		wait := b.Wait(attempt)
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return fmt.Errorf("retry wait: %w (last error: %v)", serr, err)
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
