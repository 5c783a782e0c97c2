package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &StatusError{Op: "chat", Status: 429}, true},
		{"server error", fmt.Errorf("wrapped: %w", &StatusError{Status: 503}), true},
		{"timeout status", &StatusError{Status: 408}, true},
		{"bad request", &StatusError{Status: 400}, false},
		{"unauthorized", &StatusError{Status: 401}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
		{"connection reset", &url.Error{Op: "Post", URL: "https://x", Err: &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}}, true},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, true},
		{"truncated body", fmt.Errorf("reading response: %w", io.ErrUnexpectedEOF), true},
		{"server closed", &url.Error{Op: "Post", URL: "https://x", Err: io.EOF}, true},
		{"transport canceled", &url.Error{Op: "Post", URL: "https://x", Err: context.Canceled}, false},
		{"status inside url error", fmt.Errorf("chat: %w", &StatusError{Status: 401}), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryableError(tc.err); got != tc.want {
				t.Fatalf("IsRetryableError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestBackoffWaitIsCapped(t *testing.T) {
	b := Backoff{MaxAttempts: 6, MaxWait: 30 * time.Second, rand: func() float64 { return 1 }}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := b.Wait(i + 1); got != w {
			t.Fatalf("Wait(%d) = %s, want %s", i+1, got, w)
		}
	}
	b.rand = func() float64 { return 0 }
	if got := b.Wait(5); got != 0 {
		t.Fatalf("Wait with zero draw = %s, want 0", got)
	}
}

func TestBackoffRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	var retried []int
	b := Backoff{
		MaxAttempts: 6,
		MaxWait:     time.Second,
		OnRetry:     func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) },
		sleep:       noSleep,
	}
	err := b.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{Status: 429}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Fatalf("retried = %v, want [1 2]", retried)
	}
}

func TestBackoffStopsAtMaxAttempts(t *testing.T) {
	calls := 0
	b := Backoff{MaxAttempts: 6, sleep: noSleep}
	err := b.Do(context.Background(), func(context.Context) error {
		calls++
		return &StatusError{Status: 500}
	})
	if calls != 6 {
		t.Fatalf("calls = %d, want 6", calls)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != 500 {
		t.Fatalf("err = %v, want wrapped StatusError 500", err)
	}
}

func TestBackoffDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	b := Backoff{MaxAttempts: 6, sleep: noSleep}
	err := b.Do(context.Background(), func(context.Context) error {
		calls++
		return &StatusError{Status: 401}
	})
	if calls != 1 || err == nil {
		t.Fatalf("calls = %d err = %v, want one call and an error", calls, err)
	}
}

func TestBackoffHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := Backoff{MaxAttempts: 6, MaxWait: time.Hour}
	calls := 0
	err := b.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return &StatusError{Status: 503}
	})
	if calls != 1 || err == nil {
		t.Fatalf("calls = %d err = %v, want one call and an error", calls, err)
	}
}
