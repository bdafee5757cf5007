package retry

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   5 * time.Millisecond,
		MaxDelay:       20 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

func TestWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithBackoff_SuccessAfterRetry(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithBackoff_MaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	lastErr := &HTTPError{StatusCode: 500, Message: "boom"}
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		attempts++
		return lastErr
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, lastErr)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
}

func TestWithBackoff_NonRetryableError(t *testing.T) {
	attempts := 0
	notFound := &HTTPError{StatusCode: 404, Message: "Not Found"}
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		attempts++
		return notFound
	})

	assert.Equal(t, notFound, err)
	assert.Equal(t, 1, attempts)
}

func TestWithBackoff_NoRetryReturnsBareError(t *testing.T) {
	boom := &HTTPError{StatusCode: 502, Message: "Bad Gateway"}
	err := WithBackoff(context.Background(), NoRetry(), func() error { return boom })
	assert.Same(t, boom, err)
}

func TestWithBackoff_ContextCanceled(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 10
	cfg.InitialDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := WithBackoff(ctx, cfg, func() error {
		attempts++
		cancel()
		return syscall.ECONNRESET
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "nil error", err: nil, retryable: false},
		{name: "context canceled", err: context.Canceled, retryable: false},
		{name: "context deadline exceeded", err: context.DeadlineExceeded, retryable: false},
		{name: "HTTP 500", err: &HTTPError{StatusCode: 500}, retryable: true},
		{name: "HTTP 503", err: &HTTPError{StatusCode: 503}, retryable: true},
		{name: "HTTP 429", err: &HTTPError{StatusCode: 429}, retryable: true},
		{name: "HTTP 408", err: &HTTPError{StatusCode: 408}, retryable: true},
		{name: "HTTP 400", err: &HTTPError{StatusCode: 400}, retryable: false},
		{name: "HTTP 401", err: &HTTPError{StatusCode: 401}, retryable: false},
		{name: "wrapped HTTP 502", err: errors.Join(errors.New("feed"), &HTTPError{StatusCode: 502}), retryable: true},
		{name: "ECONNREFUSED", err: syscall.ECONNREFUSED, retryable: true},
		{name: "ECONNRESET", err: syscall.ECONNRESET, retryable: true},
		{name: "ETIMEDOUT", err: syscall.ETIMEDOUT, retryable: true},
		{name: "ENETUNREACH", err: syscall.ENETUNREACH, retryable: true},
		{name: "generic error", err: errors.New("some error"), retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestConfigs(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, 3, def.MaxAttempts)
	assert.Equal(t, 1*time.Second, def.InitialDelay)
	assert.Equal(t, 30*time.Second, def.MaxDelay)

	remote := RemoteAPIConfig()
	assert.Equal(t, 3, remote.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, remote.InitialDelay)
	assert.Equal(t, 2*time.Second, remote.MaxDelay)

	assert.Equal(t, 1, NoRetry().MaxAttempts)
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
	assert.Equal(t, "HTTP 503: Service Unavailable", err.Error())
}

func TestAddJitter(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		got := addJitter(base, 0.1)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, base+10*time.Millisecond)
	}
	assert.Equal(t, base, addJitter(base, 0))
	assert.LessOrEqual(t, addJitter(base, 5), 2*base)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "absent", value: "", want: 0},
		{name: "seconds", value: "3", want: 3 * time.Second},
		{name: "zero seconds", value: "0", want: 0},
		{name: "http date", value: "Sun, 01 Mar 2026 12:00:10 GMT", want: 10 * time.Second},
		{name: "past date", value: "Sun, 01 Mar 2026 11:00:00 GMT", want: 0},
		{name: "garbage", value: "soon", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRetryAfter(tt.value, now))
		})
	}
}

func TestWithBackoff_RetryAfterCappedAtMaxDelay(t *testing.T) {
	cfg := fastConfig()
	attempts := 0
	start := time.Now()

	err := WithBackoff(context.Background(), cfg, func() error {
		attempts++
		if attempts == 1 {
			return &HTTPError{StatusCode: 429, Message: "slow down", RetryAfter: time.Hour}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Less(t, time.Since(start), time.Second, "hint is capped at MaxDelay")
}
