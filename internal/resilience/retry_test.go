package resilience

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func TestDoVal_SucceedsFirstTry(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(eris.New("api flaked"), http.StatusServiceUnavailable)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(eris.New("still down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal_DoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(eris.New("down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_InvokesOnRetry(t *testing.T) {
	var attempts []int
	cfg := fastConfig()
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		return NewTransientError(eris.New("down"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("validation failed")))
	assert.True(t, IsTransient(NewTransientError(eris.New("x"), 429)))
	assert.True(t, IsTransient(eris.Wrap(NewTransientError(eris.New("x"), 502), "fetch sources")))
	assert.True(t, IsTransient(eris.New("read tcp: i/o timeout")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestComputeBackoff_CapsAtMax(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     2 * time.Second,
		Multiplier:     10,
		JitterFraction: 0,
	})
	assert.Equal(t, 2*time.Second, computeBackoff(5, cfg))
}
