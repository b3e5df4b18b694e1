package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast() Backoff {
	return Backoff{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond, Factor: 2}
}

func TestDoVal_RetriesTransient(t *testing.T) {
	var calls, hooks int
	b := fast()
	b.OnRetry = func(int, error) { hooks++ }

	v, err := DoVal(context.Background(), b, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, Transient(errors.New("unavailable"), http.StatusServiceUnavailable)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, hooks)
}

func TestDoVal_StopsOnPermanent(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), fast(), func(context.Context) (string, error) {
		calls++
		return "", errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls int
	err := Do(context.Background(), fast(), func(context.Context) error {
		calls++
		return Transient(errors.New("still down"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "still down")
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, Backoff{Attempts: 5, Initial: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return Transient(errors.New("timeout"), 0)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond, Factor: 2}.normalized()
	assert.Equal(t, 100*time.Millisecond, b.delay(0))
	assert.Equal(t, 200*time.Millisecond, b.delay(1))
	assert.Equal(t, 300*time.Millisecond, b.delay(2))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("invalid payload"), false},
		{Transient(errors.New("x"), 429), true},
		{fmt.Errorf("wrapped: %w", Transient(errors.New("x"), 503)), true},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("dial: i/o timeout"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTransient(tt.err), "%v", tt.err)
	}

	assert.True(t, TransientStatus(429))
	assert.True(t, TransientStatus(504))
	assert.False(t, TransientStatus(400))
	assert.False(t, TransientStatus(200))
}

func TestBreaker(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker("scorer", 2, time.Minute)
	b.now = func() time.Time { return now }

	fail := func(context.Context) (int, error) { return 0, Transient(errors.New("down"), 503) }
	ok := func(context.Context) (int, error) { return 1, nil }

	_, _ = Call(context.Background(), b, fail)
	assert.False(t, b.Open())
	_, _ = Call(context.Background(), b, fail)
	assert.True(t, b.Open())

	_, err := Call(context.Background(), b, ok)
	assert.ErrorIs(t, err, ErrOpen)

	now = now.Add(2 * time.Minute)
	v, err := Call(context.Background(), b, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.False(t, b.Open())
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b := NewBreaker("scorer", 1, time.Minute)
	_, err := Call(context.Background(), b, func(context.Context) (int, error) {
		return 0, errors.New("unknown level")
	})
	require.Error(t, err)
	assert.False(t, b.Open())
}
