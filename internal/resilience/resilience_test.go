package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/textproto"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		Attempts: attempts,
		Base:     time.Millisecond,
		Cap:      5 * time.Millisecond,
		Factor:   2,
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("invalid geojson"), false},
		{"explicit transient", NewTransientError(errors.New("http 503"), 503), true},
		{"wrapped transient", fmt.Errorf("download: %w", NewTransientError(errors.New("boom"), 0)), true},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"io timeout message", errors.New("dial tcp: i/o timeout"), true},
		{"ftp data connection", fmt.Errorf("ftp retrieve: %w", &textproto.Error{Code: 425, Msg: "Can't open data connection"}), true},
		{"ftp missing file", &textproto.Error{Code: 550, Msg: "No such file"}, false},
		{"truncated body", errors.New("read body: unexpected EOF"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 301, 400, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
	assert.False(t, IsTransientHTTPStatus(http.StatusNotImplemented))
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner, 502)
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "inner", te.Error())
	assert.Equal(t, 502, te.StatusCode)
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("flaky"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_NonTransientStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return errors.New("parse failure")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	p := fastPolicy(3)
	p.OnRetry = func(retry int, _ error) { retried = append(retried, retry) }

	last := NewTransientError(errors.New("down"), 503)
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return last
	})
	assert.Same(t, last, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastPolicy(5), func(context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("down"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, Base: time.Hour, Cap: time.Hour}
	p.OnRetry = func(int, error) { cancel() }

	calls := 0
	start := time.Now()
	err := Do(ctx, p, func(context.Context) error {
		calls++
		return syscall.ECONNRESET
	})
	require.ErrorIs(t, err, syscall.ECONNRESET)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetry_ReturnsValue(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", syscall.ECONNRESET
		}
		return "payload", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "payload", v)
	assert.Equal(t, 2, calls)
}

func TestRetry_CustomRetryable(t *testing.T) {
	p := fastPolicy(4)
	p.Retryable = func(error) bool { return true }
	calls := 0
	_, err := Retry(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("always")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, Cap: time.Second, Factor: 2}
	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 400*time.Millisecond, p.Delay(2))
	assert.Equal(t, time.Second, p.Delay(10))

	p.Jitter = 0.5
	for range 20 {
		d := p.Delay(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestPolicy_WithDefaults(t *testing.T) {
	p := Policy{Jitter: -1}.withDefaults()
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, 500*time.Millisecond, p.Base)
	assert.Equal(t, 30*time.Second, p.Cap)
	assert.InDelta(t, 2.0, p.Factor, 1e-9)
	assert.Zero(t, p.Jitter)
	assert.NotNil(t, p.Retryable)
}
