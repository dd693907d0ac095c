package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srallapally/openicf-connector-service/connerr"
)

func ok(context.Context) (any, error) { return "ok", nil }

func failing(context.Context) (any, error) { return nil, errors.New("boom") }

func TestBreakerOpensAfterFailureThreshold(t *testing.T) {
	b := New(Settings{FailureThreshold: 3, HalfOpenAfter: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := b.Call(context.Background(), failing)
		require.Error(t, err)
	}
	require.Equal(t, Open, b.State())

	_, err := b.Call(context.Background(), ok)
	require.ErrorIs(t, err, connerr.ErrCircuitOpen)
}

func TestBreakerHalfOpenToClosed(t *testing.T) {
	b := New(Settings{FailureThreshold: 1, SuccessThreshold: 2, HalfOpenAfter: 10 * time.Millisecond})

	_, err := b.Call(context.Background(), failing)
	require.Error(t, err)
	require.Equal(t, Open, b.State())

	time.Sleep(20 * time.Millisecond)

	_, err = b.Call(context.Background(), ok)
	require.NoError(t, err)
	require.Equal(t, HalfOpen, b.State())

	_, err = b.Call(context.Background(), ok)
	require.NoError(t, err)
	require.Equal(t, Closed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New(Settings{FailureThreshold: 1, SuccessThreshold: 2, HalfOpenAfter: 10 * time.Millisecond})

	_, _ = b.Call(context.Background(), failing)
	time.Sleep(20 * time.Millisecond)

	_, err := b.Call(context.Background(), failing)
	require.Error(t, err)
	require.Equal(t, Open, b.State())
}

func TestBreakerConcurrencyCap(t *testing.T) {
	b := New(Settings{MaxConcurrent: 1, Timeout: time.Second})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = b.Call(context.Background(), func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return "ok", nil
		})
	}()
	<-started

	_, err := b.Call(context.Background(), ok)
	require.ErrorIs(t, err, connerr.ErrTooManyRequests)
	close(release)
}

func TestBreakerTimeout(t *testing.T) {
	b := New(Settings{Timeout: 5 * time.Millisecond})

	_, err := b.Call(context.Background(), func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.ErrorIs(t, err, connerr.ErrBreakerTimeout)
}
