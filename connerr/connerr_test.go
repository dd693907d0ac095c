package connerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapAndIs(t *testing.T) {
	cause := errors.New("dial failed")
	err := Wrap(KindBackendError, "call failed", cause)

	require.True(t, Of(err, KindBackendError))
	require.False(t, Of(err, KindConfigInvalid))
	require.ErrorIs(t, err, errors.Unwrap(err))
}

func TestKindOf(t *testing.T) {
	err := New(KindCircuitOpen, "open")
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindCircuitOpen, kind)

	_, ok = KindOf(errors.New("plain"))
	require.False(t, ok)
}

func TestSentinelsMatchByKindNotIdentity(t *testing.T) {
	err := Wrap(KindCircuitOpen, "breaker tripped for instance x", nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
}
