package rasterjob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetadataValueScanRoundTrip(t *testing.T) {
	m := Metadata{"stage": "reprojecting", "percent": float64(42)}

	raw, err := m.Value()
	require.NoError(t, err)

	var got Metadata
	require.NoError(t, got.Scan(raw))
	require.Equal(t, m, got)
}

func TestMetadataScanNil(t *testing.T) {
	var m Metadata
	require.NoError(t, m.Scan(nil))
	require.Equal(t, Metadata{}, m)
}

func TestBoundsValueScanRoundTrip(t *testing.T) {
	b := Bounds{12.5, 13.0, 12.9, 13.4}

	raw, err := b.Value()
	require.NoError(t, err)

	var got Bounds
	require.NoError(t, got.Scan(raw))
	require.Equal(t, b, got)

	require.InDelta(t, 12.5, got.West(), 1e-9)
	require.InDelta(t, 13.0, got.South(), 1e-9)
	require.InDelta(t, 12.9, got.East(), 1e-9)
	require.InDelta(t, 13.4, got.North(), 1e-9)
}

func TestBoundsLeaflet(t *testing.T) {
	b := Bounds{1, 2, 3, 4}
	want := [2][2]float64{{2, 1}, {4, 3}}
	require.Equal(t, want, b.Leaflet())
}

func TestStatusTerminalAndCancellable(t *testing.T) {
	cases := []struct {
		status      Status
		terminal    bool
		cancellable bool
	}{
		{StatusQueued, false, true},
		{StatusProcessing, false, true},
		{StatusCompleted, true, false},
		{StatusFailed, true, false},
		{StatusCancelled, true, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.terminal, tc.status.Terminal(), "status %s", tc.status)
		require.Equal(t, tc.cancellable, tc.status.Cancellable(), "status %s", tc.status)
	}
}

func TestJobErrorRetriable(t *testing.T) {
	require.True(t, NewIOTransientError(errTest("boom")).Retriable())
	require.False(t, NewIOFatalError(errTest("boom")).Retriable())
	require.False(t, NewValidationError("bad input").Retriable())
	require.False(t, NewTimeoutError().Retriable())
}

func TestAsJobErrorWrapsUnclassified(t *testing.T) {
	je := AsJobError(errTest("plain error"))
	require.Equal(t, ErrInternal, je.Kind)
	require.Equal(t, "plain error", je.Message)
}

type errTest string

func (e errTest) Error() string { return string(e) }
