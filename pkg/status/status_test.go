package status_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pity-fox/cleantools/pkg/status"
)

func TestStatusText(t *testing.T) {
	t.Parallel()

	for _, s := range status.All {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var got status.Status
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, s, got)
	}
}

func TestStatusUnknown(t *testing.T) {
	t.Parallel()

	unknown := status.Status(99)
	assert.Equal(t, "unknown", unknown.String())

	_, err := unknown.MarshalText()
	require.ErrorIs(t, err, status.ErrUnknownStatus)

	_, err = status.Parse("trusted")
	require.ErrorIs(t, err, status.ErrUnknownStatus)
}
