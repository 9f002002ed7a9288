package hostbridge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriteUntrustedRoundTrips(t *testing.T) {
	b := NewSimulated()
	token, err := b.AllocUntrusted(64)
	require.NoError(t, err)

	require.NoError(t, b.WriteUntrusted(token, 8, []byte("payload")))

	got := make([]byte, len("payload"))
	require.NoError(t, b.ReadUntrusted(token, 8, got))
	require.Equal(t, "payload", string(got))
}

func TestReadUntrustedRejectsOutOfBounds(t *testing.T) {
	b := NewSimulated()
	token, err := b.AllocUntrusted(16)
	require.NoError(t, err)

	err = b.ReadUntrusted(token, 8, make([]byte, 16))
	require.Error(t, err)
}

func TestReadWriteUntrustedRejectsUnknownToken(t *testing.T) {
	b := NewSimulated()
	require.Error(t, b.ReadUntrusted(999, 0, make([]byte, 1)))
	require.Error(t, b.WriteUntrusted(999, 0, make([]byte, 1)))
}

func TestWriteUntrustedAfterFreeRejected(t *testing.T) {
	b := NewSimulated()
	token, err := b.AllocUntrusted(16)
	require.NoError(t, err)
	require.NoError(t, b.FreeUntrusted(token))

	require.Error(t, b.WriteUntrusted(token, 0, []byte("x")))
}
