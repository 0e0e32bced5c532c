package tunnel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNgrok_SetsFields(t *testing.T) {
	t.Parallel()

	tun := NewNgrok("token", "hub.example.ngrok.io")
	assert.Equal(t, "token", tun.authToken)
	assert.Equal(t, "hub.example.ngrok.io", tun.domain)
	assert.Empty(t, tun.PublicURL())
	assert.Nil(t, tun.Listener())
}

func TestNgrokTunnel_Start_RequiresToken(t *testing.T) {
	t.Parallel()

	tun := NewNgrok("", "")
	_, err := tun.Start(context.Background(), "127.0.0.1:8439")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth token is required")
}

func TestNgrokTunnel_Close_BeforeStart(t *testing.T) {
	t.Parallel()

	tun := NewNgrok("token", "")
	assert.NoError(t, tun.Close())
}

// Opening a real tunnel needs a valid ngrok account and network access, so
// Start's happy path is exercised only in manual testing.
