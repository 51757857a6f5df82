package natsclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/c360/neurostream/errors"
)

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "unknown", ConnectionStatus(99).String())
}

func TestNewClient_Options(t *testing.T) {
	c := NewClient("nats://localhost:4222",
		WithName("decoder"),
		WithReconnect(3, 500*time.Millisecond),
		WithTimeout(time.Second),
	)

	assert.Equal(t, "decoder", c.name)
	assert.Equal(t, 3, c.maxReconnects)
	assert.Equal(t, 500*time.Millisecond, c.reconnectWait)
	assert.Equal(t, time.Second, c.timeout)
	assert.Equal(t, StatusDisconnected, c.Status().Status)
}

func TestPublish_NotConnected(t *testing.T) {
	c := NewClient("nats://localhost:4222")

	err := c.Publish("neuro.attention.result", []byte("{}"))
	assert.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoConnection)
	assert.True(t, errors.IsTransient(err))
}

func TestSubscribe_NotConnected(t *testing.T) {
	c := NewClient("nats://localhost:4222")

	err := c.Subscribe("neuro.attention.result", func([]byte) {})
	assert.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestClose_Idempotent(t *testing.T) {
	c := NewClient("nats://localhost:4222")

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
