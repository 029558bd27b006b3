package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastReachesEveryConnectionOfUser(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register(10, nil)
	require.NoError(t, err)
	b, err := hub.Register(10, nil)
	require.NoError(t, err)
	other, err := hub.Register(11, nil)
	require.NoError(t, err)

	hub.Broadcast(10, `{"type":"join_accepted"}`)

	assert.Equal(t, `{"type":"join_accepted"}`, string(<-a.Send))
	assert.Equal(t, `{"type":"join_accepted"}`, string(<-b.Send))
	assert.Empty(t, other.Send)
	assert.True(t, hub.IsOnline(10))

	hub.UnregisterClient(a)
	hub.UnregisterClient(b)
	assert.False(t, hub.IsOnline(10))

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.False(t, hub.IsOnline(11))
}

func TestHub_ConnectionLimitPerUser(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(1, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(1, nil)
	assert.ErrorIs(t, err, errUserLimit)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, c.TrySend([]byte("x")))
	}
	assert.False(t, c.TrySend([]byte("overflow")))

	c.close()
	assert.False(t, c.TrySend([]byte("after close")))
}
