package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestChannels(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "changes:groups/3/threads", ChangeChannel("groups/3/threads"))
	assert.Equal(t, "notifications:user:100", UserChannel(100))
}

func TestNotifier_LocalDeliveryWithoutRedis(t *testing.T) {
	n := NewNotifier(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths := make(chan string, 4)
	require.NoError(t, n.StartChangeSubscriber(ctx, func(p string) { paths <- p }))

	events := make(chan string, 1)
	require.NoError(t, n.StartUserSubscriber(ctx, func(uid uint, payload string) {
		assert.Equal(t, uint(4), uid)
		events <- payload
	}))

	n.PublishChange(ctx, "posts", "posts/1", "posts")

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case p := <-paths:
			got[p] = true
		case <-time.After(testEventuallyTimeout):
			t.Fatal("change notice not delivered")
		}
	}
	assert.Equal(t, map[string]bool{"posts": true, "posts/1": true}, got)

	n.NotifyUser(ctx, 4, "join_accepted", map[string]interface{}{"group_id": 7})
	select {
	case payload := <-events:
		var ev UserEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &ev))
		assert.Equal(t, "join_accepted", ev.Type)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("user event not delivered")
	}
}

func TestNotifier_RedisFanOut(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Two notifiers stand in for two API instances sharing Redis.
	publisher := NewNotifier(rdb)
	subscriber := NewNotifier(rdb)

	paths := make(chan string, 2)
	require.NoError(t, subscriber.StartChangeSubscriber(ctx, func(p string) { paths <- p }))

	publisher.PublishChange(ctx, "groups/9/threads")

	select {
	case p := <-paths:
		assert.Equal(t, "groups/9/threads", p)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("change notice not received over redis")
	}
}

func TestListenerHub_WiredToNotifier(t *testing.T) {
	n := NewNotifier(nil)
	hub := NewListenerHub(newStubResolver(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	c, _ := hub.Register(1, nil)
	hub.Listen(ctx, c, "feed", "posts")
	readMessage(t, c)

	n.PublishChange(ctx, "posts")
	assert.Eventually(t, func() bool { return len(c.Send) == 1 }, testEventuallyTimeout, testPollInterval)
}

func TestNotifier_LocalDeliveryKeepsPublishOrder(t *testing.T) {
	n := NewNotifier(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const total = 50
	paths := make(chan string, total)
	require.NoError(t, n.StartChangeSubscriber(ctx, func(p string) { paths <- p }))

	for i := 0; i < total; i++ {
		n.PublishChange(ctx, fmt.Sprintf("posts/%d", i+1))
	}

	for i := 0; i < total; i++ {
		select {
		case p := <-paths:
			assert.Equal(t, fmt.Sprintf("posts/%d", i+1), p)
		case <-time.After(testEventuallyTimeout):
			t.Fatalf("notice %d not delivered", i+1)
		}
	}
}
