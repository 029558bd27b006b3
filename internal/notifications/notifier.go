// Package notifications delivers realtime updates over websockets: snapshot
// listeners on document paths and per-user events.
package notifications

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"bookclub/internal/docstore"
	"bookclub/internal/middleware"
	"bookclub/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	changeChannelPrefix = "changes:"
	userChannelPrefix   = "notifications:user:"

	// localQueueSize matches the go-redis subscription channel buffer.
	localQueueSize = 100
)

// Notifier publishes change notices and user events. With Redis every API
// instance receives them; without it they are delivered in-process.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local map[int]*localSubscription
	next  int
}

// localSubscription feeds one worker so notices arrive in publish order.
type localSubscription struct {
	prefixes []string
	queue    chan localMessage
	done     <-chan struct{}
}

type localMessage struct {
	channel string
	payload string
}

// UserEvent is the payload sent to a user's sockets.
type UserEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb, local: make(map[int]*localSubscription)}
}

// ChangeChannel derives the Redis channel carrying notices for path.
func ChangeChannel(path string) string {
	return changeChannelPrefix + path
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// PublishChange announces that the documents under each path changed.
func (n *Notifier) PublishChange(ctx context.Context, paths ...string) {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		observability.ChangeNotices.WithLabelValues(docstore.CollectionLabel(p)).Inc()
		if err := n.publish(ctx, ChangeChannel(p), p); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish change notice", "path", p, "error", err)
		}
	}
}

// NotifyUser sends an event to every socket userID has open.
func (n *Notifier) NotifyUser(ctx context.Context, userID uint, event string, payload interface{}) {
	body, err := json.Marshal(UserEvent{Type: event, Payload: payload})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to encode user event", "event", event, "error", err)
		return
	}
	if err := n.publish(ctx, UserChannel(userID), string(body)); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish user event", "user_id", userID, "event", event, "error", err)
	}
}

func (n *Notifier) publish(ctx context.Context, channel, payload string) error {
	if n.rdb == nil {
		n.deliverLocal(channel, payload)
		return nil
	}
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		observability.RedisErrors.WithLabelValues("publish").Inc()
		return err
	}
	return nil
}

// deliverLocal queues the message for every matching in-process
// subscriber. Each subscriber sees messages in the order they were published.
func (n *Notifier) deliverLocal(channel, payload string) {
	n.mu.RLock()
	var targets []*localSubscription
	for _, sub := range n.local {
		for _, prefix := range sub.prefixes {
			if strings.HasPrefix(channel, prefix) {
				targets = append(targets, sub)
				break
			}
		}
	}
	n.mu.RUnlock()

	msg := localMessage{channel: channel, payload: payload}
	for _, sub := range targets {
		select {
		case sub.queue <- msg:
		case <-sub.done:
		}
	}
}

// StartChangeSubscriber calls onMessage with the changed path for every
// change notice until ctx is done.
func (n *Notifier) StartChangeSubscriber(ctx context.Context, onChange func(path string)) error {
	return n.subscribe(ctx, "change", []string{changeChannelPrefix}, func(channel, _ string) {
		onChange(strings.TrimPrefix(channel, changeChannelPrefix))
	})
}

// StartUserSubscriber calls onMessage for every user event until ctx is done.
func (n *Notifier) StartUserSubscriber(ctx context.Context, onMessage func(userID uint, payload string)) error {
	return n.subscribe(ctx, "user", []string{userChannelPrefix}, func(channel, payload string) {
		id, err := strconv.ParseUint(strings.TrimPrefix(channel, userChannelPrefix), 10, 64)
		if err != nil {
			middleware.Logger.Warn("invalid notification channel", "channel", channel)
			return
		}
		onMessage(uint(id), payload)
	})
}

func (n *Notifier) subscribe(ctx context.Context, name string, prefixes []string, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		sub := &localSubscription{
			prefixes: prefixes,
			queue:    make(chan localMessage, localQueueSize),
			done:     ctx.Done(),
		}
		n.mu.Lock()
		id := n.next
		n.next++
		n.local[id] = sub
		n.mu.Unlock()

		go func() {
			defer func() {
				n.mu.Lock()
				delete(n.local, id)
				n.mu.Unlock()
			}()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-sub.queue:
					dispatch(name, onMessage, msg.channel, msg.payload)
				}
			}
		}()
		return nil
	}

	patterns := make([]string, len(prefixes))
	for i, p := range prefixes {
		patterns[i] = p + "*"
	}
	sub := n.rdb.PSubscribe(ctx, patterns...)
	// Wait for the subscription to be confirmed so no early notice is lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		observability.RedisErrors.WithLabelValues("psubscribe").Inc()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				dispatch(name, onMessage, msg.Channel, msg.Payload)
			}
		}
	}()

	return nil
}

func dispatch(name string, fn func(string, string), channel, payload string) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("panic in subscriber", "subscriber", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn(channel, payload)
}
