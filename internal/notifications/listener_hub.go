package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"bookclub/internal/docstore"
	"bookclub/internal/middleware"
	"bookclub/internal/models"
	"bookclub/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Inbound and outbound message types on a listener socket.
const (
	MessageListen      = "listen"
	MessageUnlisten    = "unlisten"
	MessageSnapshot    = "snapshot"
	MessageListenError = "listen_error"
	MessageUnlistened  = "unlistened"
	MessageError       = "error"
)

// CodeRateLimited is sent when a connection opens listeners too quickly.
const CodeRateLimited = middleware.CodeRateLimited

// Resolver turns a path into the snapshot visible to userID.
type Resolver interface {
	Resolve(ctx context.Context, userID uint, path string) (docstore.Snapshot, error)
}

// ClientMessage is sent by a client to open or close a listener.
type ClientMessage struct {
	Type     string `json:"type"`
	Path     string `json:"path,omitempty"`
	ListenID string `json:"listen_id,omitempty"`
}

// ServerMessage is pushed to a client.
type ServerMessage struct {
	Type     string             `json:"type"`
	ListenID string             `json:"listen_id,omitempty"`
	Path     string             `json:"path,omitempty"`
	Snapshot *docstore.Snapshot `json:"snapshot,omitempty"`
	Error    string             `json:"error,omitempty"`
	Code     string             `json:"code,omitempty"`
}

// ListenerHub keeps snapshot listeners keyed by path. Unlike Hub, which is
// user-centric, it is path-centric: a change notice for a path refreshes
// every listener on it, and a notice for a group document also re-checks
// listeners below that group so lost membership ends them.
type ListenerHub struct {
	mu sync.RWMutex

	resolver Resolver
	limit    rate.Limit
	burst    int

	// client -> its listeners
	clients map[*Client]*listenerSet
	// path -> client -> listen ids
	paths map[string]map[*Client]map[string]struct{}
	// userID -> open connections
	userConns  map[uint]int
	totalConns int

	// tickets orders snapshot reads. A ticket is taken before resolving and
	// a listener only accepts a delivery newer than the last one it got.
	tickets atomic.Uint64
}

type listenerSet struct {
	limiter *rate.Limiter
	byID    map[string]*listenState
}

type listenState struct {
	path string
	// sent is the ticket of the newest read delivered, or of registration.
	sent uint64
}

// Name returns a human-readable identifier for this hub.
func (h *ListenerHub) Name() string { return "listener hub" }

// NewListenerHub creates a hub that resolves snapshots with resolver and
// allows each connection listensPerSec new listeners per second.
func NewListenerHub(resolver Resolver, listensPerSec float64) *ListenerHub {
	limit := rate.Inf
	burst := 1
	if listensPerSec > 0 {
		limit = rate.Limit(listensPerSec)
		burst = int(math.Ceil(listensPerSec)) * 2
	}
	return &ListenerHub{
		resolver:  resolver,
		limit:     limit,
		burst:     burst,
		clients:   make(map[*Client]*listenerSet),
		paths:     make(map[string]map[*Client]map[string]struct{}),
		userConns: make(map[uint]int),
	}
}

// Register adds a connection for userID.
func (h *ListenerHub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, errServerLimit
	}
	if h.userConns[userID] >= maxConnsPerUser {
		return nil, errUserLimit
	}

	client := NewClient(h, conn, userID)
	client.IncomingHandler = h.handleIncoming
	h.clients[client] = &listenerSet{
		limiter: rate.NewLimiter(h.limit, h.burst),
		byID:    make(map[string]*listenState),
	}
	h.userConns[userID]++
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient ends every listener the client owns.
func (h *ListenerHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	set, ok := h.clients[client]
	if !ok {
		h.mu.Unlock()
		return
	}
	for id := range set.byID {
		h.removeLocked(client, set, id)
	}
	delete(h.clients, client)
	h.userConns[client.UserID]--
	if h.userConns[client.UserID] <= 0 {
		delete(h.userConns, client.UserID)
	}
	h.totalConns--
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Dec()
	client.close()
}

func (h *ListenerHub) handleIncoming(c *Client, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.send(c, ServerMessage{Type: MessageError, Error: "invalid message", Code: models.CodeValidation})
		return
	}
	ctx := middleware.WithUserID(context.Background(), c.UserID)

	switch msg.Type {
	case MessageListen:
		h.Listen(ctx, c, msg.ListenID, msg.Path)
	case MessageUnlisten:
		h.Unlisten(c, msg.ListenID)
	default:
		h.send(c, ServerMessage{Type: MessageError, ListenID: msg.ListenID, Error: "unknown message type", Code: models.CodeValidation})
	}
}

// Listen opens (or replaces) listener listenID on path and sends the first
// snapshot. It returns the listen id, generated when empty.
func (h *ListenerHub) Listen(ctx context.Context, c *Client, listenID, path string) string {
	if listenID == "" {
		listenID = uuid.NewString()
	}

	ref, err := docstore.ParsePath(path)
	if err != nil {
		h.send(c, ServerMessage{Type: MessageListenError, ListenID: listenID, Path: path, Error: err.Error(), Code: models.CodeValidation})
		return listenID
	}
	canonical := ref.String()

	h.mu.Lock()
	set, ok := h.clients[c]
	if !ok {
		h.mu.Unlock()
		return listenID
	}
	if !set.limiter.Allow() {
		h.mu.Unlock()
		h.send(c, ServerMessage{Type: MessageListenError, ListenID: listenID, Path: canonical, Error: "too many listen requests", Code: CodeRateLimited})
		return listenID
	}
	// Register before resolving so a change landing in between still
	// produces a fresh snapshot.
	if _, exists := set.byID[listenID]; exists {
		h.removeLocked(c, set, listenID)
	}
	set.byID[listenID] = &listenState{path: canonical, sent: h.tickets.Add(1)}
	byClient, ok := h.paths[canonical]
	if !ok {
		byClient = make(map[*Client]map[string]struct{})
		h.paths[canonical] = byClient
	}
	if byClient[c] == nil {
		byClient[c] = make(map[string]struct{})
	}
	byClient[c][listenID] = struct{}{}
	ticket := h.tickets.Add(1)
	h.mu.Unlock()
	observability.ActiveListeners.WithLabelValues(docstore.CollectionLabel(canonical)).Inc()

	snap, err := h.resolver.Resolve(ctx, c.UserID, canonical)
	h.deliver(c, listenID, canonical, ticket, snap, err)
	return listenID
}

// Unlisten closes listener listenID. Unknown ids are acknowledged anyway.
func (h *ListenerHub) Unlisten(c *Client, listenID string) {
	h.mu.Lock()
	if set, ok := h.clients[c]; ok {
		h.removeLocked(c, set, listenID)
	}
	h.mu.Unlock()
	h.send(c, ServerMessage{Type: MessageUnlistened, ListenID: listenID})
}

// removeLocked drops one listener. h.mu must be held for writing.
func (h *ListenerHub) removeLocked(c *Client, set *listenerSet, listenID string) {
	st, ok := set.byID[listenID]
	if !ok {
		return
	}
	path := st.path
	delete(set.byID, listenID)
	if byClient, ok := h.paths[path]; ok {
		if ids, ok := byClient[c]; ok {
			delete(ids, listenID)
			if len(ids) == 0 {
				delete(byClient, c)
			}
		}
		if len(byClient) == 0 {
			delete(h.paths, path)
		}
	}
	observability.ActiveListeners.WithLabelValues(docstore.CollectionLabel(path)).Dec()
}

type listenTarget struct {
	client   *Client
	listenID string
	path     string
}

// HandleChange pushes a fresh snapshot to every listener affected by a
// change at path.
func (h *ListenerHub) HandleChange(ctx context.Context, path string) {
	ref, err := docstore.ParsePath(path)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "ignoring change notice for invalid path", "path", path)
		return
	}
	canonical := ref.String()
	prefix := canonical + "/"

	type key struct {
		path   string
		userID uint
	}
	tickets := make(map[key]uint64)

	h.mu.RLock()
	var targets []listenTarget
	for p, byClient := range h.paths {
		if p != canonical && !(ref.Kind == docstore.KindGroup && strings.HasPrefix(p, prefix)) {
			continue
		}
		for c, ids := range byClient {
			k := key{path: p, userID: c.UserID}
			if _, ok := tickets[k]; !ok {
				tickets[k] = h.tickets.Add(1)
			}
			for id := range ids {
				targets = append(targets, listenTarget{client: c, listenID: id, path: p})
			}
		}
	}
	h.mu.RUnlock()

	type resolved struct {
		snap docstore.Snapshot
		err  error
	}
	cache := make(map[key]resolved)
	for _, t := range targets {
		k := key{path: t.path, userID: t.client.UserID}
		r, ok := cache[k]
		if !ok {
			r.snap, r.err = h.resolver.Resolve(middleware.WithUserID(ctx, t.client.UserID), t.client.UserID, t.path)
			cache[k] = r
		}
		h.deliver(t.client, t.listenID, t.path, tickets[k], r.snap, r.err)
	}
}

// deliver sends the result of the read taken with ticket, or ends the
// listener when resolution failed. A result older than what the listener
// already received is discarded.
func (h *ListenerHub) deliver(c *Client, listenID, path string, ticket uint64, snap docstore.Snapshot, err error) {
	var msg ServerMessage
	if err != nil {
		msg = ServerMessage{Type: MessageListenError, ListenID: listenID, Path: path, Error: "Internal server error", Code: models.CodeInternal}
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			msg.Error, msg.Code = appErr.Message, appErr.Code
		}
	} else {
		msg = ServerMessage{Type: MessageSnapshot, ListenID: listenID, Path: path, Snapshot: &snap}
	}
	data, ok := h.encode(msg)
	if !ok {
		return
	}

	// Check and enqueue under one lock so two reads for the same listener
	// reach the send buffer in ticket order.
	h.mu.Lock()
	set, ok := h.clients[c]
	if !ok {
		h.mu.Unlock()
		return
	}
	st, ok := set.byID[listenID]
	if !ok || st.path != path || ticket <= st.sent {
		h.mu.Unlock()
		return
	}
	st.sent = ticket
	if err != nil {
		h.removeLocked(c, set, listenID)
	}
	sent := c.TrySend(data)
	h.mu.Unlock()

	if err == nil && sent {
		observability.SnapshotDeliveries.WithLabelValues(docstore.CollectionLabel(path)).Inc()
	}
}

func (h *ListenerHub) encode(msg ServerMessage) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		middleware.Logger.Error("failed to encode listener message", "type", msg.Type, "error", err)
		return nil, false
	}
	return data, true
}

func (h *ListenerHub) send(c *Client, msg ServerMessage) bool {
	data, ok := h.encode(msg)
	if !ok {
		return false
	}
	return c.TrySend(data)
}

// StartWiring subscribes the hub to change notices.
func (h *ListenerHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartChangeSubscriber(ctx, func(path string) {
		h.HandleChange(ctx, path)
	})
}

// ListenerCount returns the number of open listeners.
func (h *ListenerHub) ListenerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set.byID)
	}
	return n
}

// Shutdown closes every connection; their listeners end with them.
func (h *ListenerHub) Shutdown(_ context.Context) error {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.Conn != nil {
			_ = c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
			_ = c.Conn.Close()
		}
		h.UnregisterClient(c)
	}
	return nil
}
