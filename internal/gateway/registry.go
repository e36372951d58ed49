package gateway

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Client is one live websocket session. Frames destined for the peer are
// queued on Outbound; the session's write loop drains it and exits when the
// channel is closed.
type Client struct {
	Identity    string
	Outbound    chan []byte
	ConnectedAt time.Time
}

// Registry maps identities to their single live client. At most one client
// per identity: registering a second connection evicts the first.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	buffer  int
	logger  *slog.Logger
}

func NewRegistry(outboundBuffer int, logger *slog.Logger) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		buffer:  outboundBuffer,
		logger:  logger,
	}
}

// Register creates and records a client for identity. If a client is already
// registered the old one is evicted: its outbound channel is closed so its
// write loop terminates, which tears the stale socket down.
//
// Outbound channels are closed only while the write lock is held. Send and
// Broadcast deliver under the read lock, so a close can never race a send.
func (r *Registry) Register(identity string) *Client {
	c := &Client{
		Identity:    identity,
		Outbound:    make(chan []byte, r.buffer),
		ConnectedAt: time.Now(),
	}

	r.mu.Lock()
	old := r.clients[identity]
	r.clients[identity] = c
	if old != nil {
		close(old.Outbound)
	}
	r.mu.Unlock()

	if old != nil {
		r.logger.Info("evicted stale connection", "user_id", identity)
	}
	return c
}

// Unregister removes the client only if it is still the registered one.
// A session whose client was evicted by a newer connection must not remove
// its replacement, so removal is guarded by pointer identity.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.clients[c.Identity]; ok && cur == c {
		delete(r.clients, c.Identity)
		close(c.Outbound)
		return true
	}
	return false
}

// Lookup returns the live client for identity, if any.
func (r *Registry) Lookup(identity string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[identity]
	return c, ok
}

// Send queues frame for identity. It reports false when the identity has no
// live client or its outbound buffer is full; a full buffer drops the frame
// rather than blocking the caller. The non-blocking send happens under the
// read lock, which excludes the close in Register/Unregister.
func (r *Registry) Send(identity string, frame []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[identity]
	if !ok {
		return false
	}
	select {
	case c.Outbound <- frame:
		return true
	default:
		r.logger.Warn("outbound buffer full, dropping frame", "user_id", identity)
		return false
	}
}

// Broadcast queues frame for every connected client except the identities in
// skip. Returns the number of clients the frame was queued for. Like Send,
// delivery stays under the read lock; the sends never block, so no lock is
// held across slow work.
func (r *Registry) Broadcast(frame []byte, skip ...string) int {
	skipped := make(map[string]struct{}, len(skip))
	for _, id := range skip {
		skipped[id] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for id, c := range r.clients {
		if _, ok := skipped[id]; ok {
			continue
		}
		select {
		case c.Outbound <- frame:
			n++
		default:
			r.logger.Warn("outbound buffer full, dropping frame", "user_id", c.Identity)
		}
	}
	return n
}

// Count returns the number of live clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Identities returns the sorted identities of all live clients.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
