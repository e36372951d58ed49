package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"messaging-platform/internal/auth"
	"messaging-platform/internal/config"
	"messaging-platform/internal/messaging"
	"messaging-platform/internal/presence"
	"messaging-platform/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024

	// Slot counters self-expire so a crashed process does not pin its
	// users out forever.
	connCapTTL = 6 * time.Hour
)

// SessionHandler upgrades authenticated HTTP requests to websocket sessions
// and runs each session's read and write loops until the transport dies.
type SessionHandler struct {
	tokens   *auth.Manager
	registry *Registry
	router   *Router
	presence *presence.Service
	messages *messaging.Service
	rdb      *redis.Client
	cfg      config.GatewayConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewSessionHandler(
	tokens *auth.Manager,
	registry *Registry,
	router *Router,
	presenceSvc *presence.Service,
	messages *messaging.Service,
	rdb *redis.Client,
	cfg config.GatewayConfig,
	logger *slog.Logger,
) *SessionHandler {
	return &SessionHandler{
		tokens:   tokens,
		registry: registry,
		router:   router,
		presence: presenceSvc,
		messages: messages,
		rdb:      rdb,
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The bearer token is the credential; browsers cannot set
			// custom headers on websocket dials, so origin is not one.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handle is the GET /ws endpoint. The credential rides in the token query
// parameter because websocket clients cannot attach Authorization headers
// from a browser.
func (h *SessionHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	claims, err := h.tokens.Verify(token, auth.TokenTypeAccess, time.Now())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
		return
	}
	userID := claims.UserID

	// Cap enforcement is best-effort infrastructure: without redis the
	// registry's one-connection-per-identity rule still holds.
	capKey := "ws_conns:" + userID
	if h.rdb != nil {
		ok, err := utils.AcquireConcurrencyCap(c.Request.Context(), h.rdb, capKey, h.cfg.MaxConnsPerUser, connCapTTL)
		if err != nil {
			h.logger.Error("connection cap check failed", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !ok {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections"})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		h.releaseCap(capKey, userID)
		return
	}

	h.run(conn, userID, capKey)
}

// run owns the connection from registration to teardown. It returns when the
// read loop ends; the write loop is cancelled through the outbound channel.
func (h *SessionHandler) run(conn *websocket.Conn, userID, capKey string) {
	// The session outlives the upgrade request, so its context does not
	// derive from it.
	ctx, cancel := context.WithCancel(context.Background())

	client := h.registry.Register(userID)
	h.logger.Info("session opened", "user_id", userID, "connections", h.registry.Count())

	if rec, err := h.presence.Update(ctx, userID, presence.StatusOnline); err != nil {
		h.logger.Error("presence online failed", "user_id", userID, "error", err)
	} else {
		h.router.BroadcastPresence(rec)
	}
	h.sendPresenceSnapshot(ctx, client)

	var once sync.Once
	teardown := func() {
		once.Do(func() {
			cancel()
			// Guarded: if a newer connection evicted this client, the
			// identity is still online elsewhere and must not be flipped
			// offline here.
			if h.registry.Unregister(client) {
				offCtx, offCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer offCancel()
				if rec, err := h.presence.Update(offCtx, userID, presence.StatusOffline); err != nil {
					h.logger.Error("presence offline failed", "user_id", userID, "error", err)
				} else {
					h.router.BroadcastPresence(rec)
				}
			}
			conn.Close()
			h.releaseCap(capKey, userID)
			h.logger.Info("session closed", "user_id", userID, "connections", h.registry.Count())
		})
	}
	defer teardown()

	go h.writeLoop(conn, client, teardown)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("read loop ended", "user_id", userID, "error", err)
			}
			return
		}
		// One frame at a time, in arrival order.
		h.router.Dispatch(ctx, userID, frame)
	}
}

// writeLoop drains the client's outbound channel onto the socket and pings
// on an interval. It exits when the channel closes (unregister or eviction)
// or a write fails, and tears the session down either way.
func (h *SessionHandler) writeLoop(conn *websocket.Conn, client *Client, teardown func()) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		teardown()
	}()

	for {
		select {
		case frame, ok := <-client.Outbound:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "replaced by newer connection"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Warn("write loop ended", "user_id", client.Identity, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendPresenceSnapshot queues the current presence of everyone the user has
// a conversation with, to this session only. A reconnecting client gets the
// full picture without a broadcast storm.
func (h *SessionHandler) sendPresenceSnapshot(ctx context.Context, client *Client) {
	participants, err := h.messages.Participants(ctx, client.Identity)
	if err != nil {
		h.logger.Error("participant lookup failed", "user_id", client.Identity, "error", err)
		return
	}
	if len(participants) == 0 {
		return
	}
	records, err := h.presence.GetMany(ctx, participants)
	if err != nil {
		h.logger.Error("presence snapshot failed", "user_id", client.Identity, "error", err)
		return
	}
	for _, rec := range records {
		frame, err := Encode(KindPresenceUpdate, PresencePayload{
			UserID:   rec.UserID,
			Status:   string(rec.Status),
			LastSeen: rec.LastSeen,
		})
		if err != nil {
			continue
		}
		h.registry.Send(client.Identity, frame)
	}
}

func (h *SessionHandler) releaseCap(capKey, userID string) {
	if h.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := utils.ReleaseConcurrencyCap(ctx, h.rdb, capKey); err != nil {
		h.logger.Error("connection cap release failed", "user_id", userID, "error", err)
	}
}
