package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"messaging-platform/internal/auth"
	"messaging-platform/internal/calls"
	"messaging-platform/internal/gateway"
	"messaging-platform/internal/messaging"
	"messaging-platform/internal/presence"
	"messaging-platform/internal/reporting"
	"messaging-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth     *auth.Manager
	Calls    *calls.Service
	Presence *presence.Service
	Messages *messaging.Service
	Reports  *reporting.Service
	Router   *gateway.Router
	Registry *gateway.Registry
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

// GetCallHistory lists the authenticated user's calls, newest first.
func (h Handlers) GetCallHistory(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	history, err := h.Calls.History(c.Request.Context(), userID, limit)
	if err != nil {
		logger.From(c.Request.Context()).Error("call history lookup failed", "user_id", userID, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	if history == nil {
		history = []calls.Call{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": history})
}

// GetActiveCall returns the user's pending or accepted call, if any.
func (h Handlers) GetActiveCall(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	call, err := h.Calls.Active(c.Request.Context(), userID)
	if errors.Is(err, calls.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"call": nil})
		return
	}
	if err != nil {
		logger.From(c.Request.Context()).Error("active call lookup failed", "user_id", userID, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "active call lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": call})
}

// --- Presence ---

func (h Handlers) GetPresence(c *gin.Context) {
	target := c.Param("user_id")
	if target == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	rec, err := h.Presence.Get(c.Request.Context(), target)
	if errors.Is(err, presence.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no presence record"})
		return
	}
	if err != nil {
		logger.From(c.Request.Context()).Error("presence lookup failed", "target", target, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "presence lookup failed"})
		return
	}

	// The stored record can lag reality (sweep cadence); the registry is
	// ground truth for whether a session is live right now.
	connected := false
	if h.Registry != nil {
		_, connected = h.Registry.Lookup(target)
	}
	c.JSON(http.StatusOK, gin.H{"presence": rec, "connected": connected})
}

type presenceUpdateRequest struct {
	Status string `json:"status"`
}

// UpdatePresence sets the caller's own status and pushes the new record to
// every connected client, same as the websocket presence_update path.
func (h Handlers) UpdatePresence(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req presenceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := h.Presence.Update(c.Request.Context(), userID, presence.Status(req.Status))
	if errors.Is(err, presence.ErrInvalidStatus) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	if err != nil {
		logger.From(c.Request.Context()).Error("presence update failed", "user_id", userID, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "presence update failed"})
		return
	}
	if h.Router != nil {
		h.Router.BroadcastPresence(rec)
	}
	c.JSON(http.StatusOK, rec)
}

// --- Messages ---

// GetConversationMessages returns metadata for a conversation the caller is
// part of, newest first. This is the catch-up path for messages missed while
// disconnected.
func (h Handlers) GetConversationMessages(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	conversationID := c.Param("conversation_id")
	if conversationID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "conversation_id required"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.Messages.ConversationMessages(c.Request.Context(), conversationID, userID, limit)
	if errors.Is(err, messaging.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		logger.From(c.Request.Context()).Error("message lookup failed", "conversation_id", conversationID, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "message lookup failed"})
		return
	}
	if msgs == nil {
		msgs = []messaging.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// --- Reports ---

// GetActivitySummary aggregates the caller's call and message activity.
// Range from/to are RFC3339 query parameters; default is the last 30 days.
func (h Handlers) GetActivitySummary(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return
		}
	}

	summary, err := h.Reports.ActivitySummary(c.Request.Context(), reporting.ActivitySummaryRequest{
		UserID: userID,
		Range:  reporting.TimeRange{From: from, To: to},
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		logger.From(c.Request.Context()).Error("activity summary failed", "user_id", userID, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
