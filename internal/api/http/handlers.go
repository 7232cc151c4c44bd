package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/deskrelay/widget/internal/chat"
	"github.com/deskrelay/widget/internal/infrastructure/logging"
)

// Handlers exposes the orchestrator over HTTP for the widget bundle.
type Handlers struct {
	orch    *chat.Orchestrator
	log     *logging.Logger
	started time.Time
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(orch *chat.Orchestrator, log *logging.Logger) *Handlers {
	return &Handlers{orch: orch, log: log, started: time.Now()}
}

// Root returns service identification.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "deskrelay-widget",
		"status":  "running",
	})
}

// Health returns service health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

type initiateRequest struct {
	UserID         string                 `json:"user_id" binding:"required"`
	DisplayName    string                 `json:"display_name" binding:"required"`
	AvatarURL      string                 `json:"avatar_url"`
	Extras         map[string]interface{} `json:"extras"`
	UserProperties map[string]interface{} `json:"user_properties"`
}

// InitiateChat starts or resumes the conversation for a visitor.
func (h *Handlers) InitiateChat(c *gin.Context) {
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.orch.InitiateChat(c.Request.Context(), chat.InitiateParams{
		UserID:         req.UserID,
		DisplayName:    req.DisplayName,
		AvatarURL:      req.AvatarURL,
		Extras:         req.Extras,
		UserProperties: req.UserProperties,
	})
	if err != nil {
		h.log.Error("Chat initiation failed", zap.Error(err))

		var initErr *chat.InitiationError
		switch {
		case errors.Is(err, chat.ErrMissingIdentity):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.As(err, &initErr) && initErr.Stage == chat.StageRestore:
			// The stored session is unusable; the remedy is a clear + retry.
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "stage": initErr.Stage})
		case errors.As(err, &initErr):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "stage": initErr.Stage})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, h.orch.Snapshot())
}

// GetState returns the current conversation snapshot.
func (h *Handlers) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Snapshot())
}

type sendMessageRequest struct {
	Body   string                 `json:"body"`
	Extras map[string]interface{} `json:"extras"`
}

// SendMessage posts a message to the active room.
func (h *Handlers) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.orch.SendMessage(c.Request.Context(), req.Body, req.Extras)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, chat.ErrNoActiveRoom):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.log.Error("Message send failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, msg)
}

// Open marks the widget panel open and resets the unread counter.
func (h *Handlers) Open(c *gin.Context) {
	h.orch.SetOpen(true)
	c.JSON(http.StatusOK, h.orch.Snapshot())
}

// Close marks the widget panel closed.
func (h *Handlers) Close(c *gin.Context) {
	h.orch.SetOpen(false)
	c.JSON(http.StatusOK, h.orch.Snapshot())
}

// ClearSession drops the stored session and resets conversation state.
func (h *Handlers) ClearSession(c *gin.Context) {
	if err := h.orch.ClearSession(); err != nil {
		h.log.Error("Session clear failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
