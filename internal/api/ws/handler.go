package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/deskrelay/widget/internal/chat"
	"github.com/deskrelay/widget/internal/events"
	"github.com/deskrelay/widget/internal/infrastructure/logging"
	"github.com/deskrelay/widget/internal/infrastructure/monitoring"
	"github.com/deskrelay/widget/internal/shared/id"
	"github.com/deskrelay/widget/internal/shared/types"
)

const (
	writeTimeout   = 10 * time.Second
	commandTimeout = 30 * time.Second
	outBuffer      = 32
)

// pushEvents are the lifecycle events forwarded to connected widgets.
var pushEvents = []string{
	types.EventChatInitiated,
	types.EventChatRestored,
	types.EventChatError,
	types.EventChatCleared,
	types.EventMessageSent,
	types.EventMessageReceived,
	types.EventMessageUpdated,
	types.EventRoomLoaded,
	types.EventUnreadChanged,
	types.EventTyping,
}

// frame is a single outbound WebSocket message.
type frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// command is an inbound WebSocket message from the widget.
type command struct {
	Type   string                 `json:"type"`
	Body   string                 `json:"body,omitempty"`
	Extras map[string]interface{} `json:"extras,omitempty"`
}

// Handler pushes lifecycle events to connected widget bundles and accepts
// send/ping commands from them.
type Handler struct {
	orch     *chat.Orchestrator
	emitter  *events.Emitter
	metrics  *monitoring.Metrics
	log      *logging.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler. Metrics may be nil.
func NewHandler(orch *chat.Orchestrator, em *events.Emitter, metrics *monitoring.Metrics, log *logging.Logger) *Handler {
	return &Handler{
		orch:    orch,
		emitter: em,
		metrics: metrics,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The widget embeds on arbitrary customer origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandleConnection upgrades the request and bridges lifecycle events to the
// socket until the widget disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := id.NewConnID()
	h.log.Info("Widget connected", zap.String("conn_id", connID.String()))
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	out := make(chan frame, outBuffer)
	done := make(chan struct{})
	defer close(done)

	unsubs := make([]func(), 0, len(pushEvents))
	for _, name := range pushEvents {
		name := name
		unsubs = append(unsubs, h.emitter.On(name, func(payload interface{}) {
			select {
			case out <- frame{Type: name, Payload: payload}:
			default:
				// Slow widget; dropping beats stalling the orchestrator.
				h.log.Warn("Dropping push event, widget too slow",
					zap.String("conn_id", connID.String()),
					zap.String("event", name))
			}
		}))
	}
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	go h.writeLoop(conn, connID, out, done)

	// Give the widget its current state immediately.
	h.push(out, frame{Type: "state", Payload: h.orch.Snapshot()})

	h.readLoop(conn, connID, out)
}

// push enqueues a frame without ever blocking the caller.
func (h *Handler) push(out chan<- frame, f frame) {
	select {
	case out <- f:
	default:
		h.log.Warn("Dropping frame, outbound buffer full", zap.String("type", f.Type))
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, connID id.ConnID, out <-chan frame, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case f := <-out:
			data, err := sonic.Marshal(f)
			if err != nil {
				h.log.Error("Push frame marshal failed", zap.Error(err))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("Widget write failed", zap.String("conn_id", connID.String()), zap.Error(err))
				return
			}
			if h.metrics != nil {
				h.metrics.WSMessages.WithLabelValues("out").Inc()
			}
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, connID id.ConnID, out chan<- frame) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("Widget connection lost", zap.String("conn_id", connID.String()), zap.Error(err))
			}
			return
		}
		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues("in").Inc()
		}

		var cmd command
		if err := sonic.Unmarshal(data, &cmd); err != nil {
			h.push(out, frame{Type: "error", Payload: gin.H{"error": "malformed command"}})
			continue
		}

		switch cmd.Type {
		case "ping":
			h.push(out, frame{Type: "pong"})

		case "send":
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			msg, err := h.orch.SendMessage(ctx, cmd.Body, cmd.Extras)
			cancel()
			if err != nil {
				h.push(out, frame{Type: "error", Payload: gin.H{"error": err.Error()}})
				continue
			}
			h.push(out, frame{Type: "sent", Payload: msg})

		default:
			h.push(out, frame{Type: "error", Payload: gin.H{"error": "unknown command type"}})
		}
	}
}
