package transport

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/deskrelay/widget/internal/infrastructure/logging"
	"github.com/deskrelay/widget/internal/shared/types"
)

// Config holds messaging transport configuration.
type Config struct {
	BaseURL   string
	StreamURL string
	Timeout   time.Duration
}

const sessionHeader = "X-Session-Token"

// Client is the vendor messaging transport: REST for auth and message
// operations, a websocket stream for inbound events. It implements Session.
type Client struct {
	resty     *resty.Client
	streamURL string
	log       *logging.Logger

	mu            sync.Mutex
	token         string
	user          *types.UserRecord
	authenticated bool
	conn          *websocket.Conn

	ready     chan struct{}
	readyOnce sync.Once
	events    chan Event
	closeOnce sync.Once
}

var _ Session = (*Client)(nil)

// NewClient creates a transport client. The stream is not connected until
// authentication succeeds.
func NewClient(cfg Config, log *logging.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		resty: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("User-Agent", "DeskRelay-Widget/1.0"),
		streamURL: cfg.StreamURL,
		log:       log,
		ready:     make(chan struct{}),
		events:    make(chan Event, 64),
	}
}

// Nonce fetches a fresh single-use nonce. Never cached: each initiation
// attempt must obtain its own.
func (c *Client) Nonce(ctx context.Context) (string, error) {
	resp, err := c.resty.R().SetContext(ctx).Post("/api/v2/sdk/auth/nonce")
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("nonce: %s", restError(resp))
	}

	var env nonceEnvelope
	if err := sonic.Unmarshal(resp.Body(), &env); err != nil {
		return "", fmt.Errorf("nonce: decode: %w", err)
	}
	if env.Results.Nonce == "" {
		return "", fmt.Errorf("nonce: empty nonce in response")
	}
	return env.Results.Nonce, nil
}

// VerifyIdentityToken exchanges a backend-issued identity token for the
// verified user and the transport auth token. On success the session is
// authenticated and the event stream is connected.
func (c *Client) VerifyIdentityToken(ctx context.Context, identityToken string) (*types.UserRecord, string, error) {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(map[string]string{"identity_token": identityToken}).
		Post("/api/v2/sdk/auth/verify")
	if err != nil {
		return nil, "", fmt.Errorf("verify identity token: %w", err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("verify identity token: %s", restError(resp))
	}

	var env userEnvelope
	if err := sonic.Unmarshal(resp.Body(), &env); err != nil {
		return nil, "", fmt.Errorf("verify identity token: decode: %w", err)
	}
	if env.Results.User.Token == "" {
		return nil, "", fmt.Errorf("verify identity token: no auth token in response")
	}

	user := env.Results.User.toUser()
	if err := c.establish(user, env.Results.User.Token); err != nil {
		return nil, "", err
	}
	return user, env.Results.User.Token, nil
}

// Authenticate resumes a session with a stored auth token. The token is
// validated against the vendor before the session is considered live.
func (c *Client) Authenticate(ctx context.Context, user *types.UserRecord, token string) (*types.UserRecord, error) {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetHeader(sessionHeader, token).
		Get("/api/v2/sdk/my_profile")
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("authenticate: %s", restError(resp))
	}

	var env userEnvelope
	if err := sonic.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("authenticate: decode: %w", err)
	}

	verified := env.Results.User.toUser()
	if verified.Identifier == "" {
		verified = user
	}
	if err := c.establish(verified, token); err != nil {
		return nil, err
	}
	return verified, nil
}

// establish records the authenticated identity and connects the stream.
func (c *Client) establish(user *types.UserRecord, token string) error {
	c.mu.Lock()
	c.user = user
	c.token = token
	c.authenticated = true
	c.mu.Unlock()

	return c.connectStream(token)
}

func (c *Client) connectStream(token string) error {
	if c.streamURL == "" {
		// No stream configured; nothing to hand-shake with.
		c.readyOnce.Do(func() { close(c.ready) })
		return nil
	}

	u, err := url.Parse(c.streamURL)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.events)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("Stream closed unexpectedly", zap.Error(err))
			}
			return
		}

		event, frameType, err := decodeFrame(data)
		if err != nil {
			c.log.Warn("Dropping malformed stream frame", zap.Error(err))
			continue
		}
		if frameType == frameConnected {
			c.readyOnce.Do(func() { close(c.ready) })
			continue
		}
		if event == nil {
			continue
		}

		select {
		case c.events <- *event:
		default:
			// Consumer stalled; shedding is preferable to blocking the
			// read loop and starving ping handling.
			c.log.Warn("Dropping stream event, consumer too slow",
				zap.String("frame", frameType))
		}
	}
}

// Authenticated reports whether the session holds a validated token.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Ready is closed once the stream handshake completes.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// FetchRoom returns the room with its inline recent messages, oldest first.
func (c *Client) FetchRoom(ctx context.Context, roomID int64) (*types.Room, []types.Message, error) {
	resp, err := c.authedRequest(ctx).
		SetQueryParam("room_id", strconv.FormatInt(roomID, 10)).
		Get("/api/v2/sdk/room_with_messages")
	if err != nil {
		return nil, nil, fmt.Errorf("fetch room: %w", err)
	}
	if resp.IsError() {
		return nil, nil, fmt.Errorf("fetch room: %s", restError(resp))
	}

	var env roomEnvelope
	if err := sonic.Unmarshal(resp.Body(), &env); err != nil {
		return nil, nil, fmt.Errorf("fetch room: decode: %w", err)
	}
	return env.Results.Room.toRoom(), toMessages(env.Results.Messages), nil
}

// FetchOlderMessages returns up to limit messages strictly before beforeID,
// oldest first.
func (c *Client) FetchOlderMessages(ctx context.Context, roomID int64, limit int, beforeID int64) ([]types.Message, error) {
	req := c.authedRequest(ctx).
		SetQueryParam("room_id", strconv.FormatInt(roomID, 10)).
		SetQueryParam("limit", strconv.Itoa(limit))
	if beforeID > 0 {
		req.SetQueryParam("before_id", strconv.FormatInt(beforeID, 10))
	}

	resp, err := req.Get("/api/v2/sdk/messages")
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch messages: %s", restError(resp))
	}

	var env messagesEnvelope
	if err := sonic.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("fetch messages: decode: %w", err)
	}
	return toMessages(env.Results.Messages), nil
}

// Send posts a message and returns the server-confirmed version carrying
// the permanent id alongside the original temp id.
func (c *Client) Send(ctx context.Context, roomID int64, msg *types.Message) (*types.Message, error) {
	resp, err := c.authedRequest(ctx).
		SetBody(map[string]interface{}{
			"room_id":        roomID,
			"message":        msg.Body,
			"unique_temp_id": msg.TempID,
			"extras":         msg.Extras,
		}).
		Post("/api/v2/sdk/messages")
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("send message: %s", restError(resp))
	}

	var env messageEnvelope
	if err := sonic.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("send message: decode: %w", err)
	}

	confirmed := env.Results.Message.toMessage()
	return &confirmed, nil
}

// Events is the inbound event stream. Closed when the stream disconnects.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Close tears down the stream connection. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.authenticated = false
		c.mu.Unlock()

		if conn != nil {
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			err = conn.Close()
		} else {
			// Stream never connected; readLoop isn't around to close events.
			close(c.events)
		}
	})
	return err
}

func (c *Client) authedRequest(ctx context.Context) *resty.Request {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	return c.resty.R().SetContext(ctx).SetHeader(sessionHeader, token)
}

// restError extracts the vendor's nested error message, falling back to
// the HTTP status.
func restError(resp *resty.Response) string {
	var env wireError
	if err := sonic.Unmarshal(resp.Body(), &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return fmt.Sprintf("transport returned status %d", resp.StatusCode())
}
