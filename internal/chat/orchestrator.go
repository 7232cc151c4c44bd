package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/deskrelay/widget/internal/events"
	"github.com/deskrelay/widget/internal/gateway"
	"github.com/deskrelay/widget/internal/infrastructure/logging"
	"github.com/deskrelay/widget/internal/infrastructure/monitoring"
	"github.com/deskrelay/widget/internal/session"
	"github.com/deskrelay/widget/internal/shared/id"
	"github.com/deskrelay/widget/internal/shared/types"
	"github.com/deskrelay/widget/internal/state"
	"github.com/deskrelay/widget/internal/transport"
)

// messagePageSize is the history window fetched when hydrating a room.
const messagePageSize = 20

// Backend is the slice of the gateway the orchestrator needs.
type Backend interface {
	CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.SessionResult, error)
	SessionPolicy(ctx context.Context, applicationID string) (bool, error)
}

// Config holds orchestrator configuration.
type Config struct {
	ApplicationID string
	ChannelID     string
	ReadyTimeout  time.Duration
}

// InitiateParams identifies the visitor starting or resuming a chat.
type InitiateParams struct {
	UserID         string
	DisplayName    string
	AvatarURL      string
	Extras         map[string]interface{}
	UserProperties map[string]interface{}
}

// Orchestrator drives the session lifecycle: restore a stored session when
// one exists, otherwise run the fresh initiation handshake. All state
// changes land in the State Store before the matching lifecycle event is
// emitted. A mutex serializes lifecycle operations so concurrent initiation
// attempts cannot interleave.
type Orchestrator struct {
	mu        sync.Mutex
	cfg       Config
	backend   Backend
	transport transport.Session
	sessions  *session.Store
	state     *state.Store
	events    *events.Emitter
	metrics   *monitoring.Metrics
	log       *logging.Logger
}

// New creates an orchestrator. Metrics may be nil.
func New(cfg Config, backend Backend, tr transport.Session, sessions *session.Store,
	st *state.Store, em *events.Emitter, metrics *monitoring.Metrics, log *logging.Logger) *Orchestrator {

	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = 2 * time.Second
	}
	return &Orchestrator{
		cfg:       cfg,
		backend:   backend,
		transport: tr,
		sessions:  sessions,
		state:     st,
		events:    em,
		metrics:   metrics,
		log:       log,
	}
}

// InitiateChat starts or resumes the conversation. When a usable session
// tuple exists it is restored; a tuple that cannot be restored is an error,
// never a silent fall-through to fresh initiation, so a stored conversation
// is not quietly replaced. Without a tuple the full initiation handshake
// runs: nonce, backend session, identity verification, persistence.
func (o *Orchestrator) InitiateChat(ctx context.Context, params InitiateParams) error {
	if params.UserID == "" || params.DisplayName == "" {
		return ErrMissingIdentity
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	tuple, err := o.sessions.Get(o.cfg.ApplicationID)
	if err != nil {
		// Unreadable persistence is treated as no stored session.
		o.log.Warn("Session lookup failed, starting fresh", zap.Error(err))
		tuple = nil
	}

	if tuple.Usable(o.cfg.ApplicationID) {
		return o.restoreSession(ctx, tuple)
	}
	return o.freshInitiation(ctx, params)
}

// restoreSession resumes the conversation identified by the stored tuple.
// Any failure surfaces as a restore-stage InitiationError telling the
// caller to clear the session and initiate again.
func (o *Orchestrator) restoreSession(ctx context.Context, tuple *types.SessionTuple) error {
	user, err := o.transport.Authenticate(ctx, tuple.User, tuple.AuthToken)
	if err != nil {
		return o.initiationFailure(StageRestore,
			fmt.Errorf("stored session could not be resumed, clear the session and initiate again: %w", err))
	}

	if err := o.awaitReady(ctx); err != nil {
		return o.initiationFailure(StageRestore, err)
	}

	roomID := *tuple.RoomID
	room, msgs, err := o.transport.FetchRoom(ctx, roomID)
	if err != nil {
		return o.initiationFailure(StageRestore,
			fmt.Errorf("stored room could not be loaded, clear the session and initiate again: %w", err))
	}

	if room.Resolved() && o.appSessional(ctx) {
		if o.metrics != nil {
			o.metrics.RestoresRefused.Inc()
		}
		return o.initiationFailure(StageRestore,
			errors.New("conversation has ended, clear the session and initiate again"))
	}

	o.state.SetLoggedIn(user, roomID)
	o.applyRoom(ctx, room, msgs, user)

	if o.metrics != nil {
		o.metrics.SessionsRestored.Inc()
	}
	o.events.Emit(types.EventChatRestored, types.ChatEvent{
		User:     user,
		RoomID:   roomID,
		Room:     room,
		Messages: o.state.Messages(),
	})
	return nil
}

// appSessional looks up the application's conversation policy. The lookup
// is never cached, and a failed lookup counts as not sessional so a policy
// outage cannot lock visitors out of their conversation.
func (o *Orchestrator) appSessional(ctx context.Context) bool {
	sessional, err := o.backend.SessionPolicy(ctx, o.cfg.ApplicationID)
	if err != nil {
		o.log.Warn("Session policy lookup failed, treating app as not sessional", zap.Error(err))
		return false
	}
	return sessional
}

// freshInitiation runs the full handshake for a visitor without a stored
// session.
func (o *Orchestrator) freshInitiation(ctx context.Context, params InitiateParams) error {
	nonce, err := o.transport.Nonce(ctx)
	if err != nil {
		return o.initiationFailure(StageNonce, err)
	}

	req := gateway.SessionRequest{
		ApplicationID:  o.cfg.ApplicationID,
		UserID:         params.UserID,
		DisplayName:    params.DisplayName,
		AvatarURL:      params.AvatarURL,
		Extras:         params.Extras,
		UserProperties: params.UserProperties,
		Nonce:          nonce,
	}
	if o.cfg.ChannelID != "" {
		channel := o.cfg.ChannelID
		req.ChannelID = &channel
	}

	result, err := o.backend.CreateSession(ctx, req)
	if err != nil {
		return o.initiationFailure(StageBackend, err)
	}

	user, token, err := o.transport.VerifyIdentityToken(ctx, result.IdentityToken)
	if err != nil {
		return o.initiationFailure(StageVerify, err)
	}

	roomID := result.Room.ID
	tuple := &types.SessionTuple{
		ApplicationID: o.cfg.ApplicationID,
		User:          user,
		AuthToken:     token,
		RoomID:        &roomID,
	}
	if err := o.sessions.Put(tuple); err != nil {
		return o.initiationFailure(StagePersist, err)
	}

	o.state.SetLoggedIn(user, roomID)
	o.state.MergeRoom(&types.Room{
		ID:        roomID,
		Name:      result.Room.Name,
		AvatarURL: result.Room.AvatarURL,
		Options:   result.Room.Options,
	})

	if err := o.awaitReady(ctx); err != nil {
		return o.initiationFailure(StageVerify, err)
	}

	// The tuple stays persisted on hydration failure; the retry takes the
	// restore path instead of minting another session.
	if err := o.updateRoomInfo(ctx); err != nil {
		return o.initiationFailure(StageHydrate, err)
	}

	if o.metrics != nil {
		o.metrics.SessionsInitiated.Inc()
	}
	o.events.Emit(types.EventChatInitiated, types.ChatEvent{
		User:     user,
		RoomID:   roomID,
		Room:     o.state.Snapshot().Room,
		Messages: o.state.Messages(),
	})
	return nil
}

// awaitReady waits for the transport's configuration handshake, proceeding
// after the fallback delay if the handshake signal never arrives.
func (o *Orchestrator) awaitReady(ctx context.Context) error {
	select {
	case <-o.transport.Ready():
		return nil
	case <-time.After(o.cfg.ReadyTimeout):
		o.log.Warn("Transport readiness timed out, proceeding",
			zap.Duration("timeout", o.cfg.ReadyTimeout))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// initiationFailure records the failure and emits chat.error before
// returning the typed error.
func (o *Orchestrator) initiationFailure(stage string, err error) error {
	if o.metrics != nil {
		o.metrics.InitiationErrors.WithLabelValues(stage).Inc()
	}
	o.events.Emit(types.EventChatError, types.ErrorEvent{
		Stage:   stage,
		Message: err.Error(),
	})
	return &InitiationError{Stage: stage, Err: err}
}

// UpdateRoomInfo refreshes the active room and its message history. Before
// authentication it resolves to an empty result without error, so render
// paths can call it unconditionally.
func (o *Orchestrator) UpdateRoomInfo(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.updateRoomInfo(ctx)
}

func (o *Orchestrator) updateRoomInfo(ctx context.Context) error {
	if !o.transport.Authenticated() {
		return nil
	}
	roomID, ok := o.state.RoomID()
	if !ok {
		return nil
	}

	room, msgs, err := o.transport.FetchRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("update room info: %w", err)
	}

	o.applyRoom(ctx, room, msgs, o.state.CurrentUser())
	return nil
}

// applyRoom commits a fetched room to the State Store: backfills history to
// a full page, merges room fields, derives display meta, and emits
// room.loaded.
func (o *Orchestrator) applyRoom(ctx context.Context, room *types.Room, msgs []types.Message, user *types.UserRecord) {
	if len(msgs) > 0 && len(msgs) < messagePageSize {
		older, err := o.transport.FetchOlderMessages(ctx, room.ID, messagePageSize-len(msgs), msgs[0].ID)
		if err != nil {
			o.log.Debug("History backfill failed", zap.Error(err))
		} else {
			msgs = append(older, msgs...)
		}
	}

	o.state.MergeRoom(room)
	o.state.ReplaceMessages(msgs)

	subtitle, avatar := roomMeta(room, user)
	o.state.SetRoomMeta(subtitle, avatar)

	o.events.Emit(types.EventRoomLoaded, types.RoomEvent{
		Room:     room,
		Messages: o.state.Messages(),
	})
}

// roomMeta derives the room subtitle and avatar from the participant list.
// The visitor always appears first as "You"; the avatar comes from the
// first agent participant.
func roomMeta(room *types.Room, user *types.UserRecord) (string, string) {
	if room == nil || len(room.Participants) == 0 {
		return "", ""
	}

	names := []string{"You"}
	avatar := ""
	for i := range room.Participants {
		p := &room.Participants[i]
		if user != nil && p.Identifier == user.Identifier {
			continue
		}
		if p.DisplayName != "" {
			names = append(names, p.DisplayName)
		}
		if avatar == "" && p.IsAgent() {
			avatar = p.AvatarURL
		}
	}
	return strings.Join(names, ", "), avatar
}

// SendMessage posts a message to the active room. The message appears in
// the State Store optimistically with a temporary id and is replaced in
// place by the server-confirmed version.
func (o *Orchestrator) SendMessage(ctx context.Context, body string, extras map[string]interface{}) (*types.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}

	roomID, ok := o.state.RoomID()
	if !ok {
		return nil, ErrNoActiveRoom
	}

	var sender types.Participant
	if user := o.state.CurrentUser(); user != nil {
		sender = types.Participant{
			ID:          user.ID,
			Identifier:  user.Identifier,
			DisplayName: user.DisplayName,
			AvatarURL:   user.AvatarURL,
		}
	}

	pending := types.Message{
		TempID:    id.NewTempMessageID().String(),
		Body:      body,
		Timestamp: time.Now(),
		Sender:    sender,
		Delivery:  types.DeliveryPending,
		Extras:    extras,
	}
	// Optimistic insert only; message.sent waits for the confirmed
	// version so the event always carries the permanent id.
	o.state.Insert(pending)

	confirmed, err := o.transport.Send(ctx, roomID, &pending)
	if err != nil {
		o.state.MarkFailed(pending.TempID)
		o.events.Emit(types.EventChatError, types.ErrorEvent{
			Stage:   "send",
			Message: err.Error(),
		})
		return nil, fmt.Errorf("send message: %w", err)
	}

	o.state.Insert(*confirmed)
	if o.metrics != nil {
		o.metrics.MessagesSent.Inc()
	}
	o.events.Emit(types.EventMessageSent, *confirmed)
	return confirmed, nil
}

// HandleNewMessages applies inbound messages in delivered order. Duplicates
// are dropped silently; messages arriving while the panel is closed bump
// the unread counter.
func (o *Orchestrator) HandleNewMessages(msgs []types.Message) {
	user := o.state.CurrentUser()

	for _, msg := range msgs {
		if !o.state.Insert(msg) {
			continue
		}
		if o.metrics != nil {
			o.metrics.MessagesReceived.Inc()
		}
		o.events.Emit(types.EventMessageReceived, msg)

		fromSelf := user != nil && msg.Sender.Identifier == user.Identifier
		if !fromSelf && !o.state.Open() {
			count := o.state.IncrementUnread()
			if o.metrics != nil {
				o.metrics.UnreadCount.Set(float64(count))
			}
			o.events.Emit(types.EventUnreadChanged, types.UnreadEvent{Count: count})
		}
	}
}

// SetOpen records panel visibility. Opening the panel zeroes the unread
// counter.
func (o *Orchestrator) SetOpen(open bool) {
	o.state.SetOpen(open)
	if !open {
		return
	}

	if prev := o.state.ResetUnread(); prev > 0 {
		if o.metrics != nil {
			o.metrics.UnreadCount.Set(0)
		}
		o.events.Emit(types.EventUnreadChanged, types.UnreadEvent{Count: 0})
	}
}

// ClearSession removes the persisted tuple and resets conversation state.
// The next InitiateChat runs the fresh handshake.
func (o *Orchestrator) ClearSession() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.sessions.Clear(o.cfg.ApplicationID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	o.state.Reset()

	if o.metrics != nil {
		o.metrics.SessionsCleared.Inc()
	}
	o.events.Emit(types.EventChatCleared, nil)
	return nil
}

// Snapshot returns the current conversation state.
func (o *Orchestrator) Snapshot() types.Snapshot {
	return o.state.Snapshot()
}

// Listen pumps the transport event stream into the orchestrator until the
// context is cancelled or the stream closes. Run it on its own goroutine.
func (o *Orchestrator) Listen(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.transport.Events():
			if !ok {
				return
			}
			o.handleTransportEvent(ev)
		}
	}
}

func (o *Orchestrator) handleTransportEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventMessage:
		if ev.Message == nil {
			return
		}
		o.HandleNewMessages([]types.Message{*ev.Message})

	case transport.EventTyping:
		if user := o.state.CurrentUser(); user != nil && ev.UserID == user.Identifier {
			return
		}
		o.state.SetTyping(ev.Typing)
		o.events.Emit(types.EventTyping, types.TypingEvent{
			RoomID: ev.RoomID,
			UserID: ev.UserID,
			Typing: ev.Typing,
		})

	case transport.EventDelivered, transport.EventRead:
		deliveryState := types.DeliveryDelivered
		if ev.Kind == transport.EventRead {
			deliveryState = types.DeliveryRead
		}
		if changed := o.state.MarkDelivery(ev.WatermarkID, deliveryState); changed > 0 {
			o.events.Emit(types.EventMessageUpdated, types.RoomEvent{
				Messages: o.state.Messages(),
			})
		}
	}
}
