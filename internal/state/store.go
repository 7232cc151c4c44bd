package state

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/deskrelay/widget/internal/shared/types"
)

// Store is the in-memory single source of truth for the active
// conversation. Rendering observes it through Snapshot; only the
// orchestrator and message-arrival handlers mutate it.
type Store struct {
	mu        sync.RWMutex
	snap      types.Snapshot
	keys      map[string]int // dedup-resolved identity -> index in snap.Messages
	sanitizer *bluemonday.Policy
}

// NewStore creates an empty state store.
func NewStore() *Store {
	return &Store{
		keys: make(map[string]int),
		// Message bodies are rendered as HTML by the widget; strip
		// anything beyond user-generated markup before it enters state.
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// SetLoggedIn marks the session authenticated with the given user and room.
func (s *Store) SetLoggedIn(user *types.UserRecord, roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.LoggedIn = true
	s.snap.CurrentUser = user
	s.snap.RoomID = &roomID
}

// CurrentUser returns the logged-in user, or nil.
func (s *Store) CurrentUser() *types.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.CurrentUser
}

// RoomID returns the active room id, if one is set.
func (s *Store) RoomID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap.RoomID == nil {
		return 0, false
	}
	return *s.snap.RoomID, true
}

// MergeRoom shallow-merges a fetched room into the current room object,
// preserving locally-set fields the fetch didn't return.
func (s *Store) MergeRoom(room *types.Room) {
	if room == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Room == nil {
		copied := *room
		s.snap.Room = &copied
		return
	}

	current := s.snap.Room
	if room.ID != 0 {
		current.ID = room.ID
	}
	if room.Name != "" {
		current.Name = room.Name
	}
	if room.AvatarURL != "" {
		current.AvatarURL = room.AvatarURL
	}
	if room.Participants != nil {
		current.Participants = room.Participants
	}
	if room.LastMessageID != 0 {
		current.LastMessageID = room.LastMessageID
	}
	if room.LastMessage != "" {
		current.LastMessage = room.LastMessage
	}
	if room.Options != "" {
		current.Options = room.Options
	}
}

// SetRoomMeta sets the derived display subtitle and avatar.
func (s *Store) SetRoomMeta(subtitle, avatar string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.RoomSubtitle = subtitle
	if avatar != "" {
		s.snap.RoomAvatar = avatar
	}
}

// Insert adds a message to the ordered list, deduplicating by resolved
// identity. A server-confirmed message replaces the pending entry carrying
// the same temporary id in place. Returns false when the insert was
// dropped as a duplicate.
func (s *Store) Insert(msg types.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(msg)
}

func (s *Store) insertLocked(msg types.Message) bool {
	msg.Body = s.sanitizer.Sanitize(msg.Body)

	if msg.ID > 0 && msg.TempID != "" {
		// Confirmed version of an optimistic insert: replace the pending
		// entry, keeping its position in the list.
		pendingKey := "tmp:" + msg.TempID
		if idx, ok := s.keys[pendingKey]; ok {
			if _, confirmed := s.keys[msg.Key()]; confirmed {
				// Confirmed copy already arrived; drop the stale pending entry.
				s.removeLocked(idx, pendingKey)
				return false
			}
			delete(s.keys, pendingKey)
			s.snap.Messages[idx] = msg
			s.keys[msg.Key()] = idx
			return true
		}
	}

	if _, dup := s.keys[msg.Key()]; dup {
		return false
	}

	s.snap.Messages = append(s.snap.Messages, msg)
	s.keys[msg.Key()] = len(s.snap.Messages) - 1
	return true
}

// removeLocked splices out the message at idx and reindexes the tail.
func (s *Store) removeLocked(idx int, key string) {
	delete(s.keys, key)
	s.snap.Messages = append(s.snap.Messages[:idx], s.snap.Messages[idx+1:]...)
	for i := idx; i < len(s.snap.Messages); i++ {
		s.keys[s.snap.Messages[i].Key()] = i
	}
}

// ReplaceMessages swaps the message list wholesale, applying the same
// dedup-aware insert path entry by entry so pagination overlap collapses.
func (s *Store) ReplaceMessages(msgs []types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Messages = s.snap.Messages[:0]
	s.keys = make(map[string]int, len(msgs))
	for _, msg := range msgs {
		s.insertLocked(msg)
	}
}

// Messages returns a copy of the ordered message list.
func (s *Store) Messages() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Message, len(s.snap.Messages))
	copy(out, s.snap.Messages)
	return out
}

// MarkDelivery advances the delivery state of every message with a
// permanent id up to and including upTo. Receipts only move forward:
// a read message never regresses to delivered. Returns the number of
// messages changed.
func (s *Store) MarkDelivery(upTo int64, state types.DeliveryState) int {
	rank := deliveryRank(state)

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for i := range s.snap.Messages {
		m := &s.snap.Messages[i]
		if m.ID == 0 || m.ID > upTo {
			continue
		}
		if deliveryRank(m.Delivery) < rank {
			m.Delivery = state
			changed++
		}
	}
	return changed
}

// MarkFailed flags the pending message with the given temporary id as
// failed. Returns false when no such pending entry exists.
func (s *Store) MarkFailed(tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.keys["tmp:"+tempID]
	if !ok {
		return false
	}
	s.snap.Messages[idx].Delivery = types.DeliveryFailed
	return true
}

func deliveryRank(state types.DeliveryState) int {
	switch state {
	case types.DeliveryPending:
		return 0
	case types.DeliverySent:
		return 1
	case types.DeliveryDelivered:
		return 2
	case types.DeliveryRead:
		return 3
	default:
		return 0
	}
}

// SetOpen records whether the widget panel is open.
func (s *Store) SetOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Open = open
}

// Open reports whether the widget panel is open.
func (s *Store) Open() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Open
}

// SetTyping records agent typing state.
func (s *Store) SetTyping(typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Typing = typing
}

// IncrementUnread bumps the unread counter and returns the new value.
func (s *Store) IncrementUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.UnreadCount++
	return s.snap.UnreadCount
}

// ResetUnread zeroes the unread counter and returns the previous value.
func (s *Store) ResetUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snap.UnreadCount
	s.snap.UnreadCount = 0
	return prev
}

// Snapshot returns a copy of the externally observable state.
func (s *Store) Snapshot() types.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snap
	snap.Messages = make([]types.Message, len(s.snap.Messages))
	copy(snap.Messages, s.snap.Messages)

	if s.snap.Room != nil {
		room := *s.snap.Room
		snap.Room = &room
	}
	if s.snap.CurrentUser != nil {
		user := *s.snap.CurrentUser
		snap.CurrentUser = &user
	}
	if s.snap.RoomID != nil {
		roomID := *s.snap.RoomID
		snap.RoomID = &roomID
	}
	return snap
}

// Reset returns the store to its initial empty state. Called on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = types.Snapshot{}
	s.keys = make(map[string]int)
}
