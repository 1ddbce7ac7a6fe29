// Package clientstate is the consumer-side view of one broadcast. A
// pure reducer folds backfill, live fan-out events, and optimistic
// local actions into a single consistent State; replaying any event
// is a no-op. Server echoes are authoritative and retire matching
// pending local actions.
package clientstate

import (
	"time"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
)

// PendingAction is an optimistic local action awaiting its server echo.
type PendingAction struct {
	MessageID string
	Kind      string
}

// State is an immutable snapshot; Apply returns a new value and never
// mutates its input. Slices are copied on write so old snapshots stay
// valid.
type State struct {
	BroadcastID string
	SelfUserID  string

	IsLive      bool
	Broadcaster domain.BroadcasterInfo

	Listeners     int
	PeakListeners int
	Users         []string

	Messages    []domain.ChatMessage
	PinnedID    string
	UnreadCount int
	ChatOpen    bool

	TypingUserIDs []string
	Settings      domain.ChatSettings

	Sources []domain.AudioSource

	CallID        string
	CallState     domain.CallState
	QueuePosition int

	Pending []PendingAction

	LastSentAt time.Time
	LastError  string
}

// NewState returns the initial view for one authenticated user.
func NewState(selfUserID string) State {
	return State{
		SelfUserID: selfUserID,
		Settings:   domain.DefaultChatSettings(),
	}
}

// Local actions fed to the reducer alongside server events.

// OpenChat marks the chat UI visible; the unread counter resets.
type OpenChat struct{}

// CloseChat marks the chat UI hidden; new foreign messages count as unread.
type CloseChat struct{}

// LocalReaction is an optimistic reaction applied before the server
// confirms it.
type LocalReaction struct {
	MessageID string
	Kind      string
}

// MarkSent records a successful local send for the slow-mode gate.
type MarkSent struct {
	At time.Time
}

// CanSend is the client-side gate mirroring the server's send policy.
// It never substitutes for the server check; it only avoids sends that
// are certain to be rejected.
func (s State) CanSend(content string, now time.Time) error {
	if s.Settings.MaxMessageLength > 0 && len(content) > s.Settings.MaxMessageLength {
		return domain.ErrMessageTooLong
	}
	if !s.Settings.AllowEmoji && domain.ContainsEmoji(content) {
		return domain.ErrEmojiDisabled
	}
	if s.Settings.SlowModeSeconds > 0 && !s.LastSentAt.IsZero() {
		next := s.LastSentAt.Add(time.Duration(s.Settings.SlowModeSeconds) * time.Second)
		if now.Before(next) {
			return domain.ErrSlowMode
		}
	}
	return nil
}

// Message returns the message with the given id, if present.
func (s State) Message(messageID string) (domain.ChatMessage, bool) {
	for _, m := range s.Messages {
		if m.ID == messageID {
			return m, true
		}
	}
	return domain.ChatMessage{}, false
}

// Apply folds one event or local action into the state.
func Apply(s State, event interface{}) State {
	switch e := event.(type) {
	case *domain.BroadcastInfoMessage:
		return s.applyInfo(e)
	case *domain.BroadcasterReadyMessage:
		s = s.switchBroadcast(e.BroadcastID)
		s.IsLive = true
		s.Broadcaster = e.Broadcaster
		return s
	case *domain.BroadcastEndedMessage:
		if e.BroadcastID != s.BroadcastID {
			return s
		}
		s.IsLive = false
		s.CallID = ""
		s.CallState = ""
		s.QueuePosition = 0
		s.TypingUserIDs = nil
		return s
	case *domain.ListenerCountMessage:
		if e.BroadcastID != s.BroadcastID {
			return s
		}
		s.Listeners = e.Count
		s.PeakListeners = e.Peak
		return s
	case *domain.ChatHistoryMessage:
		return s.applyHistory(e)
	case *domain.NewChatMessage:
		return s.applyNewMessage(e.Message)
	case *domain.MessageUpdatedMessage:
		return s.applyUpdated(e.Message)
	case *domain.MessageDeletedMessage:
		return s.applyDeleted(e.MessageID, e.Reason)
	case *domain.TypingUpdateMessage:
		if e.BroadcastID != s.BroadcastID {
			return s
		}
		s.TypingUserIDs = append([]string(nil), e.UserIDs...)
		return s
	case *domain.SettingsUpdatedMessage:
		if e.BroadcastID != s.BroadcastID {
			return s
		}
		s.Settings = e.Settings
		return s
	case *domain.UserPresenceMessage:
		return s.applyPresence(e)
	case *domain.AudioSourceEventMessage:
		return s.applySource(e)
	case *domain.CallPendingMessage:
		s.CallID = e.CallID
		s.CallState = domain.CallPending
		s.QueuePosition = e.Position
		return s
	case *domain.CallAcceptedMessage:
		if e.CallID != s.CallID {
			return s
		}
		s.CallState = domain.CallActive
		s.QueuePosition = 0
		return s
	case *domain.CallClosedMessage:
		if e.CallID != s.CallID {
			return s
		}
		if e.Type == domain.MsgTypeCallTimeout {
			s.CallState = domain.CallTimedOut
		} else {
			s.CallState = domain.CallEnded
		}
		s.QueuePosition = 0
		return s
	case *domain.ErrorMessage:
		s.LastError = e.Code
		return s

	case OpenChat:
		s.ChatOpen = true
		s.UnreadCount = 0
		return s
	case CloseChat:
		s.ChatOpen = false
		return s
	case LocalReaction:
		return s.applyLocalReaction(e)
	case MarkSent:
		s.LastSentAt = e.At
		return s
	}
	return s
}

// switchBroadcast clears everything scoped to the previous broadcast
// id. State is never merged across broadcasts.
func (s State) switchBroadcast(broadcastID string) State {
	if s.BroadcastID == broadcastID {
		return s
	}
	next := NewState(s.SelfUserID)
	next.BroadcastID = broadcastID
	next.ChatOpen = s.ChatOpen
	return next
}

func (s State) applyInfo(e *domain.BroadcastInfoMessage) State {
	s = s.switchBroadcast(e.BroadcastID)
	s.IsLive = e.IsLive
	s.Broadcaster = e.Broadcaster
	s.Listeners = e.Listeners
	s.Settings = e.Settings
	s.Sources = append([]domain.AudioSource(nil), e.Sources...)
	return s
}

func (s State) applyHistory(e *domain.ChatHistoryMessage) State {
	if e.BroadcastID != s.BroadcastID {
		return s
	}
	// Backfill seeds the log without touching the unread counter.
	for _, m := range e.Messages {
		if _, ok := s.Message(m.ID); ok {
			continue
		}
		s.Messages = append(cloneMessages(s.Messages), m)
		if m.IsPinned {
			s.PinnedID = m.ID
		}
	}
	return s
}

func (s State) applyNewMessage(m domain.ChatMessage) State {
	if m.BroadcastID != "" && m.BroadcastID != s.BroadcastID {
		return s
	}
	if _, ok := s.Message(m.ID); ok {
		return s
	}
	s.Messages = append(cloneMessages(s.Messages), m)
	if !s.ChatOpen && m.UserID != s.SelfUserID {
		s.UnreadCount++
	}
	return s
}

func (s State) applyUpdated(m domain.ChatMessage) State {
	msgs := cloneMessages(s.Messages)
	found := false
	for i := range msgs {
		if msgs[i].ID == m.ID {
			msgs[i] = m
			found = true
			break
		}
	}
	if !found {
		return s
	}
	s.Messages = msgs
	if m.IsPinned {
		s.PinnedID = m.ID
	} else if s.PinnedID == m.ID {
		s.PinnedID = ""
	}
	s.Pending = retirePending(s.Pending, m.ID)
	return s
}

func (s State) applyDeleted(messageID, reason string) State {
	msgs := cloneMessages(s.Messages)
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].IsModerated = true
			msgs[i].ModerationReason = reason
			s.Messages = msgs
			if s.PinnedID == messageID {
				s.PinnedID = ""
			}
			return s
		}
	}
	return s
}

func (s State) applyPresence(e *domain.UserPresenceMessage) State {
	if e.BroadcastID != s.BroadcastID {
		return s
	}
	switch e.Type {
	case domain.MsgTypeUserJoined:
		for _, id := range s.Users {
			if id == e.UserID {
				return s
			}
		}
		s.Users = append(append([]string(nil), s.Users...), e.UserID)
	case domain.MsgTypeUserLeft:
		users := make([]string, 0, len(s.Users))
		for _, id := range s.Users {
			if id != e.UserID {
				users = append(users, id)
			}
		}
		s.Users = users
	}
	return s
}

func (s State) applySource(e *domain.AudioSourceEventMessage) State {
	if e.BroadcastID != s.BroadcastID {
		return s
	}
	sources := append([]domain.AudioSource(nil), s.Sources...)
	switch e.Type {
	case domain.MsgTypeAudioSourceRemoved:
		out := sources[:0]
		for _, src := range sources {
			if src.ID != e.Source.ID {
				out = append(out, src)
			}
		}
		s.Sources = out
	default:
		for i := range sources {
			if sources[i].ID == e.Source.ID {
				sources[i] = e.Source
				s.Sources = sources
				return s
			}
		}
		s.Sources = append(sources, e.Source)
	}
	return s
}

// applyLocalReaction bumps counters optimistically and records the
// pending action. The server echo (message-updated) replaces the whole
// message, which retires the pending entry.
func (s State) applyLocalReaction(e LocalReaction) State {
	for _, p := range s.Pending {
		if p.MessageID == e.MessageID && p.Kind == e.Kind {
			return s
		}
	}

	msgs := cloneMessages(s.Messages)
	for i := range msgs {
		if msgs[i].ID != e.MessageID {
			continue
		}
		switch e.Kind {
		case domain.ReactionLike:
			msgs[i].LikeCount++
		case domain.ReactionDislike:
			msgs[i].DislikeCount++
		default:
			return s
		}
		s.Messages = msgs
		s.Pending = append(append([]PendingAction(nil), s.Pending...), PendingAction{
			MessageID: e.MessageID,
			Kind:      e.Kind,
		})
		return s
	}
	return s
}

func retirePending(pending []PendingAction, messageID string) []PendingAction {
	out := make([]PendingAction, 0, len(pending))
	for _, p := range pending {
		if p.MessageID != messageID {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cloneMessages(in []domain.ChatMessage) []domain.ChatMessage {
	return append([]domain.ChatMessage(nil), in...)
}
