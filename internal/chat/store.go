package chat

import (
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

// DefaultRetention is how many messages each broadcast keeps in memory.
// The authoritative full history lives with the persistence collaborator.
const DefaultRetention = 100

// Store is the single writer of chat message state, keyed by broadcast
// id. Separate broadcasts never serialize against each other: the
// store-level lock only guards the log map, each log has its own.
type Store struct {
	mu        sync.RWMutex
	logs      map[string]*broadcastLog
	retention int
}

type broadcastLog struct {
	mu         sync.Mutex
	messages   []*domain.ChatMessage
	index      map[string]*domain.ChatMessage
	pinnedID   string
	likedBy    map[string]map[string]struct{}
	dislikedBy map[string]map[string]struct{}
	banned     map[string]struct{}
	muted      map[string]struct{}
	settings   domain.ChatSettings
	limiters   map[string]*rate.Limiter
}

// NewStore creates a Store with the given per-broadcast retention
// window; zero means DefaultRetention.
func NewStore(retention int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		logs:      make(map[string]*broadcastLog),
		retention: retention,
	}
}

func (st *Store) logFor(broadcastID string) *broadcastLog {
	st.mu.RLock()
	l, ok := st.logs[broadcastID]
	st.mu.RUnlock()
	if ok {
		return l
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if l, ok := st.logs[broadcastID]; ok {
		return l
	}
	l = &broadcastLog{
		index:      make(map[string]*domain.ChatMessage),
		likedBy:    make(map[string]map[string]struct{}),
		dislikedBy: make(map[string]map[string]struct{}),
		banned:     make(map[string]struct{}),
		muted:      make(map[string]struct{}),
		settings:   domain.DefaultChatSettings(),
		limiters:   make(map[string]*rate.Limiter),
	}
	st.logs[broadcastID] = l
	return l
}

// Append inserts a message at the tail of its broadcast's log.
// Idempotent by message id: the same message arriving twice — direct
// acknowledgment plus broadcast fan-out — leaves exactly one entry.
// Banned senders are rejected here, at the entry point, not filtered
// client-side. The log trims from the head once past the retention
// window; order of the surviving entries never changes.
func (st *Store) Append(msg *domain.ChatMessage) error {
	l := st.logFor(msg.BroadcastID)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, banned := l.banned[msg.UserID]; banned {
		return domain.ErrBanned
	}
	if _, exists := l.index[msg.ID]; exists {
		return nil
	}

	l.messages = append(l.messages, msg)
	l.index[msg.ID] = msg

	if len(l.messages) > st.retention {
		drop := l.messages[0]
		l.messages = l.messages[1:]
		delete(l.index, drop.ID)
		delete(l.likedBy, drop.ID)
		delete(l.dislikedBy, drop.ID)
		if l.pinnedID == drop.ID {
			l.pinnedID = ""
		}
	}
	return nil
}

// History returns a copy of the retained log in append order.
func (st *Store) History(broadcastID string) []domain.ChatMessage {
	l := st.logFor(broadcastID)

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.ChatMessage, 0, len(l.messages))
	for _, msg := range l.messages {
		out = append(out, *msg)
	}
	return out
}

// Get returns a snapshot of one message.
func (st *Store) Get(broadcastID, messageID string) (domain.ChatMessage, error) {
	l := st.logFor(broadcastID)

	l.mu.Lock()
	defer l.mu.Unlock()

	msg, ok := l.index[messageID]
	if !ok {
		return domain.ChatMessage{}, domain.ErrNotFound
	}
	return *msg, nil
}

// Moderate applies a flag action to a message. Delete never removes the
// record — it sets IsModerated and a reason shown in place of content —
// so clients that already rendered the log keep a stable ordering.
// Pinning is exclusive: pinning B while A is pinned unpins A.
func (st *Store) Moderate(broadcastID, messageID, action, reason string) (domain.ChatMessage, error) {
	l := st.logFor(broadcastID)

	l.mu.Lock()
	defer l.mu.Unlock()

	msg, ok := l.index[messageID]
	if !ok {
		return domain.ChatMessage{}, domain.ErrNotFound
	}

	switch action {
	case domain.ModerateActionPin:
		if l.pinnedID != "" && l.pinnedID != messageID {
			if prev, ok := l.index[l.pinnedID]; ok {
				prev.IsPinned = false
			}
		}
		msg.IsPinned = true
		l.pinnedID = messageID
	case domain.ModerateActionUnpin:
		msg.IsPinned = false
		if l.pinnedID == messageID {
			l.pinnedID = ""
		}
	case domain.ModerateActionHighlight:
		msg.IsHighlighted = !msg.IsHighlighted
	case domain.ModerateActionDelete:
		msg.IsModerated = true
		msg.ModerationReason = reason
	default:
		return domain.ChatMessage{}, domain.ErrNotFound
	}

	log.L().Info().
		Str(log.FieldBroadcastID, broadcastID).
		Str(log.FieldMessageID, messageID).
		Str("action", action).
		Msg("message moderated")
	return *msg, nil
}

// Pinned returns the currently pinned message id for a broadcast.
func (st *Store) Pinned(broadcastID string) string {
	l := st.logFor(broadcastID)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pinnedID
}

// React applies a like/dislike toggle. Idempotent per (user, message):
// re-applying the same reaction is a no-op; toggling off decrements
// exactly once. Returns the updated snapshot and whether anything
// changed.
func (st *Store) React(broadcastID, messageID, userID, kind string) (domain.ChatMessage, bool, error) {
	l := st.logFor(broadcastID)

	l.mu.Lock()
	defer l.mu.Unlock()

	msg, ok := l.index[messageID]
	if !ok {
		return domain.ChatMessage{}, false, domain.ErrNotFound
	}

	changed := false
	switch kind {
	case domain.ReactionLike:
		users := l.reactionSet(l.likedBy, messageID)
		if _, done := users[userID]; !done {
			users[userID] = struct{}{}
			msg.LikeCount++
			changed = true
		}
	case "un" + domain.ReactionLike:
		users := l.reactionSet(l.likedBy, messageID)
		if _, done := users[userID]; done {
			delete(users, userID)
			msg.LikeCount--
			changed = true
		}
	case domain.ReactionDislike:
		users := l.reactionSet(l.dislikedBy, messageID)
		if _, done := users[userID]; !done {
			users[userID] = struct{}{}
			msg.DislikeCount++
			changed = true
		}
	case "un" + domain.ReactionDislike:
		users := l.reactionSet(l.dislikedBy, messageID)
		if _, done := users[userID]; done {
			delete(users, userID)
			msg.DislikeCount--
			changed = true
		}
	default:
		return domain.ChatMessage{}, false, domain.ErrNotFound
	}

	if changed {
		// Fresh slice: earlier snapshots share the previous backing
		// array and must not see later reactions.
		users := l.reactionSet(l.likedBy, messageID)
		liked := make([]string, 0, len(users))
		for u := range users {
			liked = append(liked, u)
		}
		sort.Strings(liked)
		msg.LikedBy = liked

		tally := make(map[string]int, 2)
		if msg.LikeCount > 0 {
			tally[domain.ReactionLike] = msg.LikeCount
		}
		if msg.DislikeCount > 0 {
			tally[domain.ReactionDislike] = msg.DislikeCount
		}
		msg.Reactions = tally
	}
	return *msg, changed, nil
}

func (l *broadcastLog) reactionSet(byMsg map[string]map[string]struct{}, messageID string) map[string]struct{} {
	users, ok := byMsg[messageID]
	if !ok {
		users = make(map[string]struct{})
		byMsg[messageID] = users
	}
	return users
}

// Reset drops all chat state for a broadcast once it ends, releasing
// the id for reuse with a clean slate.
func (st *Store) Reset(broadcastID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.logs, broadcastID)
}
