package chat

import (
	"sort"
	"sync"
	"time"
)

// TypingTTL is how long a typing indicator survives without renewal.
const TypingTTL = 5 * time.Second

// TypingTracker holds ephemeral typing indicators keyed by
// (broadcast id, user id). Entries leave either explicitly or when the
// sweep finds them stale.
type TypingTracker struct {
	mu      sync.Mutex
	typing  map[string]map[string]time.Time
	nowFunc func() time.Time
}

// NewTypingTracker creates an empty tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		typing:  make(map[string]map[string]time.Time),
		nowFunc: time.Now,
	}
}

// SetTyping records or clears a typing indicator. Duplicate "started
// typing" events from the same user coalesce into a timestamp renewal.
// Returns true when the visible set changed.
func (t *TypingTracker) SetTyping(broadcastID, userID string, isTyping bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.typing[broadcastID]
	if !isTyping {
		if !ok {
			return false
		}
		if _, present := users[userID]; !present {
			return false
		}
		delete(users, userID)
		if len(users) == 0 {
			delete(t.typing, broadcastID)
		}
		return true
	}

	if !ok {
		users = make(map[string]time.Time)
		t.typing[broadcastID] = users
	}
	_, present := users[userID]
	users[userID] = t.nowFunc()
	return !present
}

// Typing returns the users currently typing in a broadcast, sorted for
// deterministic fan-out payloads.
func (t *TypingTracker) Typing(broadcastID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typingLocked(broadcastID)
}

func (t *TypingTracker) typingLocked(broadcastID string) []string {
	users := t.typing[broadcastID]
	out := make([]string, 0, len(users))
	for u := range users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Sweep drops indicators older than ttl and returns the broadcasts
// whose visible set changed, with their new sets.
func (t *TypingTracker) Sweep(ttl time.Duration) map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.nowFunc().Add(-ttl)
	changed := make(map[string][]string)

	for broadcastID, users := range t.typing {
		dirty := false
		for userID, ts := range users {
			if ts.Before(cutoff) {
				delete(users, userID)
				dirty = true
			}
		}
		if dirty {
			changed[broadcastID] = t.typingLocked(broadcastID)
			if len(users) == 0 {
				delete(t.typing, broadcastID)
			}
		}
	}
	return changed
}

// Reset clears typing state for a broadcast.
func (t *TypingTracker) Reset(broadcastID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.typing, broadcastID)
}
