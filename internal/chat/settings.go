package chat

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

// Settings returns the chat settings for a broadcast.
func (st *Store) Settings(broadcastID string) domain.ChatSettings {
	l := st.logFor(broadcastID)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settings
}

// UpdateSettings replaces the session-wide chat settings. Existing
// slow-mode limiters are discarded so the new interval takes effect
// for everyone at once.
func (st *Store) UpdateSettings(broadcastID string, settings domain.ChatSettings) domain.ChatSettings {
	l := st.logFor(broadcastID)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.settings = settings
	l.limiters = make(map[string]*rate.Limiter)

	log.L().Info().
		Str(log.FieldBroadcastID, broadcastID).
		Int("slow_mode_seconds", settings.SlowModeSeconds).
		Int("max_message_length", settings.MaxMessageLength).
		Msg("chat settings updated")
	return l.settings
}

// CheckSend is the send-time gate: ban, mute, length, and slow-mode
// checks run here, before persistence, so a rejected message never
// reaches the log or the fan-out. Client-side filtering is not the
// security boundary; this is.
func (st *Store) CheckSend(broadcastID, userID, content string) error {
	l := st.logFor(broadcastID)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, banned := l.banned[userID]; banned {
		return domain.ErrBanned
	}
	if _, muted := l.muted[userID]; muted {
		return domain.ErrMuted
	}
	if l.settings.MaxMessageLength > 0 && len(content) > l.settings.MaxMessageLength {
		return domain.ErrMessageTooLong
	}
	if !l.settings.AllowEmoji && domain.ContainsEmoji(content) {
		return domain.ErrEmojiDisabled
	}
	if l.settings.SlowModeSeconds > 0 {
		limiter, ok := l.limiters[userID]
		if !ok {
			limiter = rate.NewLimiter(rate.Every(time.Duration(l.settings.SlowModeSeconds)*time.Second), 1)
			l.limiters[userID] = limiter
		}
		if !limiter.Allow() {
			return domain.ErrSlowMode
		}
	}
	return nil
}

// ModerateUser applies a ban/mute set-membership action for a broadcast.
func (st *Store) ModerateUser(broadcastID, userID, action string) error {
	l := st.logFor(broadcastID)

	l.mu.Lock()
	defer l.mu.Unlock()

	switch action {
	case domain.UserActionBan:
		l.banned[userID] = struct{}{}
	case domain.UserActionUnban:
		delete(l.banned, userID)
	case domain.UserActionMute:
		l.muted[userID] = struct{}{}
	case domain.UserActionUnmute:
		delete(l.muted, userID)
	default:
		return domain.ErrNotFound
	}

	log.L().Info().
		Str(log.FieldBroadcastID, broadcastID).
		Str(log.FieldUserID, userID).
		Str("action", action).
		Msg("user moderated")
	return nil
}

// IsBanned reports whether a user is banned from a broadcast's chat.
func (st *Store) IsBanned(broadcastID, userID string) bool {
	l := st.logFor(broadcastID)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, banned := l.banned[userID]
	return banned
}

// IsMuted reports whether a user is muted in a broadcast's chat.
func (st *Store) IsMuted(broadcastID, userID string) bool {
	l := st.logFor(broadcastID)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, muted := l.muted[userID]
	return muted
}
