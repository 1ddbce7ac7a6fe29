package domain

import "time"

// Chat message types.
const (
	MessageTypeUser         = "user"
	MessageTypeHost         = "host"
	MessageTypeModerator    = "moderator"
	MessageTypeSystem       = "system"
	MessageTypeAnnouncement = "announcement"
)

// Moderation actions applied to a message.
const (
	ModerateActionPin       = "pin"
	ModerateActionUnpin     = "unpin"
	ModerateActionHighlight = "highlight"
	ModerateActionDelete    = "delete"
)

// User moderation actions applied per broadcast.
const (
	UserActionBan    = "ban"
	UserActionUnban  = "unban"
	UserActionMute   = "mute"
	UserActionUnmute = "unmute"
)

// Reaction kinds on a message.
const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

// ChatMessage is one entry in a broadcast's ordered message log.
// A "deleted" message stays in the log with IsModerated set; physical
// removal would break ordering for clients that already rendered it.
type ChatMessage struct {
	ID               string         `json:"id"`
	BroadcastID      string         `json:"broadcast_id"`
	UserID           string         `json:"user_id"`
	Username         string         `json:"username"`
	Content          string         `json:"content"`
	Type             string         `json:"type"`
	Timestamp        time.Time      `json:"timestamp"`
	LikeCount        int            `json:"like_count"`
	DislikeCount     int            `json:"dislike_count"`
	LikedBy          []string       `json:"liked_by,omitempty"`
	IsPinned         bool           `json:"is_pinned"`
	IsHighlighted    bool           `json:"is_highlighted"`
	IsModerated      bool           `json:"is_moderated"`
	ModerationReason string         `json:"moderation_reason,omitempty"`
	ReplyTo          string         `json:"reply_to,omitempty"`
	Reactions        map[string]int `json:"reactions,omitempty"`
}

// ChatSettings are session-wide chat rules, applied as a gate at send
// time rather than as a post-hoc filter.
type ChatSettings struct {
	SlowModeSeconds  int  `json:"slow_mode_seconds"`
	AutoModeration   bool `json:"auto_moderation"`
	AllowEmoji       bool `json:"allow_emoji"`
	MaxMessageLength int  `json:"max_message_length"`
}

// ContainsEmoji reports whether content carries emoji runes. Used by
// the send gate when a broadcast disables emoji.
func ContainsEmoji(content string) bool {
	for _, r := range content {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, emoticons, symbols
			return true
		case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
			return true
		case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicator pairs
			return true
		case r == 0xFE0F: // emoji variation selector
			return true
		}
	}
	return false
}

// DefaultChatSettings returns the settings applied to a new broadcast.
func DefaultChatSettings() ChatSettings {
	return ChatSettings{
		SlowModeSeconds:  0,
		AutoModeration:   false,
		AllowEmoji:       true,
		MaxMessageLength: 500,
	}
}
