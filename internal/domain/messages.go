package domain

import (
	"encoding/json"
	"time"
)

// Client -> server event types.
const (
	MsgTypeJoinAsBroadcaster = "join-as-broadcaster"
	MsgTypeJoinBroadcast     = "join-broadcast"
	MsgTypeLeaveBroadcast    = "leave-broadcast"
	MsgTypeBroadcastAudio    = "broadcast-audio"
	MsgTypeAddAudioSource    = "add-audio-source"
	MsgTypeUpdateAudioSource = "update-audio-source"
	MsgTypeRemoveAudioSource = "remove-audio-source"
	MsgTypeRequestCall       = "request-call"
	MsgTypeAcceptCall        = "accept-call"
	MsgTypeEndCall           = "end-call"
	MsgTypeEndBroadcast      = "end-broadcast"
	MsgTypeChatMessage       = "chat-message"
	MsgTypeAnnouncement      = "announcement"
	MsgTypeUserTyping        = "user-typing"
	MsgTypeUserStoppedTyping = "user-stopped-typing"
	MsgTypeModerateMessage   = "moderate-message"
	MsgTypeModerateUser      = "moderate-user"
	MsgTypeLikeMessage       = "like-message"
	MsgTypeUpdateSettings    = "update-chat-settings"
)

// Server -> client event types.
const (
	MsgTypeBroadcasterReady   = "broadcaster-ready"
	MsgTypeBroadcastInfo      = "broadcast-info"
	MsgTypeBroadcastEnded     = "broadcast-ended"
	MsgTypeListenerCount      = "listener-count"
	MsgTypeAudioStream        = "audio-stream"
	MsgTypeAudioSourceAdded   = "audio-source-added"
	MsgTypeAudioSourceUpdated = "audio-source-updated"
	MsgTypeAudioSourceRemoved = "audio-source-removed"
	MsgTypeIncomingCall       = "incoming-call"
	MsgTypeCallPending        = "call-pending"
	MsgTypeCallAccepted       = "call-accepted"
	MsgTypeCallTimeout        = "call-timeout"
	MsgTypeCallEnded          = "call-ended"
	MsgTypeNewChatMessage     = "new-chat-message"
	MsgTypeChatHistory        = "chat-history"
	MsgTypeUserJoined         = "user-joined"
	MsgTypeUserLeft           = "user-left"
	MsgTypeMessageUpdated     = "message-updated"
	MsgTypeMessageDeleted     = "message-deleted"
	MsgTypeTypingUpdate       = "typing-update"
	MsgTypeSettingsUpdated    = "chat-settings-updated"
	MsgTypeServerStats        = "server-stats"
	MsgTypeError              = "error"
)

// Error codes carried on error messages.
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeAlreadyLive     = "ALREADY_LIVE"
	ErrCodePolicyViolation = "POLICY_VIOLATION"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// BaseMessage is the envelope every WebSocket message starts from.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> server messages.

type JoinAsBroadcasterMessage struct {
	Type        string          `json:"type"`
	BroadcastID string          `json:"broadcast_id"`
	Token       string          `json:"token,omitempty"`
	Broadcaster BroadcasterInfo `json:"broadcaster"`
}

type JoinBroadcastMessage struct {
	Type        string `json:"type"`
	BroadcastID string `json:"broadcast_id"`
	Token       string `json:"token,omitempty"`
	Username    string `json:"username,omitempty"`
}

type LeaveBroadcastMessage struct {
	Type string `json:"type"`
}

type BroadcastAudioMessage struct {
	Type     string          `json:"type"`
	SourceID string          `json:"source_id"`
	Chunk    json.RawMessage `json:"chunk"`
}

type AudioSourceMessage struct {
	Type       string  `json:"type"`
	SourceType string  `json:"source_type"`
	SourceID   string  `json:"source_id,omitempty"`
	Label      string  `json:"label,omitempty"`
	Volume     float64 `json:"volume"`
	Muted      bool    `json:"muted"`
	Priority   int     `json:"priority"`
}

type RequestCallMessage struct {
	Type   string     `json:"type"`
	Caller CallerInfo `json:"caller"`
}

type AcceptCallMessage struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
}

type EndCallMessage struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
}

type EndBroadcastMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

type ChatSendMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	ReplyTo string `json:"reply_to,omitempty"`
}

type TypingMessage struct {
	Type string `json:"type"`
}

type ModerateMessageMessage struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
}

type ModerateUserMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Action string `json:"action"`
}

type LikeMessageMessage struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Kind      string `json:"kind"`
}

type UpdateSettingsMessage struct {
	Type     string       `json:"type"`
	Settings ChatSettings `json:"settings"`
}

// Server -> client messages.

type BroadcasterReadyMessage struct {
	Type        string          `json:"type"`
	BroadcastID string          `json:"broadcast_id"`
	Broadcaster BroadcasterInfo `json:"broadcaster"`
}

type BroadcastInfoMessage struct {
	Type        string          `json:"type"`
	BroadcastID string          `json:"broadcast_id"`
	IsLive      bool            `json:"is_live"`
	Broadcaster BroadcasterInfo `json:"broadcaster"`
	Listeners   int             `json:"listeners"`
	Sources     []AudioSource   `json:"sources,omitempty"`
	Settings    ChatSettings    `json:"settings"`
}

type BroadcastEndedMessage struct {
	Type        string `json:"type"`
	BroadcastID string `json:"broadcast_id"`
	Reason      string `json:"reason"`
}

type ListenerCountMessage struct {
	Type        string `json:"type"`
	BroadcastID string `json:"broadcast_id"`
	Count       int    `json:"count"`
	Peak        int    `json:"peak"`
}

type AudioStreamMessage struct {
	Type        string          `json:"type"`
	BroadcastID string          `json:"broadcast_id"`
	SourceID    string          `json:"source_id"`
	Chunk       json.RawMessage `json:"chunk"`
}

type AudioSourceEventMessage struct {
	Type        string      `json:"type"`
	BroadcastID string      `json:"broadcast_id"`
	Source      AudioSource `json:"source"`
}

type IncomingCallMessage struct {
	Type string      `json:"type"`
	Call CallRequest `json:"call"`
}

type CallPendingMessage struct {
	Type     string `json:"type"`
	CallID   string `json:"call_id"`
	Position int    `json:"position"`
}

type CallAcceptedMessage struct {
	Type          string `json:"type"`
	CallID        string `json:"call_id"`
	AudioSourceID string `json:"audio_source_id"`
}

type CallClosedMessage struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Reason string `json:"reason,omitempty"`
}

type NewChatMessage struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

type ChatHistoryMessage struct {
	Type        string        `json:"type"`
	BroadcastID string        `json:"broadcast_id"`
	Messages    []ChatMessage `json:"messages"`
}

type UserPresenceMessage struct {
	Type        string `json:"type"`
	BroadcastID string `json:"broadcast_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username,omitempty"`
}

type MessageUpdatedMessage struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

type MessageDeletedMessage struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Reason    string `json:"reason,omitempty"`
}

type TypingUpdateMessage struct {
	Type        string   `json:"type"`
	BroadcastID string   `json:"broadcast_id"`
	UserIDs     []string `json:"user_ids"`
}

type SettingsUpdatedMessage struct {
	Type        string       `json:"type"`
	BroadcastID string       `json:"broadcast_id"`
	Settings    ChatSettings `json:"settings"`
}

type ServerStatsMessage struct {
	Type      string       `json:"type"`
	Stats     SessionStats `json:"stats"`
	Timestamp time.Time    `json:"timestamp"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorMessage builds an error message for the given code.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
