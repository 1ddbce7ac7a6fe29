package service

import (
	"context"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
	"github.com/elviDev/ls-internet-radio-sub002/internal/hub"
)

// BroadcastService coordinates broadcast sessions, presence, audio
// routing, and the call lifecycle.
type BroadcastService interface {
	HandleJoinAsBroadcaster(ctx context.Context, c *hub.Client, msg *domain.JoinAsBroadcasterMessage) error
	HandleJoinBroadcast(ctx context.Context, c *hub.Client, msg *domain.JoinBroadcastMessage) error
	HandleLeaveBroadcast(ctx context.Context, c *hub.Client) error
	HandleEndBroadcast(ctx context.Context, c *hub.Client, reason string) error
	HandleBroadcastAudio(ctx context.Context, c *hub.Client, msg *domain.BroadcastAudioMessage) error
	HandleAddAudioSource(ctx context.Context, c *hub.Client, msg *domain.AudioSourceMessage) error
	HandleUpdateAudioSource(ctx context.Context, c *hub.Client, msg *domain.AudioSourceMessage) error
	HandleRemoveAudioSource(ctx context.Context, c *hub.Client, sourceID string) error
	HandleRequestCall(ctx context.Context, c *hub.Client, info domain.CallerInfo) error
	HandleAcceptCall(ctx context.Context, c *hub.Client, callID string) error
	HandleEndCall(ctx context.Context, c *hub.Client, callID string) error
	HandleDisconnect(ctx context.Context, c *hub.Client)

	SweepCallTimeouts()
	PublishStats()
	Drain(ctx context.Context)
	Start(ctx context.Context) error
	Stop() error
}

// ChatService coordinates the message pipeline: gating, persistence,
// the in-memory log, moderation, reactions, and typing indicators.
type ChatService interface {
	HandleChatMessage(ctx context.Context, c *hub.Client, content, replyTo string) error
	HandleAnnouncement(ctx context.Context, c *hub.Client, content string) error
	HandleBackfill(ctx context.Context, c *hub.Client, broadcastID string) error
	HandleModerateMessage(ctx context.Context, c *hub.Client, msg *domain.ModerateMessageMessage) error
	HandleModerateUser(ctx context.Context, c *hub.Client, msg *domain.ModerateUserMessage) error
	HandleLikeMessage(ctx context.Context, c *hub.Client, messageID, kind string) error
	HandleTyping(ctx context.Context, c *hub.Client, isTyping bool) error
	HandleUpdateSettings(ctx context.Context, c *hub.Client, settings domain.ChatSettings) error
	HandleDisconnect(ctx context.Context, c *hub.Client)

	SweepTyping()
	EndBroadcast(broadcastID string)
}
