package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/elviDev/ls-internet-radio-sub002/internal/broadcast"
	"github.com/elviDev/ls-internet-radio-sub002/internal/chat"
	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
	"github.com/elviDev/ls-internet-radio-sub002/internal/hub"
	"github.com/elviDev/ls-internet-radio-sub002/internal/persist"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

type chatService struct {
	hub       *hub.Hub
	store     *chat.Store
	typing    *chat.TypingTracker
	persist   *persist.Client
	manager   *broadcast.Manager
	typingTTL time.Duration
}

// NewChatService wires the chat pipeline. persist may be nil; the
// service then runs on the in-memory log alone.
func NewChatService(
	h *hub.Hub,
	store *chat.Store,
	typing *chat.TypingTracker,
	persistClient *persist.Client,
	manager *broadcast.Manager,
	typingTTL time.Duration,
) ChatService {
	if typingTTL <= 0 {
		typingTTL = chat.TypingTTL
	}
	return &chatService{
		hub:       h,
		store:     store,
		typing:    typing,
		persist:   persistClient,
		manager:   manager,
		typingTTL: typingTTL,
	}
}

func sendErrForPolicy(c *hub.Client, err error) error {
	switch {
	case errors.Is(err, domain.ErrBanned):
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "you are banned from this chat"))
	case errors.Is(err, domain.ErrMuted):
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "you are muted in this chat"))
	case errors.Is(err, domain.ErrSlowMode):
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeRateLimited, "slow mode is active, wait before sending again"))
	case errors.Is(err, domain.ErrMessageTooLong):
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodePolicyViolation, "message exceeds the maximum length"))
	case errors.Is(err, domain.ErrEmojiDisabled):
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodePolicyViolation, "emoji are disabled in this chat"))
	default:
		return err
	}
}

func (s *chatService) HandleChatMessage(ctx context.Context, c *hub.Client, content, replyTo string) error {
	broadcastID, role := c.Connection.CurrentBroadcast()
	if broadcastID == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "join a broadcast before chatting"))
	}
	if content == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "message content is required"))
	}

	userID := c.Connection.GetUserID()
	if err := s.store.CheckSend(broadcastID, userID, content); err != nil {
		return sendErrForPolicy(c, err)
	}

	msgType := domain.MessageTypeUser
	if role == domain.RoleBroadcaster {
		msgType = domain.MessageTypeHost
	}

	msg := &domain.ChatMessage{
		ID:          uuid.New().String(),
		BroadcastID: broadcastID,
		UserID:      userID,
		Username:    c.Connection.GetUsername(),
		Content:     content,
		Type:        msgType,
		Timestamp:   time.Now().UTC(),
		ReplyTo:     replyTo,
	}

	// The persistence tier assigns the canonical record; when it is
	// down we keep serving from the in-memory log.
	if s.persist != nil {
		if saved, err := s.persist.SaveMessage(ctx, msg); err == nil {
			msg = saved
		} else if !errors.Is(err, persist.ErrUnavailable) {
			log.L().Warn().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to persist chat message")
		}
	}

	if err := s.store.Append(msg); err != nil {
		return sendErrForPolicy(c, err)
	}
	s.manager.IncrementMessages(broadcastID)

	// Sending a message implicitly ends the author's typing state.
	if s.typing.SetTyping(broadcastID, userID, false) {
		s.broadcastTyping(broadcastID)
	}

	return s.hub.BroadcastToRoom(broadcastID, &domain.NewChatMessage{
		Type:    domain.MsgTypeNewChatMessage,
		Message: *msg,
	}, "")
}

func (s *chatService) HandleAnnouncement(ctx context.Context, c *hub.Client, content string) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" || !s.manager.IsBroadcaster(broadcastID, c.ID) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "only the broadcaster can post announcements"))
	}
	if content == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "announcement content is required"))
	}

	msg := &domain.ChatMessage{
		ID:          uuid.New().String(),
		BroadcastID: broadcastID,
		UserID:      c.Connection.GetUserID(),
		Username:    c.Connection.GetUsername(),
		Content:     content,
		Type:        domain.MessageTypeAnnouncement,
		Timestamp:   time.Now().UTC(),
	}

	if s.persist != nil {
		if saved, err := s.persist.SaveMessage(ctx, msg); err == nil {
			msg = saved
		}
	}

	if err := s.store.Append(msg); err != nil {
		return err
	}
	s.manager.IncrementMessages(broadcastID)

	return s.hub.BroadcastToRoom(broadcastID, &domain.NewChatMessage{
		Type:    domain.MsgTypeNewChatMessage,
		Message: *msg,
	}, "")
}

// HandleBackfill replays recent history to one client, preferring the
// persistence tier when it is reachable.
func (s *chatService) HandleBackfill(ctx context.Context, c *hub.Client, broadcastID string) error {
	if broadcastID == "" {
		broadcastID, _ = c.Connection.CurrentBroadcast()
	}
	if broadcastID == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "broadcast_id is required"))
	}

	var messages []domain.ChatMessage
	if s.persist != nil {
		if hist, err := s.persist.History(ctx, broadcastID); err == nil {
			messages = hist
		}
	}
	if messages == nil {
		messages = s.store.History(broadcastID)
	}

	return c.SendMessage(&domain.ChatHistoryMessage{
		Type:        domain.MsgTypeChatHistory,
		BroadcastID: broadcastID,
		Messages:    messages,
	})
}

func (s *chatService) HandleModerateMessage(ctx context.Context, c *hub.Client, msg *domain.ModerateMessageMessage) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" || !s.manager.IsBroadcaster(broadcastID, c.ID) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "only the broadcaster can moderate messages"))
	}

	switch msg.Action {
	case domain.ModerateActionPin, domain.ModerateActionUnpin,
		domain.ModerateActionHighlight, domain.ModerateActionDelete:
	default:
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown moderation action"))
	}

	updated, err := s.store.Moderate(broadcastID, msg.MessageID, msg.Action, msg.Reason)
	if errors.Is(err, domain.ErrNotFound) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "message not found"))
	}
	if err != nil {
		return err
	}

	if s.persist != nil {
		if _, err := s.persist.SaveModeration(ctx, persist.ModerationRecord{
			BroadcastID: broadcastID,
			MessageID:   msg.MessageID,
			Action:      msg.Action,
			Reason:      msg.Reason,
		}); err != nil && !errors.Is(err, persist.ErrUnavailable) {
			log.L().Warn().Err(err).Str(log.FieldMessageID, msg.MessageID).Msg("failed to persist moderation")
		}
	}

	if msg.Action == domain.ModerateActionDelete {
		return s.hub.BroadcastToRoom(broadcastID, &domain.MessageDeletedMessage{
			Type:      domain.MsgTypeMessageDeleted,
			MessageID: msg.MessageID,
			Reason:    msg.Reason,
		}, "")
	}
	return s.hub.BroadcastToRoom(broadcastID, &domain.MessageUpdatedMessage{
		Type:    domain.MsgTypeMessageUpdated,
		Message: updated,
	}, "")
}

func (s *chatService) HandleModerateUser(ctx context.Context, c *hub.Client, msg *domain.ModerateUserMessage) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" || !s.manager.IsBroadcaster(broadcastID, c.ID) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "only the broadcaster can moderate users"))
	}

	if err := s.store.ModerateUser(broadcastID, msg.UserID, msg.Action); err != nil {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown user action"))
	}

	if s.persist != nil {
		if err := s.persist.SaveUserAction(ctx, persist.UserActionRecord{
			BroadcastID: broadcastID,
			UserID:      msg.UserID,
			Action:      msg.Action,
		}); err != nil && !errors.Is(err, persist.ErrUnavailable) {
			log.L().Warn().Err(err).Str("target_user", msg.UserID).Msg("failed to persist user action")
		}
	}

	log.L().Info().
		Str(log.FieldBroadcastID, broadcastID).
		Str("target_user", msg.UserID).
		Str("action", msg.Action).
		Msg("user moderation applied")
	return nil
}

func (s *chatService) HandleLikeMessage(ctx context.Context, c *hub.Client, messageID, kind string) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "join a broadcast first"))
	}

	userID := c.Connection.GetUserID()
	updated, changed, err := s.store.React(broadcastID, messageID, userID, kind)
	if errors.Is(err, domain.ErrNotFound) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "message not found"))
	}
	if err != nil {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown reaction kind"))
	}
	if !changed {
		return nil
	}

	if s.persist != nil {
		if _, err := s.persist.SaveReaction(ctx, persist.ReactionRecord{
			BroadcastID: broadcastID,
			MessageID:   messageID,
			UserID:      userID,
			Kind:        kind,
		}); err != nil && !errors.Is(err, persist.ErrUnavailable) {
			log.L().Warn().Err(err).Str(log.FieldMessageID, messageID).Msg("failed to persist reaction")
		}
	}

	return s.hub.BroadcastToRoom(broadcastID, &domain.MessageUpdatedMessage{
		Type:    domain.MsgTypeMessageUpdated,
		Message: updated,
	}, "")
}

func (s *chatService) HandleTyping(ctx context.Context, c *hub.Client, isTyping bool) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" {
		return nil
	}
	if s.typing.SetTyping(broadcastID, c.Connection.GetUserID(), isTyping) {
		s.broadcastTyping(broadcastID)
	}
	return nil
}

func (s *chatService) HandleUpdateSettings(ctx context.Context, c *hub.Client, settings domain.ChatSettings) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" || !s.manager.IsBroadcaster(broadcastID, c.ID) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "only the broadcaster can change chat settings"))
	}

	applied := s.store.UpdateSettings(broadcastID, settings)
	return s.hub.BroadcastToRoom(broadcastID, &domain.SettingsUpdatedMessage{
		Type:        domain.MsgTypeSettingsUpdated,
		BroadcastID: broadcastID,
		Settings:    applied,
	}, "")
}

func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" {
		return
	}
	if s.typing.SetTyping(broadcastID, c.Connection.GetUserID(), false) {
		s.broadcastTyping(broadcastID)
	}
}

// SweepTyping expires stale typing entries; runs on the scheduler.
func (s *chatService) SweepTyping() {
	for broadcastID, userIDs := range s.typing.Sweep(s.typingTTL) {
		s.hub.BroadcastToRoom(broadcastID, &domain.TypingUpdateMessage{
			Type:        domain.MsgTypeTypingUpdate,
			BroadcastID: broadcastID,
			UserIDs:     userIDs,
		}, "")
	}
}

// EndBroadcast drops all chat state for a finished broadcast.
func (s *chatService) EndBroadcast(broadcastID string) {
	s.store.Reset(broadcastID)
	s.typing.Reset(broadcastID)
}

func (s *chatService) broadcastTyping(broadcastID string) {
	s.hub.BroadcastToRoom(broadcastID, &domain.TypingUpdateMessage{
		Type:        domain.MsgTypeTypingUpdate,
		BroadcastID: broadcastID,
		UserIDs:     s.typing.Typing(broadcastID),
	}, "")
}
