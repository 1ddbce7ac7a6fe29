package service

import (
	"context"
	"errors"
	"time"

	"github.com/elviDev/ls-internet-radio-sub002/internal/broadcast"
	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
	"github.com/elviDev/ls-internet-radio-sub002/internal/hub"
	"github.com/elviDev/ls-internet-radio-sub002/internal/kafka"
	"github.com/elviDev/ls-internet-radio-sub002/internal/registry"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/auth"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

// LiveRegistry advertises live broadcasts for discovery. Nil-able.
type LiveRegistry interface {
	Announce(ctx context.Context, broadcastID string) error
	Retract(ctx context.Context, broadcastID string) error
}

// SettingsProvider supplies the chat settings shown in broadcast info.
type SettingsProvider interface {
	Settings(broadcastID string) domain.ChatSettings
}

type broadcastService struct {
	hub         *hub.Hub
	manager     *broadcast.Manager
	connections *registry.ConnectionRegistry
	liveReg     LiveRegistry
	producer    kafka.EventProducer
	verifier    *auth.Verifier
	settings    SettingsProvider
	callTimeout time.Duration
}

// NewBroadcastService wires the session manager to its collaborators.
// liveReg, producer, and verifier may be nil; the service degrades to
// purely in-process coordination.
func NewBroadcastService(
	h *hub.Hub,
	manager *broadcast.Manager,
	connections *registry.ConnectionRegistry,
	liveReg LiveRegistry,
	producer kafka.EventProducer,
	verifier *auth.Verifier,
	settings SettingsProvider,
	callTimeout time.Duration,
) BroadcastService {
	if callTimeout <= 0 {
		callTimeout = broadcast.CallTimeout
	}
	return &broadcastService{
		hub:         h,
		manager:     manager,
		connections: connections,
		liveReg:     liveReg,
		producer:    producer,
		verifier:    verifier,
		settings:    settings,
		callTimeout: callTimeout,
	}
}

// identify resolves the caller-supplied identity: a verified token when
// available, otherwise the self-declared username.
func (s *broadcastService) identify(c *hub.Client, token, userID, username, displayName string) {
	if token != "" && s.verifier != nil {
		if id, err := s.verifier.Verify(token); err == nil {
			c.Connection.SetIdentity(id.UserID, id.Username, id.DisplayName)
			return
		}
		log.L().Warn().Str(log.FieldConnectionID, c.ID).Msg("invalid identity token, treating as anonymous")
	}
	if userID == "" {
		userID = c.ID
	}
	c.Connection.SetIdentity(userID, username, displayName)
}

func (s *broadcastService) HandleJoinAsBroadcaster(ctx context.Context, c *hub.Client, msg *domain.JoinAsBroadcasterMessage) error {
	if msg.BroadcastID == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "broadcast_id is required"))
	}

	s.identify(c, msg.Token, msg.Broadcaster.UserID, msg.Broadcaster.Username, msg.Broadcaster.DisplayName)

	info := msg.Broadcaster
	if info.UserID == "" {
		info.UserID = c.Connection.GetUserID()
	}

	s.manager.EnsureSession(msg.BroadcastID, info)
	if err := s.manager.AttachBroadcaster(msg.BroadcastID, c.ID); err != nil {
		if errors.Is(err, domain.ErrAlreadyLive) {
			return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeAlreadyLive, "broadcast already has a live host"))
		}
		return err
	}

	c.Connection.SetRole(msg.BroadcastID, domain.RoleBroadcaster)
	s.hub.JoinRoom(c, msg.BroadcastID)

	// The host microphone is always the first source in the mix.
	s.manager.AddSource(msg.BroadcastID, c.ID, domain.SourceTypeHostMic, "Host microphone", 1.0, false, 0)

	if s.liveReg != nil {
		if err := s.liveReg.Announce(ctx, msg.BroadcastID); err != nil {
			log.L().Warn().Err(err).Str(log.FieldBroadcastID, msg.BroadcastID).Msg("failed to announce broadcast")
		}
	}
	if s.producer != nil {
		if err := s.producer.ProduceBroadcastStarted(ctx, msg.BroadcastID, info.UserID); err != nil {
			log.L().Warn().Err(err).Msg("failed to produce broadcast_started event")
		}
	}

	s.hub.BroadcastToRoom(msg.BroadcastID, &domain.BroadcasterReadyMessage{
		Type:        domain.MsgTypeBroadcasterReady,
		BroadcastID: msg.BroadcastID,
		Broadcaster: info,
	}, "")
	return nil
}

func (s *broadcastService) HandleJoinBroadcast(ctx context.Context, c *hub.Client, msg *domain.JoinBroadcastMessage) error {
	if msg.BroadcastID == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "broadcast_id is required"))
	}

	info, err := s.manager.Info(msg.BroadcastID)
	if err != nil {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "broadcast not found"))
	}

	// Joining a new broadcast implicitly leaves the previous one.
	if prev, _ := c.Connection.CurrentBroadcast(); prev != "" && prev != msg.BroadcastID {
		s.HandleLeaveBroadcast(ctx, c)
	}

	s.identify(c, msg.Token, "", msg.Username, msg.Username)

	c.Connection.SetRole(msg.BroadcastID, domain.RoleListener)
	s.hub.JoinRoom(c, msg.BroadcastID)
	if err := s.manager.AddListener(msg.BroadcastID, c.ID); err != nil {
		// The session ended between the Info lookup and here.
		s.hub.LeaveRoom(c, msg.BroadcastID)
		c.Connection.ClearRole()
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "broadcast not found"))
	}

	if s.settings != nil {
		info.Settings = s.settings.Settings(msg.BroadcastID)
	}
	if err := c.SendMessage(&info); err != nil {
		return err
	}

	s.hub.BroadcastToRoom(msg.BroadcastID, &domain.UserPresenceMessage{
		Type:        domain.MsgTypeUserJoined,
		BroadcastID: msg.BroadcastID,
		UserID:      c.Connection.GetUserID(),
		Username:    c.Connection.GetUsername(),
	}, c.ID)
	return nil
}

func (s *broadcastService) HandleLeaveBroadcast(ctx context.Context, c *hub.Client) error {
	broadcastID, role := c.Connection.CurrentBroadcast()
	if broadcastID == "" {
		return nil
	}

	if role == domain.RoleBroadcaster {
		return s.HandleEndBroadcast(ctx, c, "ended by broadcaster")
	}

	s.manager.ReleaseCaller(broadcastID, c.ID)
	s.manager.RemoveListener(broadcastID, c.ID)
	s.hub.LeaveRoom(c, broadcastID)

	s.hub.BroadcastToRoom(broadcastID, &domain.UserPresenceMessage{
		Type:        domain.MsgTypeUserLeft,
		BroadcastID: broadcastID,
		UserID:      c.Connection.GetUserID(),
		Username:    c.Connection.GetUsername(),
	}, c.ID)

	c.Connection.ClearRole()
	return nil
}

func (s *broadcastService) HandleEndBroadcast(ctx context.Context, c *hub.Client, reason string) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "not in a broadcast"))
	}
	if !s.manager.IsBroadcaster(broadcastID, c.ID) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "only the broadcaster can end the broadcast"))
	}
	if reason == "" {
		reason = "ended by broadcaster"
	}

	broadcasterID := c.Connection.GetUserID()
	s.endSession(ctx, broadcastID, broadcasterID, reason, kafka.ReasonExplicit)
	c.Connection.ClearRole()
	return nil
}

// endSession tears down one session and its external advertisements.
func (s *broadcastService) endSession(ctx context.Context, broadcastID, broadcasterID, reason, kafkaReason string) {
	if err := s.manager.EndSession(broadcastID, reason); err != nil {
		return
	}
	if s.liveReg != nil {
		if err := s.liveReg.Retract(ctx, broadcastID); err != nil {
			log.L().Warn().Err(err).Str(log.FieldBroadcastID, broadcastID).Msg("failed to retract broadcast")
		}
	}
	if s.producer != nil {
		if err := s.producer.ProduceBroadcastStopped(ctx, broadcastID, broadcasterID, kafkaReason); err != nil {
			log.L().Warn().Err(err).Msg("failed to produce broadcast_stopped event")
		}
	}
}

func (s *broadcastService) HandleBroadcastAudio(ctx context.Context, c *hub.Client, msg *domain.BroadcastAudioMessage) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "not in a broadcast"))
	}

	// Only the owner of a source, or the broadcaster, may feed it.
	if !s.manager.IsBroadcaster(broadcastID, c.ID) {
		owner, err := s.manager.SourceOwner(broadcastID, msg.SourceID)
		if err != nil || owner != c.ID {
			return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "not the owner of this audio source"))
		}
	}

	return s.hub.BroadcastToRoom(broadcastID, &domain.AudioStreamMessage{
		Type:        domain.MsgTypeAudioStream,
		BroadcastID: broadcastID,
		SourceID:    msg.SourceID,
		Chunk:       msg.Chunk,
	}, c.ID)
}

func (s *broadcastService) HandleAddAudioSource(ctx context.Context, c *hub.Client, msg *domain.AudioSourceMessage) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" || !s.manager.IsBroadcaster(broadcastID, c.ID) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "only the broadcaster can manage audio sources"))
	}

	_, err := s.manager.AddSource(broadcastID, c.ID, msg.SourceType, msg.Label, msg.Volume, msg.Muted, msg.Priority)
	if err != nil {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "broadcast not found"))
	}
	return nil
}

func (s *broadcastService) HandleUpdateAudioSource(ctx context.Context, c *hub.Client, msg *domain.AudioSourceMessage) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" || !s.manager.IsBroadcaster(broadcastID, c.ID) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "only the broadcaster can manage audio sources"))
	}

	_, err := s.manager.UpdateSource(broadcastID, msg.SourceID, msg.Volume, msg.Muted, msg.Priority)
	if errors.Is(err, domain.ErrNotFound) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "audio source not found"))
	}
	return err
}

func (s *broadcastService) HandleRemoveAudioSource(ctx context.Context, c *hub.Client, sourceID string) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" || !s.manager.IsBroadcaster(broadcastID, c.ID) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "only the broadcaster can manage audio sources"))
	}

	if err := s.manager.RemoveSource(broadcastID, sourceID); errors.Is(err, domain.ErrNotFound) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "audio source not found"))
	}
	return nil
}

func (s *broadcastService) HandleRequestCall(ctx context.Context, c *hub.Client, info domain.CallerInfo) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "join a broadcast before requesting a call"))
	}
	if info.UserID == "" {
		info.UserID = c.Connection.GetUserID()
	}
	if info.Username == "" {
		info.Username = c.Connection.GetUsername()
	}

	req, position, err := s.manager.RequestCall(broadcastID, c.ID, info)
	if err != nil {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "broadcast not found"))
	}

	return c.SendMessage(&domain.CallPendingMessage{
		Type:     domain.MsgTypeCallPending,
		CallID:   req.ID,
		Position: position,
	})
}

func (s *broadcastService) HandleAcceptCall(ctx context.Context, c *hub.Client, callID string) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "not in a broadcast"))
	}

	call, err := s.manager.AcceptCall(broadcastID, callID, c.ID)
	switch {
	case errors.Is(err, domain.ErrNotBroadcaster):
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "only the broadcaster can accept calls"))
	case errors.Is(err, domain.ErrNotFound):
		// The call already timed out, was withdrawn, or the session
		// ended; nothing to do.
		log.L().Debug().Str(log.FieldCallID, callID).Msg("accept for vanished call ignored")
		return nil
	case err != nil:
		return err
	}

	if s.producer != nil {
		if err := s.producer.ProduceCallAccepted(ctx, broadcastID, call.ID); err != nil {
			log.L().Warn().Err(err).Msg("failed to produce call_accepted event")
		}
	}
	return nil
}

func (s *broadcastService) HandleEndCall(ctx context.Context, c *hub.Client, callID string) error {
	broadcastID, _ := c.Connection.CurrentBroadcast()
	if broadcastID == "" {
		return nil
	}

	err := s.manager.EndCall(broadcastID, callID, c.ID)
	if errors.Is(err, domain.ErrNotBroadcaster) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "not a participant of this call"))
	}
	return nil
}

func (s *broadcastService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	conn, err := s.connections.Remove(c.ID)
	if err != nil {
		// Late or duplicate disconnect; already gone.
		return
	}

	broadcastID, role := conn.CurrentBroadcast()
	if broadcastID != "" && role == domain.RoleBroadcaster {
		s.endSession(ctx, broadcastID, conn.GetUserID(), "broadcaster disconnected", kafka.ReasonDisconnect)
		return
	}

	s.manager.HandleDisconnect(conn)
	if broadcastID != "" {
		s.hub.BroadcastToRoom(broadcastID, &domain.UserPresenceMessage{
			Type:        domain.MsgTypeUserLeft,
			BroadcastID: broadcastID,
			UserID:      conn.GetUserID(),
			Username:    conn.GetUsername(),
		}, c.ID)
	}
}

// SweepCallTimeouts ages out pending calls; runs on the scheduler.
func (s *broadcastService) SweepCallTimeouts() {
	if n := s.manager.SweepTimeouts(s.callTimeout); n > 0 {
		log.L().Info().Int("removed", n).Msg("call timeout sweep completed")
	}
}

// PublishStats fans out a stats snapshot to every live broadcast.
func (s *broadcastService) PublishStats() {
	now := time.Now().UTC()
	for _, broadcastID := range s.manager.LiveBroadcasts() {
		stats, err := s.manager.Stats(broadcastID)
		if err != nil {
			continue
		}
		s.hub.BroadcastToRoom(broadcastID, &domain.ServerStatsMessage{
			Type:      domain.MsgTypeServerStats,
			Stats:     stats,
			Timestamp: now,
		}, "")
	}
}

// Drain ends every live session ahead of process shutdown so listeners
// and callers get a termination notice before their sockets close.
// Best effort: we log failures and keep going.
func (s *broadcastService) Drain(ctx context.Context) {
	for _, broadcastID := range s.manager.LiveBroadcasts() {
		s.endSession(ctx, broadcastID, "", "server shutting down", kafka.ReasonShutdown)
	}
}

func (s *broadcastService) Start(ctx context.Context) error {
	log.L().Info().Msg("broadcast service started")
	return nil
}

func (s *broadcastService) Stop() error {
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			log.L().Warn().Err(err).Msg("failed to close kafka producer")
		}
	}
	return nil
}
