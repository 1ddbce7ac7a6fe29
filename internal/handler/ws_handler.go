package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/elviDev/ls-internet-radio-sub002/internal/config"
	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
	"github.com/elviDev/ls-internet-radio-sub002/internal/hub"
	"github.com/elviDev/ls-internet-radio-sub002/internal/registry"
	"github.com/elviDev/ls-internet-radio-sub002/internal/service"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades connections and dispatches incoming events to
// the broadcast and chat services.
type WSHandler struct {
	hub         *hub.Hub
	broadcasts  service.BroadcastService
	chat        service.ChatService
	connections *registry.ConnectionRegistry
	wsCfg       config.WebSocketConfig
}

func NewWSHandler(
	h *hub.Hub,
	broadcasts service.BroadcastService,
	chat service.ChatService,
	connections *registry.ConnectionRegistry,
	wsCfg config.WebSocketConfig,
) *WSHandler {
	return &WSHandler{
		hub:         h,
		broadcasts:  broadcasts,
		chat:        chat,
		connections: connections,
		wsCfg:       wsCfg,
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.L().Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := uuid.New().String()
	record := h.connections.Register(id)
	client := hub.NewClient(id, h.hub, conn, record, h.wsCfg)
	client.SetDisconnectHandler(h.handleDisconnect)

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

// handleDisconnect runs on the read loop's way out, before the hub
// unregisters the client. Chat state first so the typing fan-out still
// reaches the room the connection is leaving.
func (h *WSHandler) handleDisconnect(client *hub.Client) {
	ctx := context.Background()
	broadcastID, role := client.Connection.CurrentBroadcast()
	h.chat.HandleDisconnect(ctx, client)
	h.broadcasts.HandleDisconnect(ctx, client)
	if role == domain.RoleBroadcaster && broadcastID != "" {
		h.chat.EndBroadcast(broadcastID)
	}
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid message format"))
		return
	}

	ctx := context.Background()

	switch base.Type {
	case domain.MsgTypeJoinAsBroadcaster:
		var msg domain.JoinAsBroadcasterMessage
		if !h.decode(client, message, &msg, "invalid join-as-broadcaster message") {
			return
		}
		h.report(client, base.Type, h.broadcasts.HandleJoinAsBroadcaster(ctx, client, &msg))

	case domain.MsgTypeJoinBroadcast:
		var msg domain.JoinBroadcastMessage
		if !h.decode(client, message, &msg, "invalid join-broadcast message") {
			return
		}
		if err := h.broadcasts.HandleJoinBroadcast(ctx, client, &msg); err != nil {
			h.report(client, base.Type, err)
			return
		}
		h.report(client, base.Type, h.chat.HandleBackfill(ctx, client, msg.BroadcastID))

	case domain.MsgTypeLeaveBroadcast:
		h.report(client, base.Type, h.broadcasts.HandleLeaveBroadcast(ctx, client))

	case domain.MsgTypeEndBroadcast:
		var msg domain.EndBroadcastMessage
		if !h.decode(client, message, &msg, "invalid end-broadcast message") {
			return
		}
		broadcastID, _ := client.Connection.CurrentBroadcast()
		if err := h.broadcasts.HandleEndBroadcast(ctx, client, msg.Reason); err != nil {
			h.report(client, base.Type, err)
			return
		}
		if broadcastID != "" {
			h.chat.EndBroadcast(broadcastID)
		}

	case domain.MsgTypeBroadcastAudio:
		var msg domain.BroadcastAudioMessage
		if !h.decode(client, message, &msg, "invalid broadcast-audio message") {
			return
		}
		h.report(client, base.Type, h.broadcasts.HandleBroadcastAudio(ctx, client, &msg))

	case domain.MsgTypeAddAudioSource:
		var msg domain.AudioSourceMessage
		if !h.decode(client, message, &msg, "invalid add-audio-source message") {
			return
		}
		h.report(client, base.Type, h.broadcasts.HandleAddAudioSource(ctx, client, &msg))

	case domain.MsgTypeUpdateAudioSource:
		var msg domain.AudioSourceMessage
		if !h.decode(client, message, &msg, "invalid update-audio-source message") {
			return
		}
		h.report(client, base.Type, h.broadcasts.HandleUpdateAudioSource(ctx, client, &msg))

	case domain.MsgTypeRemoveAudioSource:
		var msg domain.AudioSourceMessage
		if !h.decode(client, message, &msg, "invalid remove-audio-source message") {
			return
		}
		h.report(client, base.Type, h.broadcasts.HandleRemoveAudioSource(ctx, client, msg.SourceID))

	case domain.MsgTypeRequestCall:
		var msg domain.RequestCallMessage
		if !h.decode(client, message, &msg, "invalid request-call message") {
			return
		}
		h.report(client, base.Type, h.broadcasts.HandleRequestCall(ctx, client, msg.Caller))

	case domain.MsgTypeAcceptCall:
		var msg domain.AcceptCallMessage
		if !h.decode(client, message, &msg, "invalid accept-call message") {
			return
		}
		h.report(client, base.Type, h.broadcasts.HandleAcceptCall(ctx, client, msg.CallID))

	case domain.MsgTypeEndCall:
		var msg domain.EndCallMessage
		if !h.decode(client, message, &msg, "invalid end-call message") {
			return
		}
		h.report(client, base.Type, h.broadcasts.HandleEndCall(ctx, client, msg.CallID))

	case domain.MsgTypeChatMessage:
		var msg domain.ChatSendMessage
		if !h.decode(client, message, &msg, "invalid chat-message") {
			return
		}
		h.report(client, base.Type, h.chat.HandleChatMessage(ctx, client, msg.Content, msg.ReplyTo))

	case domain.MsgTypeAnnouncement:
		var msg domain.ChatSendMessage
		if !h.decode(client, message, &msg, "invalid announcement message") {
			return
		}
		h.report(client, base.Type, h.chat.HandleAnnouncement(ctx, client, msg.Content))

	case domain.MsgTypeUserTyping:
		h.report(client, base.Type, h.chat.HandleTyping(ctx, client, true))

	case domain.MsgTypeUserStoppedTyping:
		h.report(client, base.Type, h.chat.HandleTyping(ctx, client, false))

	case domain.MsgTypeModerateMessage:
		var msg domain.ModerateMessageMessage
		if !h.decode(client, message, &msg, "invalid moderate-message") {
			return
		}
		h.report(client, base.Type, h.chat.HandleModerateMessage(ctx, client, &msg))

	case domain.MsgTypeModerateUser:
		var msg domain.ModerateUserMessage
		if !h.decode(client, message, &msg, "invalid moderate-user message") {
			return
		}
		h.report(client, base.Type, h.chat.HandleModerateUser(ctx, client, &msg))

	case domain.MsgTypeLikeMessage:
		var msg domain.LikeMessageMessage
		if !h.decode(client, message, &msg, "invalid like-message") {
			return
		}
		h.report(client, base.Type, h.chat.HandleLikeMessage(ctx, client, msg.MessageID, msg.Kind))

	case domain.MsgTypeUpdateSettings:
		var msg domain.UpdateSettingsMessage
		if !h.decode(client, message, &msg, "invalid update-chat-settings message") {
			return
		}
		h.report(client, base.Type, h.chat.HandleUpdateSettings(ctx, client, msg.Settings))

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type"))
	}
}

func (h *WSHandler) decode(client *hub.Client, raw []byte, dst interface{}, errMsg string) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, errMsg))
		return false
	}
	return true
}

func (h *WSHandler) report(client *hub.Client, msgType string, err error) {
	if err != nil {
		log.L().Warn().
			Err(err).
			Str(log.FieldConnectionID, client.ID).
			Str("message_type", msgType).
			Msg("message handling failed")
	}
}

func (h *WSHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", h.HandleWebSocket)
}
