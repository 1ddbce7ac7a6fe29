package chat

import (
	"strings"
	"testing"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
)

func TestCheckSendGates(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(st *Store)
		userID  string
		content string
		wantErr error
	}{
		{
			name:    "plain message passes",
			prepare: func(st *Store) {},
			userID:  "u1",
			content: "hello",
			wantErr: nil,
		},
		{
			name: "banned user rejected",
			prepare: func(st *Store) {
				st.ModerateUser("b1", "u1", domain.UserActionBan)
			},
			userID:  "u1",
			content: "hello",
			wantErr: domain.ErrBanned,
		},
		{
			name: "muted user rejected",
			prepare: func(st *Store) {
				st.ModerateUser("b1", "u1", domain.UserActionMute)
			},
			userID:  "u1",
			content: "hello",
			wantErr: domain.ErrMuted,
		},
		{
			name: "unmute restores sending",
			prepare: func(st *Store) {
				st.ModerateUser("b1", "u1", domain.UserActionMute)
				st.ModerateUser("b1", "u1", domain.UserActionUnmute)
			},
			userID:  "u1",
			content: "hello",
			wantErr: nil,
		},
		{
			name:    "oversized message rejected",
			prepare: func(st *Store) {},
			userID:  "u1",
			content: strings.Repeat("a", 501),
			wantErr: domain.ErrMessageTooLong,
		},
		{
			name:    "emoji allowed by default",
			prepare: func(st *Store) {},
			userID:  "u1",
			content: "great show \U0001F3B5",
			wantErr: nil,
		},
		{
			name: "emoji rejected when disabled",
			prepare: func(st *Store) {
				s := domain.DefaultChatSettings()
				s.AllowEmoji = false
				st.UpdateSettings("b1", s)
			},
			userID:  "u1",
			content: "great show \U0001F3B5",
			wantErr: domain.ErrEmojiDisabled,
		},
		{
			name: "plain text passes with emoji disabled",
			prepare: func(st *Store) {
				s := domain.DefaultChatSettings()
				s.AllowEmoji = false
				st.UpdateSettings("b1", s)
			},
			userID:  "u1",
			content: "great show",
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewStore(0)
			tt.prepare(st)
			if err := st.CheckSend("b1", tt.userID, tt.content); err != tt.wantErr {
				t.Errorf("CheckSend = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSlowModeLimitsRepeatSends(t *testing.T) {
	st := NewStore(0)
	settings := domain.DefaultChatSettings()
	settings.SlowModeSeconds = 30
	st.UpdateSettings("b1", settings)

	if err := st.CheckSend("b1", "u1", "first"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := st.CheckSend("b1", "u1", "second"); err != domain.ErrSlowMode {
		t.Errorf("second send = %v, want ErrSlowMode", err)
	}

	// Slow mode is per user, not per broadcast.
	if err := st.CheckSend("b1", "u2", "other user"); err != nil {
		t.Errorf("other user's send: %v", err)
	}
}

func TestUpdateSettingsResetsSlowModeState(t *testing.T) {
	st := NewStore(0)
	settings := domain.DefaultChatSettings()
	settings.SlowModeSeconds = 60
	st.UpdateSettings("b1", settings)

	st.CheckSend("b1", "u1", "burn the token")

	// Turning slow mode off frees everyone immediately.
	settings.SlowModeSeconds = 0
	st.UpdateSettings("b1", settings)
	if err := st.CheckSend("b1", "u1", "again"); err != nil {
		t.Errorf("send after disabling slow mode: %v", err)
	}
}

func TestModerateUserUnknownAction(t *testing.T) {
	st := NewStore(0)
	if err := st.ModerateUser("b1", "u1", "shadowban"); err != domain.ErrNotFound {
		t.Errorf("ModerateUser(shadowban) = %v, want ErrNotFound", err)
	}
}

func TestBanUnban(t *testing.T) {
	st := NewStore(0)
	st.ModerateUser("b1", "u1", domain.UserActionBan)
	if !st.IsBanned("b1", "u1") {
		t.Error("u1 should be banned")
	}
	// Ban sets are per broadcast.
	if st.IsBanned("b2", "u1") {
		t.Error("ban must not leak into another broadcast")
	}

	st.ModerateUser("b1", "u1", domain.UserActionUnban)
	if st.IsBanned("b1", "u1") {
		t.Error("u1 should be unbanned")
	}
}
