package persist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
)

func TestSaveMessageReturnsCanonicalRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var in domain.ChatMessage
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		// The collaborator assigns the canonical id.
		in.ID = "canonical-1"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(apiResponse{Success: true, Data: &in})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	saved, err := c.SaveMessage(context.Background(), &domain.ChatMessage{
		ID:          "local-1",
		BroadcastID: "b1",
		UserID:      "u1",
		Content:     "hello",
	})
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if saved.ID != "canonical-1" {
		t.Errorf("ID = %q, want canonical-1", saved.ID)
	}
	if saved.Content != "hello" {
		t.Errorf("Content = %q", saved.Content)
	}
}

func TestHistoryQueriesByBroadcastID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("broadcastId"); got != "b1" {
			t.Errorf("broadcastId = %q, want b1", got)
		}
		json.NewEncoder(w).Encode(historyResponse{
			Success: true,
			Messages: []domain.ChatMessage{
				{ID: "m1", Content: "first"},
				{ID: "m2", Content: "second"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	hist, err := c.History(context.Background(), "b1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[0].ID != "m1" {
		t.Errorf("history = %+v", hist)
	}
}

func TestServerErrorsAreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.SaveMessage(context.Background(), &domain.ChatMessage{ID: "m1"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("SaveMessage on 500 = %v, want ErrUnavailable", err)
	}
	_, err = c.History(context.Background(), "b1")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("History on 500 = %v, want ErrUnavailable", err)
	}
}

func TestUnreachableServerIsUnavailable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.SaveMessage(context.Background(), &domain.ChatMessage{ID: "m1"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("SaveMessage = %v, want ErrUnavailable", err)
	}
}

func TestNotFoundMapsToDomainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.SaveModeration(context.Background(), ModerationRecord{
		BroadcastID: "b1", MessageID: "ghost", Action: domain.ModerateActionPin,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SaveModeration on 404 = %v, want domain.ErrNotFound", err)
	}
}

func TestSaveReactionPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/reactions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var rec ReactionRecord
		json.NewDecoder(r.Body).Decode(&rec)
		if rec.Kind != domain.ReactionLike || rec.UserID != "u1" {
			t.Errorf("record = %+v", rec)
		}
		json.NewEncoder(w).Encode(apiResponse{
			Success: true,
			Data:    &domain.ChatMessage{ID: rec.MessageID, LikeCount: 1},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	updated, err := c.SaveReaction(context.Background(), ReactionRecord{
		BroadcastID: "b1", MessageID: "m1", UserID: "u1", Kind: domain.ReactionLike,
	})
	if err != nil {
		t.Fatalf("SaveReaction: %v", err)
	}
	if updated.LikeCount != 1 {
		t.Errorf("LikeCount = %d, want 1", updated.LikeCount)
	}
}

func TestSuccessEnvelopeWithoutRecordIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{Success: true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	saved, err := c.SaveMessage(context.Background(), &domain.ChatMessage{
		ID: "m1", BroadcastID: "b1", UserID: "u1", Content: "hi",
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("SaveMessage with empty data = %v, want ErrUnavailable", err)
	}
	if saved != nil {
		t.Error("SaveMessage must not return a record on a malformed reply")
	}

	// A record-less success reply is fine for endpoints that return none.
	if err := c.SaveUserAction(context.Background(), UserActionRecord{
		BroadcastID: "b1", UserID: "u1", Action: domain.UserActionBan,
	}); err != nil {
		t.Errorf("SaveUserAction: %v", err)
	}
}

func TestUnsuccessfulEnvelopeIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{Success: false, Error: "validation failed"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if err := c.SaveUserAction(context.Background(), UserActionRecord{
		BroadcastID: "b1", UserID: "u1", Action: domain.UserActionBan,
	}); err == nil {
		t.Error("expected an error for success=false envelope")
	}
}
