package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
)

// ErrUnavailable marks a persistence failure as transient. The live
// fan-out proceeds regardless; the experience degrades to "eventually
// persisted" rather than blocking on storage.
var ErrUnavailable = errors.New("persistence service unavailable")

// Client wraps the chat persistence collaborator's HTTP API. The
// collaborator is the source of truth for message ids, moderation
// state, and reactions; real-time fan-out is a notification, not the
// authority.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type apiResponse struct {
	Success bool                `json:"success"`
	Data    *domain.ChatMessage `json:"data"`
	Error   string              `json:"error,omitempty"`
}

type historyResponse struct {
	Success  bool                 `json:"success"`
	Messages []domain.ChatMessage `json:"messages"`
	Error    string               `json:"error,omitempty"`
}

// NewClient creates a persistence client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SaveMessage persists a new message and returns the canonical record,
// including its assigned id, before any real-time fan-out.
func (c *Client) SaveMessage(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	return c.post(ctx, "/chat", msg)
}

// History returns the persisted messages for a broadcast in ascending
// timestamp order, used to backfill joining clients.
func (c *Client) History(ctx context.Context, broadcastID string) ([]domain.ChatMessage, error) {
	u := fmt.Sprintf("%s/chat?broadcastId=%s", c.baseURL, url.QueryEscape(broadcastID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var hist historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	if !hist.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, hist.Error)
	}
	return hist.Messages, nil
}

// ModerationRecord is the payload for POST /chat/moderate.
type ModerationRecord struct {
	BroadcastID string `json:"broadcast_id"`
	MessageID   string `json:"message_id"`
	Action      string `json:"action"`
	Reason      string `json:"reason,omitempty"`
}

// SaveModeration persists a moderation action; the returned record is
// applied as the source of truth.
func (c *Client) SaveModeration(ctx context.Context, rec ModerationRecord) (*domain.ChatMessage, error) {
	return c.post(ctx, "/chat/moderate", rec)
}

// UserActionRecord is the payload for POST /chat/users.
type UserActionRecord struct {
	BroadcastID string `json:"broadcast_id"`
	UserID      string `json:"user_id"`
	Action      string `json:"action"`
}

// SaveUserAction persists a ban/mute change.
func (c *Client) SaveUserAction(ctx context.Context, rec UserActionRecord) error {
	_, err := c.do(ctx, "/chat/users", rec)
	return err
}

// ReactionRecord is the payload for POST /chat/reactions.
type ReactionRecord struct {
	BroadcastID string `json:"broadcast_id"`
	MessageID   string `json:"message_id"`
	UserID      string `json:"user_id"`
	Kind        string `json:"kind"`
}

// SaveReaction persists a reaction toggle and returns the updated record.
func (c *Client) SaveReaction(ctx context.Context, rec ReactionRecord) (*domain.ChatMessage, error) {
	return c.post(ctx, "/chat/reactions", rec)
}

// post calls an endpoint whose reply must carry a record. A success
// envelope without one is malformed; callers rely on the returned
// record being non-nil.
func (c *Client) post(ctx context.Context, path string, payload interface{}) (*domain.ChatMessage, error) {
	out, err := c.do(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, fmt.Errorf("%w: response carried no record", ErrUnavailable)
	}
	return out.Data, nil
}

func (c *Client) do(ctx context.Context, path string, payload interface{}) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, out.Error)
	}
	return &out, nil
}
