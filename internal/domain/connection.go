package domain

import (
	"sync"
	"time"
)

// Role of a connection within a broadcast.
type Role string

const (
	RoleBroadcaster Role = "broadcaster"
	RoleListener    Role = "listener"
)

// Connection is the per-socket state tracked by the connection registry.
// It is referenced, never owned, by session and presence structures.
type Connection struct {
	ID           string
	BroadcastID  string
	Role         Role
	UserID       string
	Username     string
	DisplayName  string
	ConnectedAt  time.Time
	LastActiveAt time.Time
	mu           sync.RWMutex
}

// NewConnection creates a connection record for a freshly accepted socket.
func NewConnection(id string) *Connection {
	now := time.Now()
	return &Connection{
		ID:           id,
		ConnectedAt:  now,
		LastActiveAt: now,
	}
}

// SetIdentity attaches the caller-supplied identity to the connection.
func (c *Connection) SetIdentity(userID, username, displayName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.UserID = userID
	c.Username = username
	c.DisplayName = displayName
	c.LastActiveAt = time.Now()
}

// SetRole records which broadcast the connection is attached to and how.
func (c *Connection) SetRole(broadcastID string, role Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BroadcastID = broadcastID
	c.Role = role
	c.LastActiveAt = time.Now()
}

// ClearRole detaches the connection from its broadcast.
func (c *Connection) ClearRole() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BroadcastID = ""
	c.Role = ""
	c.LastActiveAt = time.Now()
}

// CurrentBroadcast returns the attached broadcast id and role.
func (c *Connection) CurrentBroadcast() (string, Role) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.BroadcastID, c.Role
}

// IsBroadcaster reports whether the connection currently owns a broadcast.
func (c *Connection) IsBroadcaster() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Role == RoleBroadcaster
}

// GetUserID returns the attached user id.
func (c *Connection) GetUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.UserID
}

// GetUsername returns the attached username.
func (c *Connection) GetUsername() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Username
}

// GetDisplayName returns the attached display name.
func (c *Connection) GetDisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DisplayName
}

// Touch updates the last-activity timestamp.
func (c *Connection) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastActiveAt = time.Now()
}
