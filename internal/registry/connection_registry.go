package registry

import (
	"sync"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

// ConnectionRegistry is the single owner of connection records. It is
// constructed explicitly and injected, so tests can run isolated
// instances. Operations on unknown ids return domain.ErrNotFound and
// nothing more; duplicate or late disconnect events are expected.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	connections map[string]*domain.Connection
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string]*domain.Connection),
	}
}

// Register creates and stores a connection record. Registering an id
// twice returns the existing record.
func (r *ConnectionRegistry) Register(connectionID string) *domain.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.connections[connectionID]; ok {
		return conn
	}
	conn := domain.NewConnection(connectionID)
	r.connections[connectionID] = conn

	log.L().Debug().Str(log.FieldConnectionID, connectionID).Msg("connection registered")
	return conn
}

// Get returns the connection record for an id.
func (r *ConnectionRegistry) Get(connectionID string) (*domain.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connectionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return conn, nil
}

// UpdateRole attaches the connection to a broadcast with the given role.
func (r *ConnectionRegistry) UpdateRole(connectionID, broadcastID string, role domain.Role) error {
	conn, err := r.Get(connectionID)
	if err != nil {
		return err
	}
	conn.SetRole(broadcastID, role)
	return nil
}

// ClearRole detaches the connection from its broadcast.
func (r *ConnectionRegistry) ClearRole(connectionID string) error {
	conn, err := r.Get(connectionID)
	if err != nil {
		return err
	}
	conn.ClearRole()
	return nil
}

// Touch updates the connection's last-activity timestamp.
func (r *ConnectionRegistry) Touch(connectionID string) {
	if conn, err := r.Get(connectionID); err == nil {
		conn.Touch()
	}
}

// Remove deletes a connection record, returning it for final
// bookkeeping by the caller.
func (r *ConnectionRegistry) Remove(connectionID string) (*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connectionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(r.connections, connectionID)

	log.L().Debug().Str(log.FieldConnectionID, connectionID).Msg("connection removed")
	return conn, nil
}

// Count returns the number of tracked connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
