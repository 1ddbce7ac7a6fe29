package broadcast

import (
	"time"

	"sync"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

// Manager owns every broadcast session. It is the single writer of
// session membership: all joins, leaves, call transitions, and source
// changes for a broadcast go through here, atomically per broadcast id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	notifier Notifier
}

// NewManager creates a Manager fanning out through the given notifier.
func NewManager(notifier Notifier) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		notifier: notifier,
	}
}

// session returns the live session for an id.
func (m *Manager) session(broadcastID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[broadcastID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

// EnsureSession returns the session for a broadcast id, creating it on
// first broadcaster join. Idempotent: an existing live session is
// returned untouched, never reset.
func (m *Manager) EnsureSession(broadcastID string, info domain.BroadcasterInfo) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[broadcastID]; ok {
		return s
	}
	s := newSession(broadcastID, info)
	m.sessions[broadcastID] = s

	log.L().Info().Str(log.FieldBroadcastID, broadcastID).Msg("session created")
	return s
}

// AttachBroadcaster claims the session for a connection and marks it
// live. A second connection attaching to a live session gets
// domain.ErrAlreadyLive; the existing session is unaffected. Re-attach
// by the owning connection is a no-op.
func (m *Manager) AttachBroadcaster(broadcastID, connectionID string) error {
	s, err := m.session(broadcastID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isLive && s.broadcasterConn != "" && s.broadcasterConn != connectionID {
		return domain.ErrAlreadyLive
	}
	s.broadcasterConn = connectionID
	if !s.isLive {
		s.isLive = true
		s.startTime = time.Now()
	}

	log.L().Info().
		Str(log.FieldBroadcastID, broadcastID).
		Str(log.FieldConnectionID, connectionID).
		Msg("broadcaster attached")
	return nil
}

// AddListener records a listener joining and fans out the new count.
func (m *Manager) AddListener(broadcastID, connectionID string) error {
	s, err := m.session(broadcastID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	// An on-air caller is not a listener; a duplicate join must not put
	// the connection in both sets.
	if _, onAir := s.activeCalls[connectionID]; onAir {
		s.mu.Unlock()
		return nil
	}
	s.listeners[connectionID] = struct{}{}
	if n := len(s.listeners); n > s.peakListeners {
		s.peakListeners = n
	}
	count, peak := len(s.listeners), s.peakListeners
	s.mu.Unlock()

	m.notifier.BroadcastToRoom(broadcastID, &domain.ListenerCountMessage{
		Type:        domain.MsgTypeListenerCount,
		BroadcastID: broadcastID,
		Count:       count,
		Peak:        peak,
	}, "")
	return nil
}

// RemoveListener records a listener leaving and fans out the new count.
// Unknown ids are tolerated: late and duplicate leave events happen.
func (m *Manager) RemoveListener(broadcastID, connectionID string) error {
	s, err := m.session(broadcastID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.listeners[connectionID]; !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	delete(s.listeners, connectionID)
	count, peak := len(s.listeners), s.peakListeners
	s.mu.Unlock()

	m.notifier.BroadcastToRoom(broadcastID, &domain.ListenerCountMessage{
		Type:        domain.MsgTypeListenerCount,
		BroadcastID: broadcastID,
		Count:       count,
		Peak:        peak,
	}, "")
	return nil
}

// EndSession tears down a broadcast. Listeners get a broadcast-ended
// event; every queued and active caller gets an explicit call-ended
// notice so nobody is left waiting on a dead session. The broadcast id
// is released for reuse.
func (m *Manager) EndSession(broadcastID, reason string) error {
	m.mu.Lock()
	s, ok := m.sessions[broadcastID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrNotFound
	}
	delete(m.sessions, broadcastID)
	m.mu.Unlock()

	s.mu.Lock()
	s.isLive = false
	queued := s.callQueue
	s.callQueue = nil
	active := make([]*domain.ActiveCall, 0, len(s.activeCalls))
	for _, call := range s.activeCalls {
		active = append(active, call)
	}
	s.activeCalls = make(map[string]*domain.ActiveCall)
	s.mu.Unlock()

	for _, req := range queued {
		req.State = domain.CallEnded
		m.notifier.SendToClient(req.CallerConnectionID, &domain.CallClosedMessage{
			Type:   domain.MsgTypeCallEnded,
			CallID: req.ID,
			Reason: "broadcast ended",
		})
	}
	for _, call := range active {
		call.State = domain.CallEnded
		m.notifier.SendToClient(call.CallerConnectionID, &domain.CallClosedMessage{
			Type:   domain.MsgTypeCallEnded,
			CallID: call.ID,
			Reason: "broadcast ended",
		})
	}

	m.notifier.BroadcastToRoom(broadcastID, &domain.BroadcastEndedMessage{
		Type:        domain.MsgTypeBroadcastEnded,
		BroadcastID: broadcastID,
		Reason:      reason,
	}, "")

	log.L().Info().
		Str(log.FieldBroadcastID, broadcastID).
		Str(log.FieldReason, reason).
		Msg("session ended")
	return nil
}

// Stats returns a snapshot of one session.
func (m *Manager) Stats(broadcastID string) (domain.SessionStats, error) {
	s, err := m.session(broadcastID)
	if err != nil {
		return domain.SessionStats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked(), nil
}

// Info returns the broadcast metadata shown to a joining listener.
func (m *Manager) Info(broadcastID string) (domain.BroadcastInfoMessage, error) {
	s, err := m.session(broadcastID)
	if err != nil {
		return domain.BroadcastInfoMessage{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.BroadcastInfoMessage{
		Type:        domain.MsgTypeBroadcastInfo,
		BroadcastID: broadcastID,
		IsLive:      s.isLive,
		Broadcaster: s.broadcaster,
		Listeners:   len(s.listeners),
		Sources:     s.sourceListLocked(),
	}, nil
}

// BroadcasterConnection returns the owning connection id of a session.
func (m *Manager) BroadcasterConnection(broadcastID string) (string, error) {
	s, err := m.session(broadcastID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broadcasterConn, nil
}

// IsBroadcaster reports whether the connection owns the session.
func (m *Manager) IsBroadcaster(broadcastID, connectionID string) bool {
	conn, err := m.BroadcasterConnection(broadcastID)
	return err == nil && conn != "" && conn == connectionID
}

// IncrementMessages bumps the session's message counter.
func (m *Manager) IncrementMessages(broadcastID string) {
	s, err := m.session(broadcastID)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.totalMessages++
	s.mu.Unlock()
}

// LiveBroadcasts returns the ids of all active sessions.
func (m *Manager) LiveBroadcasts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// HandleDisconnect reconciles a dropped connection with whatever state
// it held: a broadcaster disconnect ends the session, a listener
// disconnect updates presence, and a caller disconnect releases its
// queue or active-call slot and tells the broadcaster.
func (m *Manager) HandleDisconnect(conn *domain.Connection) {
	broadcastID, role := conn.CurrentBroadcast()
	if broadcastID == "" {
		return
	}

	if role == domain.RoleBroadcaster {
		if err := m.EndSession(broadcastID, "broadcaster disconnected"); err != nil {
			log.L().Debug().
				Str(log.FieldBroadcastID, broadcastID).
				Err(err).
				Msg("disconnect for already-ended session")
		}
		return
	}

	m.ReleaseCaller(broadcastID, conn.ID)
	if err := m.RemoveListener(broadcastID, conn.ID); err == nil {
		log.L().Debug().
			Str(log.FieldBroadcastID, broadcastID).
			Str(log.FieldConnectionID, conn.ID).
			Msg("listener disconnected")
	}
}
