package broadcast

import (
	"sync"
	"time"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
)

// Session holds the live state for one broadcast id. Each session has
// its own lock so independent broadcasts never serialize against each
// other; the manager's lock only guards the session map itself.
type Session struct {
	mu sync.Mutex

	broadcastID     string
	broadcasterConn string
	broadcaster     domain.BroadcasterInfo
	isLive          bool
	startTime       time.Time

	listeners   map[string]struct{}
	sources     map[string]*domain.AudioSource
	callQueue   []*domain.CallRequest
	activeCalls map[string]*domain.ActiveCall // caller connection id -> call

	peakListeners int
	totalCalls    int
	totalMessages int
}

func newSession(broadcastID string, info domain.BroadcasterInfo) *Session {
	return &Session{
		broadcastID: broadcastID,
		broadcaster: info,
		listeners:   make(map[string]struct{}),
		sources:     make(map[string]*domain.AudioSource),
		activeCalls: make(map[string]*domain.ActiveCall),
	}
}

// statsLocked builds a stats snapshot. Caller holds s.mu.
func (s *Session) statsLocked() domain.SessionStats {
	stats := domain.SessionStats{
		BroadcastID:      s.broadcastID,
		IsLive:           s.isLive,
		ListenerCount:    len(s.listeners),
		PeakListeners:    s.peakListeners,
		AudioSourceCount: len(s.sources),
		QueuedCalls:      len(s.callQueue),
		ActiveCalls:      len(s.activeCalls),
		TotalCalls:       s.totalCalls,
		TotalMessages:    s.totalMessages,
		StartTime:        s.startTime,
	}
	if !s.startTime.IsZero() {
		stats.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
	}
	return stats
}

// queuedCallLocked returns the queue index of a call id, or -1.
func (s *Session) queuedCallLocked(callID string) int {
	for i, req := range s.callQueue {
		if req.ID == callID {
			return i
		}
	}
	return -1
}

// removeQueuedLocked removes the queue entry at index i, preserving
// FIFO order of the remainder.
func (s *Session) removeQueuedLocked(i int) *domain.CallRequest {
	req := s.callQueue[i]
	s.callQueue = append(s.callQueue[:i], s.callQueue[i+1:]...)
	return req
}

// sourceListLocked returns sources as a slice for snapshots.
func (s *Session) sourceListLocked() []domain.AudioSource {
	out := make([]domain.AudioSource, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, *src)
	}
	return out
}
