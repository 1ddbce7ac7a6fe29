package broadcast

import (
	"time"

	"github.com/google/uuid"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

// CallTimeout is how long a pending call may wait before the sweep
// removes it.
const CallTimeout = 5 * time.Minute

// RequestCall appends a caller to the session's FIFO queue, notifies
// the broadcaster, and returns the call id with its 1-based position.
// A repeat request from the same connection returns the existing entry.
func (m *Manager) RequestCall(broadcastID, callerConnectionID string, info domain.CallerInfo) (*domain.CallRequest, int, error) {
	s, err := m.session(broadcastID)
	if err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	for i, queued := range s.callQueue {
		if queued.CallerConnectionID == callerConnectionID {
			s.mu.Unlock()
			return queued, i + 1, nil
		}
	}

	req := &domain.CallRequest{
		ID:                 uuid.New().String(),
		BroadcastID:        broadcastID,
		CallerConnectionID: callerConnectionID,
		Caller:             info,
		State:              domain.CallPending,
		RequestedAt:        time.Now(),
	}
	s.callQueue = append(s.callQueue, req)
	position := len(s.callQueue)
	broadcasterConn := s.broadcasterConn
	s.mu.Unlock()

	if broadcasterConn != "" {
		m.notifier.SendToClient(broadcasterConn, &domain.IncomingCallMessage{
			Type: domain.MsgTypeIncomingCall,
			Call: *req,
		})
	}

	log.L().Info().
		Str(log.FieldBroadcastID, broadcastID).
		Str(log.FieldCallID, req.ID).
		Int("position", position).
		Msg("call requested")
	return req, position, nil
}

// AcceptCall moves a queued call on-air: the entry leaves the queue,
// joins activeCalls, and a caller audio source is registered. Only the
// session broadcaster may accept. An unknown call id is a tolerated
// no-op (domain.ErrNotFound) since accept races with timeout and
// disconnect; removal from the queue under the session lock is the
// commit point, so whichever operation gets there first wins.
func (m *Manager) AcceptCall(broadcastID, callID, broadcasterConnectionID string) (*domain.ActiveCall, error) {
	s, err := m.session(broadcastID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.broadcasterConn != broadcasterConnectionID {
		s.mu.Unlock()
		return nil, domain.ErrNotBroadcaster
	}

	i := s.queuedCallLocked(callID)
	if i < 0 {
		s.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	req := s.removeQueuedLocked(i)
	req.State = domain.CallAccepted

	source := &domain.AudioSource{
		ID:                domain.SourceID(domain.SourceTypeCaller, req.CallerConnectionID),
		Type:              domain.SourceTypeCaller,
		Label:             req.Caller.DisplayName,
		Volume:            1.0,
		OwnerConnectionID: req.CallerConnectionID,
		AddedAt:           time.Now(),
	}
	s.sources[source.ID] = source

	call := &domain.ActiveCall{
		CallRequest:   *req,
		AcceptedAt:    time.Now(),
		AudioSourceID: source.ID,
	}
	call.State = domain.CallActive
	s.activeCalls[req.CallerConnectionID] = call
	s.totalCalls++

	// A caller is no longer counted as a plain listener while on-air.
	delete(s.listeners, req.CallerConnectionID)
	s.mu.Unlock()

	m.notifier.SendToClient(call.CallerConnectionID, &domain.CallAcceptedMessage{
		Type:          domain.MsgTypeCallAccepted,
		CallID:        call.ID,
		AudioSourceID: source.ID,
	})
	m.notifier.BroadcastToRoom(broadcastID, &domain.AudioSourceEventMessage{
		Type:        domain.MsgTypeAudioSourceAdded,
		BroadcastID: broadcastID,
		Source:      *source,
	}, "")

	log.L().Info().
		Str(log.FieldBroadcastID, broadcastID).
		Str(log.FieldCallID, callID).
		Msg("call accepted")
	return call, nil
}

// EndCall takes an active call off-air. The broadcaster or the caller
// itself may end it; the caller rejoins the listener set.
func (m *Manager) EndCall(broadcastID, callID, requesterConnectionID string) error {
	s, err := m.session(broadcastID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	var call *domain.ActiveCall
	for _, c := range s.activeCalls {
		if c.ID == callID {
			call = c
			break
		}
	}
	if call == nil {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	if requesterConnectionID != s.broadcasterConn && requesterConnectionID != call.CallerConnectionID {
		s.mu.Unlock()
		return domain.ErrNotBroadcaster
	}

	delete(s.activeCalls, call.CallerConnectionID)
	call.State = domain.CallEnded
	source, hadSource := s.sources[call.AudioSourceID]
	delete(s.sources, call.AudioSourceID)

	s.listeners[call.CallerConnectionID] = struct{}{}
	if n := len(s.listeners); n > s.peakListeners {
		s.peakListeners = n
	}
	s.mu.Unlock()

	m.notifier.SendToClient(call.CallerConnectionID, &domain.CallClosedMessage{
		Type:   domain.MsgTypeCallEnded,
		CallID: call.ID,
	})
	if hadSource {
		m.notifier.BroadcastToRoom(broadcastID, &domain.AudioSourceEventMessage{
			Type:        domain.MsgTypeAudioSourceRemoved,
			BroadcastID: broadcastID,
			Source:      *source,
		}, "")
	}

	log.L().Info().
		Str(log.FieldBroadcastID, broadcastID).
		Str(log.FieldCallID, callID).
		Msg("call ended")
	return nil
}

// SweepTimeouts drops pending calls older than maxAge from every
// session, notifying each caller. Bounds queue growth from abandoned
// callers; runs periodically from the scheduler.
func (m *Manager) SweepTimeouts(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, broadcastID := range m.LiveBroadcasts() {
		s, err := m.session(broadcastID)
		if err != nil {
			continue
		}

		s.mu.Lock()
		var expired []*domain.CallRequest
		kept := s.callQueue[:0]
		for _, req := range s.callQueue {
			if req.RequestedAt.Before(cutoff) {
				req.State = domain.CallTimedOut
				expired = append(expired, req)
			} else {
				kept = append(kept, req)
			}
		}
		s.callQueue = kept
		broadcasterConn := s.broadcasterConn
		s.mu.Unlock()

		for _, req := range expired {
			removed++
			m.notifier.SendToClient(req.CallerConnectionID, &domain.CallClosedMessage{
				Type:   domain.MsgTypeCallTimeout,
				CallID: req.ID,
				Reason: "request timed out",
			})
			if broadcasterConn != "" {
				m.notifier.SendToClient(broadcasterConn, &domain.CallClosedMessage{
					Type:   domain.MsgTypeCallEnded,
					CallID: req.ID,
					Reason: "request timed out",
				})
			}
			log.L().Info().
				Str(log.FieldBroadcastID, broadcastID).
				Str(log.FieldCallID, req.ID).
				Msg("pending call timed out")
		}
	}
	return removed
}

// ReleaseCaller frees any queue or active-call slot that a departing
// connection holds and tells the broadcaster, so a caller disconnect
// never leaves a ghost entry.
func (m *Manager) ReleaseCaller(broadcastID, connectionID string) {
	s, err := m.session(broadcastID)
	if err != nil {
		return
	}

	s.mu.Lock()
	var released *domain.CallRequest
	for i, req := range s.callQueue {
		if req.CallerConnectionID == connectionID {
			released = s.removeQueuedLocked(i)
			released.State = domain.CallEnded
			break
		}
	}
	var endedCall *domain.ActiveCall
	var source *domain.AudioSource
	if call, ok := s.activeCalls[connectionID]; ok {
		delete(s.activeCalls, connectionID)
		call.State = domain.CallEnded
		endedCall = call
		if src, ok := s.sources[call.AudioSourceID]; ok {
			source = src
			delete(s.sources, call.AudioSourceID)
		}
	}
	broadcasterConn := s.broadcasterConn
	s.mu.Unlock()

	if released != nil && broadcasterConn != "" {
		m.notifier.SendToClient(broadcasterConn, &domain.CallClosedMessage{
			Type:   domain.MsgTypeCallEnded,
			CallID: released.ID,
			Reason: "caller disconnected",
		})
	}
	if endedCall != nil {
		if broadcasterConn != "" {
			m.notifier.SendToClient(broadcasterConn, &domain.CallClosedMessage{
				Type:   domain.MsgTypeCallEnded,
				CallID: endedCall.ID,
				Reason: "caller disconnected",
			})
		}
		if source != nil {
			m.notifier.BroadcastToRoom(broadcastID, &domain.AudioSourceEventMessage{
				Type:        domain.MsgTypeAudioSourceRemoved,
				BroadcastID: broadcastID,
				Source:      *source,
			}, "")
		}
	}
}
