package broadcast

import (
	"time"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

// AddSource attaches a named audio input to the session's mix. The
// source id derives from (type, owner), so re-adding the same logical
// source — a caller reconnecting, say — replaces the old entry instead
// of duplicating it. Every client mixer hears about the change.
func (m *Manager) AddSource(broadcastID, ownerConnectionID, sourceType, label string, volume float64, muted bool, priority int) (*domain.AudioSource, error) {
	s, err := m.session(broadcastID)
	if err != nil {
		return nil, err
	}

	source := &domain.AudioSource{
		ID:                domain.SourceID(sourceType, ownerConnectionID),
		Type:              sourceType,
		Label:             label,
		Volume:            volume,
		Muted:             muted,
		Priority:          priority,
		OwnerConnectionID: ownerConnectionID,
		AddedAt:           time.Now(),
	}

	s.mu.Lock()
	s.sources[source.ID] = source
	s.mu.Unlock()

	m.notifier.BroadcastToRoom(broadcastID, &domain.AudioSourceEventMessage{
		Type:        domain.MsgTypeAudioSourceAdded,
		BroadcastID: broadcastID,
		Source:      *source,
	}, "")

	log.L().Info().
		Str(log.FieldBroadcastID, broadcastID).
		Str(log.FieldSourceID, source.ID).
		Msg("audio source added")
	return source, nil
}

// UpdateSource changes the mix parameters of an existing source.
func (m *Manager) UpdateSource(broadcastID, sourceID string, volume float64, muted bool, priority int) (*domain.AudioSource, error) {
	s, err := m.session(broadcastID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	source, ok := s.sources[sourceID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	source.Volume = volume
	source.Muted = muted
	source.Priority = priority
	snapshot := *source
	s.mu.Unlock()

	m.notifier.BroadcastToRoom(broadcastID, &domain.AudioSourceEventMessage{
		Type:        domain.MsgTypeAudioSourceUpdated,
		BroadcastID: broadcastID,
		Source:      snapshot,
	}, "")
	return &snapshot, nil
}

// RemoveSource detaches a source from the mix.
func (m *Manager) RemoveSource(broadcastID, sourceID string) error {
	s, err := m.session(broadcastID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	source, ok := s.sources[sourceID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	delete(s.sources, sourceID)
	snapshot := *source
	s.mu.Unlock()

	m.notifier.BroadcastToRoom(broadcastID, &domain.AudioSourceEventMessage{
		Type:        domain.MsgTypeAudioSourceRemoved,
		BroadcastID: broadcastID,
		Source:      snapshot,
	}, "")

	log.L().Info().
		Str(log.FieldBroadcastID, broadcastID).
		Str(log.FieldSourceID, sourceID).
		Msg("audio source removed")
	return nil
}

// SourceOwner returns the owning connection id of a source.
func (m *Manager) SourceOwner(broadcastID, sourceID string) (string, error) {
	s, err := m.session(broadcastID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	source, ok := s.sources[sourceID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return source.OwnerConnectionID, nil
}
