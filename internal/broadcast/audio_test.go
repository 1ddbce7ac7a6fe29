package broadcast

import (
	"testing"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
)

func TestAddSourceReplacesSameLogicalSource(t *testing.T) {
	m, _ := liveSession(t)

	first, err := m.AddSource("b1", "conn-host", domain.SourceTypeMusic, "Intro music", 0.8, false, 1)
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	second, _ := m.AddSource("b1", "conn-host", domain.SourceTypeMusic, "Outro music", 0.5, false, 1)

	if first.ID != second.ID {
		t.Errorf("ids differ (%q vs %q); same (type, owner) must map to one source", first.ID, second.ID)
	}

	stats, _ := m.Stats("b1")
	if stats.AudioSourceCount != 1 {
		t.Errorf("AudioSourceCount = %d, want 1", stats.AudioSourceCount)
	}
}

func TestUpdateSourceFansOutNewParameters(t *testing.T) {
	m, n := liveSession(t)
	src, _ := m.AddSource("b1", "conn-host", domain.SourceTypeHostMic, "Mic", 1.0, false, 0)

	updated, err := m.UpdateSource("b1", src.ID, 0.3, true, 2)
	if err != nil {
		t.Fatalf("UpdateSource: %v", err)
	}
	if updated.Volume != 0.3 || !updated.Muted || updated.Priority != 2 {
		t.Errorf("updated = %+v, want volume 0.3, muted, priority 2", updated)
	}

	var evt *domain.AudioSourceEventMessage
	for _, msg := range n.roomMessages("b1") {
		if e, ok := msg.(*domain.AudioSourceEventMessage); ok && e.Type == domain.MsgTypeAudioSourceUpdated {
			evt = e
		}
	}
	if evt == nil {
		t.Fatal("room did not receive audio-source-updated")
	}
	if evt.Source.Volume != 0.3 {
		t.Errorf("fanned-out volume = %v, want 0.3", evt.Source.Volume)
	}
}

func TestUpdateSourceUnknownID(t *testing.T) {
	m, _ := liveSession(t)
	if _, err := m.UpdateSource("b1", "nope", 1.0, false, 0); err != domain.ErrNotFound {
		t.Errorf("UpdateSource(unknown) = %v, want ErrNotFound", err)
	}
}

func TestRemoveSource(t *testing.T) {
	m, _ := liveSession(t)
	src, _ := m.AddSource("b1", "conn-host", domain.SourceTypeCoHost, "Co-host", 1.0, false, 0)

	if err := m.RemoveSource("b1", src.ID); err != nil {
		t.Fatalf("RemoveSource: %v", err)
	}
	if err := m.RemoveSource("b1", src.ID); err != domain.ErrNotFound {
		t.Errorf("second remove = %v, want ErrNotFound", err)
	}
}

func TestSourceOwner(t *testing.T) {
	m, _ := liveSession(t)
	src, _ := m.AddSource("b1", "conn-host", domain.SourceTypeHostMic, "Mic", 1.0, false, 0)

	owner, err := m.SourceOwner("b1", src.ID)
	if err != nil {
		t.Fatalf("SourceOwner: %v", err)
	}
	if owner != "conn-host" {
		t.Errorf("owner = %q, want conn-host", owner)
	}
}
