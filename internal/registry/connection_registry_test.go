package registry

import (
	"testing"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
)

func TestRegisterIdempotent(t *testing.T) {
	r := NewConnectionRegistry()

	first := r.Register("c1")
	second := r.Register("c1")
	if first != second {
		t.Error("re-registering the same id must return the existing record")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestGetUnknown(t *testing.T) {
	r := NewConnectionRegistry()
	if _, err := r.Get("ghost"); err != domain.ErrNotFound {
		t.Errorf("Get(ghost) = %v, want ErrNotFound", err)
	}
}

func TestUpdateAndClearRole(t *testing.T) {
	r := NewConnectionRegistry()
	r.Register("c1")

	if err := r.UpdateRole("c1", "b1", domain.RoleListener); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	conn, _ := r.Get("c1")
	broadcastID, role := conn.CurrentBroadcast()
	if broadcastID != "b1" || role != domain.RoleListener {
		t.Errorf("broadcast=%q role=%q, want b1/listener", broadcastID, role)
	}

	if err := r.ClearRole("c1"); err != nil {
		t.Fatalf("ClearRole: %v", err)
	}
	broadcastID, _ = conn.CurrentBroadcast()
	if broadcastID != "" {
		t.Errorf("broadcast after clear = %q, want empty", broadcastID)
	}
}

func TestRemoveReturnsRecord(t *testing.T) {
	r := NewConnectionRegistry()
	r.Register("c1")
	r.UpdateRole("c1", "b1", domain.RoleBroadcaster)

	conn, err := r.Remove("c1")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	// The removed record still carries its state for disconnect cleanup.
	broadcastID, role := conn.CurrentBroadcast()
	if broadcastID != "b1" || role != domain.RoleBroadcaster {
		t.Errorf("removed record lost its role: %q/%q", broadcastID, role)
	}

	if _, err := r.Remove("c1"); err != domain.ErrNotFound {
		t.Errorf("second Remove = %v, want ErrNotFound", err)
	}
	if r.Count() != 0 {
		t.Errorf("Count = %d, want 0", r.Count())
	}
}
