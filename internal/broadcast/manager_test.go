package broadcast

import (
	"sync"
	"testing"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
)

type sentMessage struct {
	target  string // connection id, or "" for a room fan-out
	room    string
	message interface{}
}

// fakeNotifier records every fan-out for assertions.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeNotifier) BroadcastToRoom(broadcastID string, message interface{}, exclude string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{room: broadcastID, message: message})
	return nil
}

func (f *fakeNotifier) SendToClient(connectionID string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{target: connectionID, message: message})
	return nil
}

func (f *fakeNotifier) messagesTo(connectionID string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []interface{}
	for _, m := range f.sent {
		if m.target == connectionID {
			out = append(out, m.message)
		}
	}
	return out
}

func (f *fakeNotifier) roomMessages(broadcastID string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []interface{}
	for _, m := range f.sent {
		if m.room == broadcastID {
			out = append(out, m.message)
		}
	}
	return out
}

func newTestManager() (*Manager, *fakeNotifier) {
	n := &fakeNotifier{}
	return NewManager(n), n
}

func host() domain.BroadcasterInfo {
	return domain.BroadcasterInfo{UserID: "host-1", Username: "host", DisplayName: "The Host"}
}

func TestAttachBroadcasterClaimsSession(t *testing.T) {
	m, _ := newTestManager()
	m.EnsureSession("b1", host())

	if err := m.AttachBroadcaster("b1", "conn-host"); err != nil {
		t.Fatalf("AttachBroadcaster: %v", err)
	}
	if !m.IsBroadcaster("b1", "conn-host") {
		t.Error("expected conn-host to own the session")
	}

	// Re-attach by the same connection is a no-op.
	if err := m.AttachBroadcaster("b1", "conn-host"); err != nil {
		t.Errorf("re-attach by owner: %v", err)
	}
}

func TestAttachBroadcasterRejectsSecondHost(t *testing.T) {
	m, _ := newTestManager()
	m.EnsureSession("b1", host())
	if err := m.AttachBroadcaster("b1", "conn-a"); err != nil {
		t.Fatalf("first attach: %v", err)
	}

	err := m.AttachBroadcaster("b1", "conn-b")
	if err != domain.ErrAlreadyLive {
		t.Fatalf("second attach: got %v, want ErrAlreadyLive", err)
	}
	if !m.IsBroadcaster("b1", "conn-a") {
		t.Error("original broadcaster must be unaffected by the rejected attach")
	}
}

func TestPeakListenersNeverDecreases(t *testing.T) {
	m, _ := newTestManager()
	m.EnsureSession("b1", host())
	m.AttachBroadcaster("b1", "conn-host")

	for _, id := range []string{"l1", "l2", "l3"} {
		if err := m.AddListener("b1", id); err != nil {
			t.Fatalf("AddListener(%s): %v", id, err)
		}
	}
	m.RemoveListener("b1", "l1")
	m.RemoveListener("b1", "l2")

	stats, err := m.Stats("b1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ListenerCount != 1 {
		t.Errorf("ListenerCount = %d, want 1", stats.ListenerCount)
	}
	if stats.PeakListeners != 3 {
		t.Errorf("PeakListeners = %d, want 3", stats.PeakListeners)
	}

	m.AddListener("b1", "l4")
	stats, _ = m.Stats("b1")
	if stats.PeakListeners != 3 {
		t.Errorf("PeakListeners after rejoin = %d, want 3", stats.PeakListeners)
	}
}

func TestAddListenerAfterEndSession(t *testing.T) {
	m, _ := newTestManager()
	m.EnsureSession("b1", host())
	m.AttachBroadcaster("b1", "conn-host")
	m.EndSession("b1", "done")

	// A join racing the teardown must surface the missing session, not
	// silently record a listener nobody tracks.
	if err := m.AddListener("b1", "l1"); err != domain.ErrNotFound {
		t.Errorf("AddListener after EndSession = %v, want ErrNotFound", err)
	}
}

func TestRemoveListenerUnknownID(t *testing.T) {
	m, _ := newTestManager()
	m.EnsureSession("b1", host())

	if err := m.RemoveListener("b1", "ghost"); err != domain.ErrNotFound {
		t.Errorf("RemoveListener(ghost) = %v, want ErrNotFound", err)
	}
}

func TestListenerCountFanOut(t *testing.T) {
	m, n := newTestManager()
	m.EnsureSession("b1", host())
	m.AddListener("b1", "l1")

	msgs := n.roomMessages("b1")
	if len(msgs) == 0 {
		t.Fatal("expected a listener-count fan-out")
	}
	last, ok := msgs[len(msgs)-1].(*domain.ListenerCountMessage)
	if !ok {
		t.Fatalf("last message is %T, want *ListenerCountMessage", msgs[len(msgs)-1])
	}
	if last.Count != 1 || last.Peak != 1 {
		t.Errorf("count=%d peak=%d, want 1/1", last.Count, last.Peak)
	}
}

func TestEndSessionNotifiesEveryone(t *testing.T) {
	m, n := newTestManager()
	m.EnsureSession("b1", host())
	m.AttachBroadcaster("b1", "conn-host")
	m.AddListener("b1", "l1")
	m.AddListener("b1", "caller-q")
	m.AddListener("b1", "caller-a")

	queued, _, err := m.RequestCall("b1", "caller-q", domain.CallerInfo{UserID: "u-q"})
	if err != nil {
		t.Fatalf("RequestCall: %v", err)
	}
	accepted, _, _ := m.RequestCall("b1", "caller-a", domain.CallerInfo{UserID: "u-a"})
	if _, err := m.AcceptCall("b1", accepted.ID, "conn-host"); err != nil {
		t.Fatalf("AcceptCall: %v", err)
	}

	if err := m.EndSession("b1", "test over"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	// The broadcast id is released for reuse.
	if _, err := m.Stats("b1"); err != domain.ErrNotFound {
		t.Errorf("Stats after end = %v, want ErrNotFound", err)
	}

	// The queued caller got an individual call-ended notice.
	foundQueued := false
	for _, msg := range n.messagesTo("caller-q") {
		if closed, ok := msg.(*domain.CallClosedMessage); ok && closed.CallID == queued.ID {
			foundQueued = true
		}
	}
	if !foundQueued {
		t.Error("queued caller was not notified of the session ending")
	}

	// The room got a broadcast-ended event.
	foundEnded := false
	for _, msg := range n.roomMessages("b1") {
		if _, ok := msg.(*domain.BroadcastEndedMessage); ok {
			foundEnded = true
		}
	}
	if !foundEnded {
		t.Error("room did not receive broadcast-ended")
	}
}

func TestEndSessionOnlyAffectsOneBroadcast(t *testing.T) {
	m, _ := newTestManager()
	m.EnsureSession("b1", host())
	m.AttachBroadcaster("b1", "conn-a")
	m.EnsureSession("b2", domain.BroadcasterInfo{UserID: "host-2"})
	m.AttachBroadcaster("b2", "conn-b")
	m.AddListener("b2", "l1")

	if err := m.EndSession("b1", "done"); err != nil {
		t.Fatalf("EndSession(b1): %v", err)
	}

	stats, err := m.Stats("b2")
	if err != nil {
		t.Fatalf("b2 must survive b1 ending: %v", err)
	}
	if !stats.IsLive || stats.ListenerCount != 1 {
		t.Errorf("b2 stats = live=%v listeners=%d, want live with 1 listener", stats.IsLive, stats.ListenerCount)
	}
}

func TestBroadcasterDisconnectEndsOnlyOwnSession(t *testing.T) {
	m, _ := newTestManager()
	m.EnsureSession("b1", host())
	m.AttachBroadcaster("b1", "conn-a")
	m.EnsureSession("b2", domain.BroadcasterInfo{UserID: "host-2"})
	m.AttachBroadcaster("b2", "conn-b")

	conn := domain.NewConnection("conn-a")
	conn.SetRole("b1", domain.RoleBroadcaster)
	m.HandleDisconnect(conn)

	if _, err := m.Stats("b1"); err != domain.ErrNotFound {
		t.Error("b1 should have ended on broadcaster disconnect")
	}
	if _, err := m.Stats("b2"); err != nil {
		t.Errorf("b2 must be unaffected: %v", err)
	}
}

func TestListenerDisconnectUpdatesPresence(t *testing.T) {
	m, _ := newTestManager()
	m.EnsureSession("b1", host())
	m.AddListener("b1", "conn-l")

	conn := domain.NewConnection("conn-l")
	conn.SetRole("b1", domain.RoleListener)
	m.HandleDisconnect(conn)

	stats, _ := m.Stats("b1")
	if stats.ListenerCount != 0 {
		t.Errorf("ListenerCount = %d, want 0", stats.ListenerCount)
	}
}

func TestEnsureSessionIdempotent(t *testing.T) {
	m, _ := newTestManager()
	s1 := m.EnsureSession("b1", host())
	m.AttachBroadcaster("b1", "conn-a")
	m.AddListener("b1", "l1")

	s2 := m.EnsureSession("b1", domain.BroadcasterInfo{UserID: "other"})
	if s1 != s2 {
		t.Fatal("EnsureSession must return the existing session")
	}
	stats, _ := m.Stats("b1")
	if stats.ListenerCount != 1 {
		t.Error("existing session was reset by EnsureSession")
	}
}
