package broadcast

import (
	"testing"
	"time"

	"github.com/elviDev/ls-internet-radio-sub002/internal/domain"
)

func liveSession(t *testing.T) (*Manager, *fakeNotifier) {
	t.Helper()
	m, n := newTestManager()
	m.EnsureSession("b1", host())
	if err := m.AttachBroadcaster("b1", "conn-host"); err != nil {
		t.Fatalf("AttachBroadcaster: %v", err)
	}
	return m, n
}

func TestRequestCallQueuesFIFO(t *testing.T) {
	m, n := liveSession(t)

	first, pos1, err := m.RequestCall("b1", "c1", domain.CallerInfo{UserID: "u1"})
	if err != nil {
		t.Fatalf("RequestCall: %v", err)
	}
	_, pos2, _ := m.RequestCall("b1", "c2", domain.CallerInfo{UserID: "u2"})

	if pos1 != 1 || pos2 != 2 {
		t.Errorf("positions = %d, %d; want 1, 2", pos1, pos2)
	}
	if first.State != domain.CallPending {
		t.Errorf("state = %q, want pending", first.State)
	}

	// The broadcaster hears about each request.
	incoming := 0
	for _, msg := range n.messagesTo("conn-host") {
		if _, ok := msg.(*domain.IncomingCallMessage); ok {
			incoming++
		}
	}
	if incoming != 2 {
		t.Errorf("broadcaster received %d incoming-call events, want 2", incoming)
	}
}

func TestRequestCallCoalescesRepeat(t *testing.T) {
	m, _ := liveSession(t)

	first, _, _ := m.RequestCall("b1", "c1", domain.CallerInfo{UserID: "u1"})
	again, pos, err := m.RequestCall("b1", "c1", domain.CallerInfo{UserID: "u1"})
	if err != nil {
		t.Fatalf("repeat RequestCall: %v", err)
	}
	if again.ID != first.ID {
		t.Error("repeat request must return the existing entry, not a new one")
	}
	if pos != 1 {
		t.Errorf("position = %d, want 1", pos)
	}

	stats, _ := m.Stats("b1")
	if stats.QueuedCalls != 1 {
		t.Errorf("QueuedCalls = %d, want 1", stats.QueuedCalls)
	}
}

func TestAcceptCallMovesQueueToActive(t *testing.T) {
	m, n := liveSession(t)
	m.AddListener("b1", "c1")

	req, _, _ := m.RequestCall("b1", "c1", domain.CallerInfo{UserID: "u1", DisplayName: "Caller One"})
	call, err := m.AcceptCall("b1", req.ID, "conn-host")
	if err != nil {
		t.Fatalf("AcceptCall: %v", err)
	}
	if call.State != domain.CallActive {
		t.Errorf("state = %q, want active", call.State)
	}

	stats, _ := m.Stats("b1")
	if stats.QueuedCalls != 0 {
		t.Errorf("QueuedCalls = %d, want 0", stats.QueuedCalls)
	}
	if stats.ActiveCalls != 1 {
		t.Errorf("ActiveCalls = %d, want 1", stats.ActiveCalls)
	}
	if stats.TotalCalls != 1 {
		t.Errorf("TotalCalls = %d, want 1", stats.TotalCalls)
	}
	// The caller is on-air, not a plain listener.
	if stats.ListenerCount != 0 {
		t.Errorf("ListenerCount = %d, want 0", stats.ListenerCount)
	}
	// A caller audio source was registered.
	if stats.AudioSourceCount != 1 {
		t.Errorf("AudioSourceCount = %d, want 1", stats.AudioSourceCount)
	}

	// Caller got call-accepted with its source id.
	var acceptedMsg *domain.CallAcceptedMessage
	for _, msg := range n.messagesTo("c1") {
		if a, ok := msg.(*domain.CallAcceptedMessage); ok {
			acceptedMsg = a
		}
	}
	if acceptedMsg == nil {
		t.Fatal("caller did not receive call-accepted")
	}
	if acceptedMsg.AudioSourceID != call.AudioSourceID {
		t.Errorf("source id mismatch: %q vs %q", acceptedMsg.AudioSourceID, call.AudioSourceID)
	}
}

func TestOnAirCallerNeverRejoinsListeners(t *testing.T) {
	m, _ := liveSession(t)
	m.AddListener("b1", "c1")

	req, _, _ := m.RequestCall("b1", "c1", domain.CallerInfo{UserID: "u1"})
	if _, err := m.AcceptCall("b1", req.ID, "conn-host"); err != nil {
		t.Fatalf("AcceptCall: %v", err)
	}

	// A duplicate join from the on-air caller must not land the
	// connection in both sets.
	if err := m.AddListener("b1", "c1"); err != nil {
		t.Fatalf("AddListener: %v", err)
	}

	stats, _ := m.Stats("b1")
	if stats.ListenerCount != 0 {
		t.Errorf("ListenerCount = %d, want 0", stats.ListenerCount)
	}
	if stats.ActiveCalls != 1 {
		t.Errorf("ActiveCalls = %d, want 1", stats.ActiveCalls)
	}
}

func TestAcceptCallBroadcasterOnly(t *testing.T) {
	m, _ := liveSession(t)
	req, _, _ := m.RequestCall("b1", "c1", domain.CallerInfo{UserID: "u1"})

	if _, err := m.AcceptCall("b1", req.ID, "c1"); err != domain.ErrNotBroadcaster {
		t.Errorf("AcceptCall by non-broadcaster = %v, want ErrNotBroadcaster", err)
	}
}

func TestAcceptCallUnknownIDTolerated(t *testing.T) {
	m, _ := liveSession(t)

	if _, err := m.AcceptCall("b1", "no-such-call", "conn-host"); err != domain.ErrNotFound {
		t.Errorf("AcceptCall(unknown) = %v, want ErrNotFound", err)
	}
}

func TestAcceptCallIsExactlyOnce(t *testing.T) {
	m, _ := liveSession(t)
	req, _, _ := m.RequestCall("b1", "c1", domain.CallerInfo{UserID: "u1"})

	if _, err := m.AcceptCall("b1", req.ID, "conn-host"); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	// Accept racing a duplicate accept: the second loses at the queue.
	if _, err := m.AcceptCall("b1", req.ID, "conn-host"); err != domain.ErrNotFound {
		t.Errorf("second accept = %v, want ErrNotFound", err)
	}

	stats, _ := m.Stats("b1")
	if stats.ActiveCalls != 1 || stats.TotalCalls != 1 {
		t.Errorf("active=%d total=%d, want 1/1", stats.ActiveCalls, stats.TotalCalls)
	}
}

func TestEndCallReturnsCallerToListeners(t *testing.T) {
	m, n := liveSession(t)
	m.AddListener("b1", "c1")
	req, _, _ := m.RequestCall("b1", "c1", domain.CallerInfo{UserID: "u1"})
	call, _ := m.AcceptCall("b1", req.ID, "conn-host")

	if err := m.EndCall("b1", call.ID, "conn-host"); err != nil {
		t.Fatalf("EndCall: %v", err)
	}

	stats, _ := m.Stats("b1")
	if stats.ActiveCalls != 0 {
		t.Errorf("ActiveCalls = %d, want 0", stats.ActiveCalls)
	}
	if stats.ListenerCount != 1 {
		t.Errorf("ListenerCount = %d, want 1 (caller back as listener)", stats.ListenerCount)
	}
	if stats.AudioSourceCount != 0 {
		t.Errorf("AudioSourceCount = %d, want 0", stats.AudioSourceCount)
	}

	// The room saw the source removal.
	removed := false
	for _, msg := range n.roomMessages("b1") {
		if evt, ok := msg.(*domain.AudioSourceEventMessage); ok && evt.Type == domain.MsgTypeAudioSourceRemoved {
			removed = true
		}
	}
	if !removed {
		t.Error("room did not receive audio-source-removed")
	}
}

func TestEndCallByCaller(t *testing.T) {
	m, _ := liveSession(t)
	req, _, _ := m.RequestCall("b1", "c1", domain.CallerInfo{UserID: "u1"})
	call, _ := m.AcceptCall("b1", req.ID, "conn-host")

	if err := m.EndCall("b1", call.ID, "c1"); err != nil {
		t.Errorf("caller ending own call: %v", err)
	}
}

func TestEndCallRejectsStranger(t *testing.T) {
	m, _ := liveSession(t)
	req, _, _ := m.RequestCall("b1", "c1", domain.CallerInfo{UserID: "u1"})
	call, _ := m.AcceptCall("b1", req.ID, "conn-host")

	if err := m.EndCall("b1", call.ID, "someone-else"); err != domain.ErrNotBroadcaster {
		t.Errorf("EndCall by stranger = %v, want ErrNotBroadcaster", err)
	}
}

func TestSweepTimeoutsExpiresOnlyOldCalls(t *testing.T) {
	m, n := liveSession(t)

	old, _, _ := m.RequestCall("b1", "c-old", domain.CallerInfo{UserID: "u-old"})
	fresh, _, _ := m.RequestCall("b1", "c-new", domain.CallerInfo{UserID: "u-new"})

	// Age the first request past the threshold.
	old.RequestedAt = time.Now().Add(-10 * time.Minute)

	if removed := m.SweepTimeouts(5 * time.Minute); removed != 1 {
		t.Fatalf("SweepTimeouts removed %d, want 1", removed)
	}

	stats, _ := m.Stats("b1")
	if stats.QueuedCalls != 1 {
		t.Errorf("QueuedCalls = %d, want 1", stats.QueuedCalls)
	}
	// A timed-out call never reaches activeCalls.
	if stats.ActiveCalls != 0 {
		t.Errorf("ActiveCalls = %d, want 0", stats.ActiveCalls)
	}

	// The expired caller got a timeout notice with a reason.
	var timeout *domain.CallClosedMessage
	for _, msg := range n.messagesTo("c-old") {
		if closed, ok := msg.(*domain.CallClosedMessage); ok && closed.Type == domain.MsgTypeCallTimeout {
			timeout = closed
		}
	}
	if timeout == nil {
		t.Fatal("expired caller did not receive call-timeout")
	}
	if timeout.CallID != old.ID {
		t.Errorf("timeout for call %q, want %q", timeout.CallID, old.ID)
	}

	// Accepting the expired call now is a tolerated no-op.
	if _, err := m.AcceptCall("b1", old.ID, "conn-host"); err != domain.ErrNotFound {
		t.Errorf("accept after timeout = %v, want ErrNotFound", err)
	}
	// The fresh call is still acceptable.
	if _, err := m.AcceptCall("b1", fresh.ID, "conn-host"); err != nil {
		t.Errorf("accept of fresh call: %v", err)
	}
}

func TestReleaseCallerFreesQueueSlot(t *testing.T) {
	m, n := liveSession(t)
	req, _, _ := m.RequestCall("b1", "c1", domain.CallerInfo{UserID: "u1"})

	m.ReleaseCaller("b1", "c1")

	stats, _ := m.Stats("b1")
	if stats.QueuedCalls != 0 {
		t.Errorf("QueuedCalls = %d, want 0", stats.QueuedCalls)
	}

	notified := false
	for _, msg := range n.messagesTo("conn-host") {
		if closed, ok := msg.(*domain.CallClosedMessage); ok && closed.CallID == req.ID {
			notified = true
		}
	}
	if !notified {
		t.Error("broadcaster was not told the caller left the queue")
	}
}

func TestReleaseCallerFreesActiveSlot(t *testing.T) {
	m, n := liveSession(t)
	req, _, _ := m.RequestCall("b1", "c1", domain.CallerInfo{UserID: "u1"})
	call, _ := m.AcceptCall("b1", req.ID, "conn-host")

	m.ReleaseCaller("b1", "c1")

	stats, _ := m.Stats("b1")
	if stats.ActiveCalls != 0 {
		t.Errorf("ActiveCalls = %d, want 0", stats.ActiveCalls)
	}
	if stats.AudioSourceCount != 0 {
		t.Errorf("AudioSourceCount = %d, want 0 after caller disconnect", stats.AudioSourceCount)
	}

	sourceRemoved := false
	for _, msg := range n.roomMessages("b1") {
		if evt, ok := msg.(*domain.AudioSourceEventMessage); ok &&
			evt.Type == domain.MsgTypeAudioSourceRemoved && evt.Source.ID == call.AudioSourceID {
			sourceRemoved = true
		}
	}
	if !sourceRemoved {
		t.Error("room did not see the caller's source removed")
	}
}
