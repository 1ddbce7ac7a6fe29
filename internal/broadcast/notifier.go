package broadcast

// Notifier fans out session events to subscribed connections. The
// WebSocket hub implements it; tests substitute a recorder.
type Notifier interface {
	BroadcastToRoom(broadcastID string, message interface{}, exclude string) error
	SendToClient(connectionID string, message interface{}) error
}
