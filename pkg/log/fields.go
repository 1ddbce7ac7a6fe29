package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Live coordination
	FieldBroadcastID  = "broadcast_id"
	FieldConnectionID = "connection_id"
	FieldCallID       = "call_id"
	FieldMessageID    = "message_id"
	FieldSourceID     = "source_id"
	FieldRole         = "role"
	FieldReason       = "reason"

	// Service
	FieldService = "service"
)
