package types

// ClientMessage is sent by WebSocket clients.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Topic  string `json:"topic"`  // "state", "outcomes" or "*"
}

// ServerMessage is sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"` // "state", "message", "outcome", "subscribed", "unsubscribed", "error", "info"
	Payload interface{} `json:"payload"`
}
