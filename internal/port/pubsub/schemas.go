package pubsub

// Notification type discriminators carried in the "type" field.
const (
	TypeNewMessage     = "new_message"
	TypeHandoffRequest = "handoff_request"
)

// NewMessagePayload is the schema for agent:<id>:messages notifications.
type NewMessagePayload struct {
	Type      string `json:"type"`
	Agent     string `json:"agent"`
	MessageID string `json:"messageId"`
}

// HandoffRequestPayload is the schema for agent:<id>:handoffs notifications.
type HandoffRequestPayload struct {
	Type      string `json:"type"`
	HandoffID string `json:"handoffId"`
	Agent     string `json:"agent"`
}
