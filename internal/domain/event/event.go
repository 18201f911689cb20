// Package event defines the coordinator's lifecycle event types.
package event

// Type identifies the kind of lifecycle event.
type Type string

const (
	TypeMessageSent      Type = "message:sent"
	TypeHandoffInitiated Type = "handoff:initiated"
	TypeHandoffCompleted Type = "handoff:completed"
	TypeHandoffTimeout   Type = "handoff:timeout"
)

// Valid reports whether t is one of the emitted event types.
func (t Type) Valid() bool {
	switch t {
	case TypeMessageSent, TypeHandoffInitiated, TypeHandoffCompleted, TypeHandoffTimeout:
		return true
	}
	return false
}

// Event pairs a lifecycle event with the record that produced it: the
// Message for message:sent, the Handoff snapshot for the handoff events.
type Event struct {
	Type    Type  `json:"type"`
	Payload any   `json:"payload"`
	At      int64 `json:"ts"`
}
