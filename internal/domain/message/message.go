// Package message defines the Message domain entity.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/relaykit/baton/internal/domain"
)

// Priority indicates the urgency a sender attached to a message.
// It is informational only and does not affect ordering or delivery.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// Status represents the lifecycle state of a message. Messages never leave
// pending; read/acknowledge semantics belong to the consuming application.
type Status string

// StatusPending is the only message status.
const StatusPending Status = "pending"

// Message is an immutable point-to-point message between two named agents.
type Message struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Content   json.RawMessage `json:"content"`
	Priority  Priority        `json:"priority"`
	Timestamp int64           `json:"timestamp"`
	Status    Status          `json:"status"`
}

// CreateRequest holds the fields needed to send a new message.
// An empty Priority defaults to normal.
type CreateRequest struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Content  json.RawMessage `json:"content"`
	Priority Priority        `json:"priority,omitempty"`
}

// Validate checks that a CreateRequest has all required fields.
// Failures wrap domain.ErrValidation.
func (r *CreateRequest) Validate() error {
	if r.From == "" {
		return fmt.Errorf("%w: from is required", domain.ErrValidation)
	}
	if r.To == "" {
		return fmt.Errorf("%w: to is required", domain.ErrValidation)
	}
	if len(r.Content) == 0 {
		return fmt.Errorf("%w: content is required", domain.ErrValidation)
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return fmt.Errorf("%w: priority must be one of low, normal, high", domain.ErrValidation)
	}
	return nil
}
