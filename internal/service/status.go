package service

import (
	"github.com/relaykit/baton/internal/store"
)

// Status is a point-in-time snapshot of coordinator health.
type Status struct {
	ActiveHandoffs  int  `json:"active_handoffs"`
	PendingMessages int  `json:"pending_messages"`
	StoreConnected  bool `json:"store_connected"`
}

// StatusService aggregates coordinator state for the status surfaces.
type StatusService struct {
	messages *MessageService
	handoffs *HandoffService
	store    *store.Store
}

// NewStatusService creates a new StatusService.
func NewStatusService(messages *MessageService, handoffs *HandoffService, st *store.Store) *StatusService {
	return &StatusService{messages: messages, handoffs: handoffs, store: st}
}

// Snapshot returns current counts and shared-store connectivity.
func (s *StatusService) Snapshot() Status {
	return Status{
		ActiveHandoffs:  s.handoffs.ActiveCount(),
		PendingMessages: s.messages.PendingCount(),
		StoreConnected:  s.store.Connected(),
	}
}
