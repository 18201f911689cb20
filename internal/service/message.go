package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/relaykit/baton/internal/domain"
	"github.com/relaykit/baton/internal/domain/event"
	"github.com/relaykit/baton/internal/domain/message"
	"github.com/relaykit/baton/internal/events"
	"github.com/relaykit/baton/internal/port/kv"
	"github.com/relaykit/baton/internal/port/pubsub"
	"github.com/relaykit/baton/internal/store"
)

const defaultMessageTTL = time.Hour

// MessageService handles asynchronous point-to-point agent messages.
// Messages are immutable once sent; delivery is a stored record plus a
// best-effort notification, never a blocking exchange.
type MessageService struct {
	store    *store.Store
	notifier *events.Notifier
	ttl      time.Duration
}

// NewMessageService creates a new MessageService. ttl bounds how long
// message records are retained; non-positive values use the default.
func NewMessageService(st *store.Store, notifier *events.Notifier, ttl time.Duration) *MessageService {
	if ttl <= 0 {
		ttl = defaultMessageTTL
	}
	return &MessageService{store: st, notifier: notifier, ttl: ttl}
}

// Send stores a message for the recipient and notifies it. The returned
// record carries the assigned id and timestamp.
func (s *MessageService) Send(ctx context.Context, req *message.CreateRequest) (*message.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = message.PriorityNormal
	}

	msg := &message.Message{
		ID:        domain.NewID(),
		From:      req.From,
		To:        req.To,
		Content:   req.Content,
		Priority:  priority,
		Timestamp: domain.NowMillis(),
		Status:    message.StatusPending,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	s.store.Put(ctx, kv.MessageKey(msg.ID), data, s.ttl)

	payload, err := json.Marshal(pubsub.NewMessagePayload{
		Type:      pubsub.TypeNewMessage,
		Agent:     msg.To,
		MessageID: msg.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	s.store.Publish(ctx, pubsub.MessageChannel(msg.To), payload)

	s.notifier.Emit(event.Event{Type: event.TypeMessageSent, Payload: msg, At: msg.Timestamp})

	slog.Debug("message sent", "message_id", msg.ID, "from", msg.From, "to", msg.To, "priority", priority)
	return msg, nil
}

// Get returns a message by id, checking local state first and the shared
// store on a miss.
func (s *MessageService) Get(ctx context.Context, id string) (*message.Message, error) {
	data, ok := s.store.Get(ctx, kv.MessageKey(id))
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}

	var msg message.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", id, err)
	}
	return &msg, nil
}

// PendingCount reports how many message records this process holds.
func (s *MessageService) PendingCount() int {
	return s.store.CountPrefix(kv.MessageKeyPrefix)
}
