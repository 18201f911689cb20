package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/relaykit/baton/internal/config"
	"github.com/relaykit/baton/internal/domain"
	"github.com/relaykit/baton/internal/domain/event"
	"github.com/relaykit/baton/internal/domain/handoff"
	"github.com/relaykit/baton/internal/events"
	"github.com/relaykit/baton/internal/limit"
	"github.com/relaykit/baton/internal/port/kv"
	"github.com/relaykit/baton/internal/port/pubsub"
	"github.com/relaykit/baton/internal/store"
)

const (
	defaultPendingTTL  = time.Hour
	defaultTerminalTTL = 24 * time.Hour
)

// errClosed rejects transitions after shutdown has begun.
var errClosed = errors.New("handoff coordinator is closed")

// activeHandoff pairs a pending record with its deadline timer.
type activeHandoff struct {
	record *handoff.Handoff
	timer  *time.Timer
}

// HandoffService coordinates transactional handoffs between agents. Each
// handoff holds exactly one pending record and reaches exactly one
// terminal state, completed or timeout, no matter how calls interleave
// with the deadline timer. The active set and every transition are
// guarded by one mutex; records handed to callers are snapshots.
type HandoffService struct {
	store    *store.Store
	notifier *events.Notifier
	pool     *limit.Pool

	defaultTimeoutMs int64
	pendingTTL       time.Duration
	terminalTTL      time.Duration

	mu     sync.Mutex
	active map[string]*activeHandoff
	closed bool
}

// NewHandoffService creates a new HandoffService. cfg may be nil, in
// which case built-in defaults apply.
func NewHandoffService(st *store.Store, notifier *events.Notifier, pool *limit.Pool, cfg *config.Handoff) *HandoffService {
	s := &HandoffService{
		store:            st,
		notifier:         notifier,
		pool:             pool,
		defaultTimeoutMs: handoff.DefaultTimeoutMs,
		pendingTTL:       defaultPendingTTL,
		terminalTTL:      defaultTerminalTTL,
		active:           make(map[string]*activeHandoff),
	}
	if cfg != nil {
		if cfg.DefaultTimeoutMs > 0 {
			s.defaultTimeoutMs = cfg.DefaultTimeoutMs
		}
		if cfg.PendingTTL > 0 {
			s.pendingTTL = cfg.PendingTTL
		}
		if cfg.TerminalTTL > 0 {
			s.terminalTTL = cfg.TerminalTTL
		}
	}
	return s
}

// Initiate creates a pending handoff, mirrors it to the store, schedules
// its deadline timer and notifies the receiving agent. The returned
// record carries the assigned id.
func (s *HandoffService) Initiate(ctx context.Context, req *handoff.CreateRequest) (*handoff.Handoff, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	deliverables := slices.Clone(req.Deliverables)
	if err := handoff.ResolveRules(deliverables); err != nil {
		return nil, err
	}

	timeoutMs := req.TimeoutMs
	if timeoutMs == 0 {
		timeoutMs = s.defaultTimeoutMs
	}

	h := &handoff.Handoff{
		ID:           domain.NewID(),
		From:         req.From,
		To:           req.To,
		Deliverables: deliverables,
		Status:       handoff.StatusPending,
		Timestamp:    domain.NowMillis(),
		TimeoutMs:    timeoutMs,
	}

	// Mirror before activation: nobody holds the id yet, so the pending
	// record is in place before the timer or any caller can race it.
	s.mirror(ctx, h, s.pendingTTL)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errClosed
	}
	timer := time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, func() {
		s.fireTimeout(h.ID)
	})
	s.active[h.ID] = &activeHandoff{record: h, timer: timer}
	snap := h.Clone()
	s.mu.Unlock()

	payload, err := json.Marshal(pubsub.HandoffRequestPayload{
		Type:      pubsub.TypeHandoffRequest,
		HandoffID: h.ID,
		Agent:     h.To,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	s.store.Publish(ctx, pubsub.HandoffChannel(h.To), payload)

	s.notifier.Emit(event.Event{Type: event.TypeHandoffInitiated, Payload: snap, At: snap.Timestamp})

	slog.Info("handoff initiated",
		"handoff_id", h.ID,
		"from", h.From,
		"to", h.To,
		"deliverables", len(deliverables),
		"timeout_ms", timeoutMs,
	)
	return snap, nil
}

// Validate checks received values against the handoff's contract without
// changing any state. The handoff must still be pending.
func (s *HandoffService) Validate(ctx context.Context, id string, received map[string]json.RawMessage) (*handoff.Report, error) {
	s.mu.Lock()
	ah, ok := s.active[id]
	var deliverables []handoff.Requirement
	if ok {
		deliverables = slices.Clone(ah.record.Deliverables)
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("handoff %s: %w", id, domain.ErrNotFound)
	}

	return s.check(ctx, deliverables, received), nil
}

// Complete attempts the pending-to-completed transition. An incomplete
// delivery fails with a ValidationError and leaves the handoff pending
// with its timer running, so the caller may retry before the deadline.
func (s *HandoffService) Complete(ctx context.Context, id string, received map[string]json.RawMessage) (*handoff.Handoff, error) {
	s.mu.Lock()
	ah, ok := s.active[id]
	var deliverables []handoff.Requirement
	if ok {
		deliverables = slices.Clone(ah.record.Deliverables)
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("handoff %s: %w", id, domain.ErrNotFound)
	}

	report := s.check(ctx, deliverables, received)
	if !report.Complete {
		return nil, &handoff.ValidationError{Report: *report}
	}

	// Validators ran without the lock, so the deadline may have passed
	// in the meantime; only a handoff still in the active set completes.
	s.mu.Lock()
	ah, ok = s.active[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("handoff %s: %w", id, domain.ErrNotFound)
	}
	ah.timer.Stop()
	delete(s.active, id)
	h := ah.record
	h.Status = handoff.StatusCompleted
	h.CompletedAt = domain.NowMillis()
	h.Received = maps.Clone(received)
	snap := h.Clone()
	s.mu.Unlock()

	s.mirror(ctx, snap, s.terminalTTL)
	s.notifier.Emit(event.Event{Type: event.TypeHandoffCompleted, Payload: snap, At: snap.CompletedAt})

	slog.Info("handoff completed", "handoff_id", id, "from", snap.From, "to", snap.To)
	return snap, nil
}

// Get returns a handoff by id: the live record while pending, the store
// mirror for terminal or cross-process records.
func (s *HandoffService) Get(ctx context.Context, id string) (*handoff.Handoff, error) {
	s.mu.Lock()
	if ah, ok := s.active[id]; ok {
		snap := ah.record.Clone()
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	data, ok := s.store.Get(ctx, kv.HandoffKey(id))
	if !ok {
		return nil, fmt.Errorf("handoff %s: %w", id, domain.ErrNotFound)
	}

	var h handoff.Handoff
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode handoff %s: %w", id, err)
	}
	return &h, nil
}

// ActiveCount reports how many handoffs are currently pending.
func (s *HandoffService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Close cancels every outstanding timer and refuses further handoffs.
// Pending records stay mirrored in the store until their TTL expires.
func (s *HandoffService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ah := range s.active {
		ah.timer.Stop()
		delete(s.active, id)
	}
}

// fireTimeout runs when a handoff's deadline timer expires. Completion
// stops the timer first, but a fire already in flight can still land
// here, so membership in the active set is re-checked under the lock.
func (s *HandoffService) fireTimeout(id string) {
	s.mu.Lock()
	ah, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, id)
	h := ah.record
	h.Status = handoff.StatusTimeout
	h.TimeoutAt = domain.NowMillis()
	snap := h.Clone()
	s.mu.Unlock()

	ctx := context.Background()
	s.mirror(ctx, snap, s.terminalTTL)
	s.notifier.Emit(event.Event{Type: event.TypeHandoffTimeout, Payload: snap, At: snap.TimeoutAt})

	slog.Info("handoff timed out", "handoff_id", id, "from", snap.From, "to", snap.To, "timeout_ms", snap.TimeoutMs)
}

// check evaluates requirements in contract order against the received
// values. Validator rejections and failures both land in the report's
// error list; nothing propagates to the caller.
func (s *HandoffService) check(ctx context.Context, deliverables []handoff.Requirement, received map[string]json.RawMessage) *handoff.Report {
	report := &handoff.Report{Complete: true, Missing: []string{}, Errors: []string{}}
	for _, d := range deliverables {
		value, present := received[d.Name]
		if !present {
			report.Complete = false
			report.Missing = append(report.Missing, d.Name)
			continue
		}
		if d.Validator == nil {
			continue
		}
		ok, err := s.runValidator(ctx, d, value)
		if err != nil {
			report.Complete = false
			report.Errors = append(report.Errors, fmt.Sprintf("validation error for %s: %v", d.Name, err))
			continue
		}
		if !ok {
			report.Complete = false
			report.Errors = append(report.Errors, fmt.Sprintf("validation failed for %s", d.Name))
		}
	}
	return report
}

// runValidator executes one validator through the shared pool, turning a
// panic into an ordinary validation error.
func (s *HandoffService) runValidator(ctx context.Context, d handoff.Requirement, value json.RawMessage) (ok bool, err error) {
	poolErr := s.pool.Run(ctx, func() (runErr error) {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("validator panicked: %v", r)
			}
		}()
		ok, runErr = d.Validator(ctx, value)
		return runErr
	})
	if poolErr != nil {
		return false, poolErr
	}
	return ok, nil
}

// mirror serializes the record into the store under its key.
func (s *HandoffService) mirror(ctx context.Context, h *handoff.Handoff, ttl time.Duration) {
	data, err := json.Marshal(h)
	if err != nil {
		slog.Error("marshal handoff", "handoff_id", h.ID, "error", err)
		return
	}
	s.store.Put(ctx, kv.HandoffKey(h.ID), data, ttl)
}
