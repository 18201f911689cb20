// Package handoff defines the Handoff domain entity and its deliverable contract.
package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/relaykit/baton/internal/domain"
)

// DefaultTimeoutMs is the handoff deadline applied when a caller passes none.
const DefaultTimeoutMs int64 = 300_000

// Status represents the current state of a handoff.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusTimeout   Status = "timeout"
)

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusTimeout
}

// Validator checks a delivered value against a requirement. Returning false
// or an error marks the deliverable invalid; both outcomes land in the
// validation report rather than propagating to the caller.
type Validator func(ctx context.Context, value json.RawMessage) (bool, error)

// Requirement names an artifact the receiving agent must deliver.
// Validator is optional; when absent, presence of the named key suffices.
// Rule is the serializable form used by wire surfaces and resolves to a
// built-in Validator at initiation time.
type Requirement struct {
	Name      string    `json:"name"`
	Rule      string    `json:"rule,omitempty"`
	Validator Validator `json:"-"`
}

// Handoff represents a transactional deliverable transfer between two agents.
// All timestamps are epoch milliseconds.
type Handoff struct {
	ID           string                     `json:"id"`
	From         string                     `json:"from"`
	To           string                     `json:"to"`
	Deliverables []Requirement              `json:"deliverables"`
	Received     map[string]json.RawMessage `json:"received,omitempty"`
	Status       Status                     `json:"status"`
	Timestamp    int64                      `json:"timestamp"`
	TimeoutMs    int64                      `json:"timeout_ms"`
	CompletedAt  int64                      `json:"completed_at,omitempty"`
	TimeoutAt    int64                      `json:"timeout_at,omitempty"`
}

// Clone returns a copy of the handoff that is safe to hand to callers
// while the coordinator keeps mutating the original under its lock.
func (h *Handoff) Clone() *Handoff {
	c := *h
	c.Deliverables = slices.Clone(h.Deliverables)
	c.Received = maps.Clone(h.Received)
	return &c
}

// CreateRequest holds the fields needed to initiate a handoff.
// A zero TimeoutMs defaults to DefaultTimeoutMs.
type CreateRequest struct {
	From         string        `json:"from"`
	To           string        `json:"to"`
	Deliverables []Requirement `json:"deliverables"`
	TimeoutMs    int64         `json:"timeout_ms,omitempty"`
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
	if len(r.Deliverables) == 0 {
		return fmt.Errorf("%w: at least one deliverable is required", domain.ErrValidation)
	}
	for i, d := range r.Deliverables {
		if d.Name == "" {
			return fmt.Errorf("%w: deliverable %d: name is required", domain.ErrValidation, i)
		}
	}
	if r.TimeoutMs < 0 {
		return fmt.Errorf("%w: timeout_ms must not be negative", domain.ErrValidation)
	}
	return nil
}

// Report is the outcome of checking received values against the contract.
type Report struct {
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing"`
	Errors   []string `json:"errors"`
}

// ValidationError carries the report for a rejected completion attempt.
// It unwraps to domain.ErrValidation so callers can match with errors.Is.
type ValidationError struct {
	Report Report
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Report.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Report.Missing, ", "))
	}
	if len(e.Report.Errors) > 0 {
		parts = append(parts, "errors: "+strings.Join(e.Report.Errors, "; "))
	}
	if len(parts) == 0 {
		return "deliverables incomplete"
	}
	return "deliverables incomplete (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error {
	return domain.ErrValidation
}
