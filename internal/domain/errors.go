// Package domain provides shared domain-level sentinel errors and identifiers.
package domain

import "errors"

// ErrNotFound indicates the requested message or handoff does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates a request failed input or deliverable validation.
var ErrValidation = errors.New("validation failed")
