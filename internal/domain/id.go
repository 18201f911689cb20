package domain

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a globally unique identifier for messages and handoffs.
// Uniqueness across processes is a precondition of the coordinator; it is
// not re-checked at runtime.
func NewID() string {
	return uuid.New().String()
}

// NowMillis returns the current time in epoch milliseconds, the timestamp
// unit used by all coordinator records.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
