package pubsub

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given channel. Unknown channels pass validation
// (future-proof for new notification types).
func Validate(channel string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on channel %s", channel)
	}

	// Map channel to payload struct for structural validation.
	var target any
	switch {
	case strings.HasPrefix(channel, "agent:") && strings.HasSuffix(channel, ":messages"):
		target = &NewMessagePayload{}
	case strings.HasPrefix(channel, "agent:") && strings.HasSuffix(channel, ":handoffs"):
		target = &HandoffRequestPayload{}
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", channel, err)
	}
	return nil
}
