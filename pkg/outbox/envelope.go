package outbox

import (
	"encoding/json"
	"time"
)

// PayloadEnvelope is the stable structure stored in order_events.payload.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope unpacks a stored payload.
func DecodeEnvelope(raw json.RawMessage) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if len(raw) == 0 {
		return env, nil
	}
	err := json.Unmarshal(raw, &env)
	return env, err
}
