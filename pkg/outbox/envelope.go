package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who caused the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// Envelope is the JSON stored in outbox_events.payload and published verbatim
// as the Pub/Sub message body. EventID equals the outbox row id.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ErrEmptyData is returned when an envelope carries no payload.
var ErrEmptyData = errors.New("envelope has no data")

// SchemaVersion treats a missing version as 1.
func (e Envelope) SchemaVersion() int {
	if e.Version <= 0 {
		return 1
	}
	return e.Version
}

// DecodeData unmarshals the payload into dst.
func (e Envelope) DecodeData(dst any) error {
	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrEmptyData
	}
	return json.Unmarshal(data, dst)
}

// ParseEnvelope decodes a stored or delivered envelope.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
