package registry

import (
	"fmt"

	"github.com/0111v/projeto-faculdade/pkg/enums"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// Decoders is the consumer-side lookup from (event type, schema version) to a
// typed payload. Populate it before handing it to a subscriber.
type Decoders struct {
	byKey map[decoderKey]func(outbox.Envelope) (any, error)
}

func NewDecoders() *Decoders {
	return &Decoders{byKey: map[decoderKey]func(outbox.Envelope) (any, error){}}
}

// RegisterDecoder makes d decode eventType at version into *T.
func RegisterDecoder[T any](d *Decoders, eventType enums.OutboxEventType, version int) {
	d.byKey[decoderKey{eventType, version}] = func(env outbox.Envelope) (any, error) {
		out := new(T)
		if err := env.DecodeData(out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Decode returns a permanent error for unregistered pairs so consumers can ack
// messages they will never understand.
func (d *Decoders) Decode(eventType enums.OutboxEventType, env outbox.Envelope) (any, error) {
	fn, ok := d.byKey[decoderKey{eventType, env.SchemaVersion()}]
	if !ok {
		return nil, permanentf("no decoder for %s v%d", eventType, env.SchemaVersion())
	}
	out, err := fn(env)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s v%d: %w", eventType, env.SchemaVersion(), err))
	}
	return out, nil
}
