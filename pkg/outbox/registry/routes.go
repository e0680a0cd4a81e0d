// Package registry knows, for every outbox event type, which aggregate it
// belongs to, which topic carries it, and how its payload decodes.
package registry

import (
	"errors"
	"slices"

	"github.com/google/uuid"

	"github.com/0111v/projeto-faculdade/pkg/config"
	"github.com/0111v/projeto-faculdade/pkg/db/models"
	"github.com/0111v/projeto-faculdade/pkg/enums"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
	"github.com/0111v/projeto-faculdade/pkg/outbox/payloads"
)

type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(outbox.Envelope) (any, error)
}

// ResolvedEvent is a validated outbox row ready to publish.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.Envelope
	Payload  any
}

type Routes struct {
	byType map[enums.OutboxEventType]Route
}

// NewRoutes maps order events to the orders topic and catalog events to the
// catalog topic, falling back to the orders topic when none is configured.
func NewRoutes(cfg config.PubSubConfig) (*Routes, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	catalog := cfg.CatalogTopic
	if catalog == "" {
		catalog = cfg.OrdersTopic
	}
	r := &Routes{byType: map[enums.OutboxEventType]Route{}}
	add[payloads.OrderCompletedEvent](r, enums.EventOrderCompleted, enums.AggregateOrder, cfg.OrdersTopic)
	add[payloads.ProductDeletedEvent](r, enums.EventProductDeleted, enums.AggregateProduct, catalog)
	return r, nil
}

func add[T any](r *Routes, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) {
	r.byType[eventType] = Route{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(env outbox.Envelope) (any, error) {
			payload := new(T)
			if err := env.DecodeData(payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// Topics returns the distinct topic names, sorted.
func (r *Routes) Topics() []string {
	var topics []string
	for _, route := range r.byType {
		if !slices.Contains(topics, route.Topic) {
			topics = append(topics, route.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve checks row against its route and decodes the envelope. Every
// failure is permanent: the row will not become valid by waiting.
func (r *Routes) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	route, ok := r.byType[row.EventType]
	switch {
	case !ok:
		return nil, permanentf("no route for event type %q", row.EventType)
	case row.AggregateType != route.AggregateType:
		return nil, permanentf("%s belongs to aggregate %s, row has %s", row.EventType, route.AggregateType, row.AggregateType)
	case row.AggregateID == uuid.Nil:
		return nil, permanentf("%s row %s has no aggregate id", row.EventType, row.ID)
	}

	env, err := outbox.ParseEnvelope(row.Payload)
	if err != nil {
		return nil, permanentf("decode envelope: %w", err)
	}
	payload, err := route.decode(env)
	if err != nil {
		return nil, permanentf("decode %s data: %w", row.EventType, err)
	}
	return &ResolvedEvent{Route: route, Envelope: env, Payload: payload}, nil
}
