package enums

import "slices"

// OutboxEventType names a domain event; it doubles as the Pub/Sub event_type attribute.
type OutboxEventType string

const (
	EventOrderCompleted OutboxEventType = "order.completed"
	EventProductDeleted OutboxEventType = "product.deleted"
)

var eventTypes = []OutboxEventType{EventOrderCompleted, EventProductDeleted}

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", eventTypes, value)
}

// OutboxAggregateType is the entity an event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateProduct OutboxAggregateType = "product"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateProduct}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", aggregateTypes, value)
}

// OutboxDLQErrorReason records why the publisher abandoned a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonPermanent   OutboxDLQErrorReason = "permanent"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonPermanent
}
