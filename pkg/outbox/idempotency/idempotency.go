// Package idempotency keeps at-least-once Pub/Sub deliveries from being
// handled twice by the same consumer.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store is the slice of the Redis client a Guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Guard records which events one consumer has claimed. A claim lives under
// sf:idempotency:evt:<consumer>:<event_id> until its TTL runs out.
type Guard struct {
	store    Store
	consumer string
	ttl      time.Duration
	newToken func() string
}

func NewGuard(store Store, consumer string, ttl time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	}
	return &Guard{store: store, consumer: consumer, ttl: ttl, newToken: uuid.NewString}, nil
}

// Claim marks eventID as taken by this consumer. fresh is false when an earlier
// delivery already holds it. The token identifies the claim for Release.
func (g *Guard) Claim(ctx context.Context, eventID uuid.UUID) (token string, fresh bool, err error) {
	if eventID == uuid.Nil {
		return "", false, errors.New("event id is required")
	}
	token = g.newToken()
	fresh, err = g.store.SetNX(ctx, g.key(eventID), token, g.ttl)
	if err != nil || !fresh {
		return "", fresh, err
	}
	return token, true, nil
}

// Release gives a claim back so a redelivery can retry the event. A claim that
// expired or was taken over by another delivery is left alone.
func (g *Guard) Release(ctx context.Context, eventID uuid.UUID, token string) error {
	if token == "" {
		return nil
	}
	_, err := g.store.DeleteIfEquals(ctx, g.key(eventID), token)
	return err
}

func (g *Guard) key(eventID uuid.UUID) string {
	return g.store.IdempotencyKey("evt:"+g.consumer, eventID.String())
}
