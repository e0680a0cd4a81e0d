package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0111v/projeto-faculdade/internal/products"
	"github.com/0111v/projeto-faculdade/pkg/db"
	"github.com/0111v/projeto-faculdade/pkg/db/dbtest"
	"github.com/0111v/projeto-faculdade/pkg/db/models"
	"github.com/0111v/projeto-faculdade/pkg/enums"
	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
	"github.com/0111v/projeto-faculdade/pkg/outbox/payloads"
)

type memoryDeduper struct {
	seen     map[string]bool
	checkErr error
	deleted  int
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{seen: map[string]bool{}}
}

func (m *memoryDeduper) Claim(_ context.Context, eventID uuid.UUID) (string, bool, error) {
	if m.checkErr != nil {
		return "", false, m.checkErr
	}
	if m.seen[eventID.String()] {
		return "", false, nil
	}
	m.seen[eventID.String()] = true
	return "claim-" + eventID.String(), true, nil
}

func (m *memoryDeduper) Release(_ context.Context, eventID uuid.UUID, token string) error {
	if token != "claim-"+eventID.String() {
		return errors.New("foreign claim")
	}
	m.deleted++
	delete(m.seen, eventID.String())
	return nil
}

type sliceReceiver struct {
	messages []*pubsub.Message
}

func (s *sliceReceiver) Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error {
	for _, msg := range s.messages {
		f(ctx, msg)
	}
	return nil
}

type failingProducts struct{}

func (failingProducts) FindByIDs(context.Context, []uuid.UUID) ([]models.Product, error) {
	return nil, errors.New("db down")
}

func seedProduct(t *testing.T, client *db.Client, name string, qty int) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: decimal.NewFromInt(3), Quantity: qty}
	require.NoError(t, client.DB().Create(&p).Error)
	return p
}

func orderMessage(t *testing.T, eventID uuid.UUID, productIDs ...uuid.UUID) *pubsub.Message {
	t.Helper()
	event := payloads.OrderCompletedEvent{OrderID: uuid.New(), UserID: uuid.New(), TotalPrice: decimal.NewFromInt(9)}
	for _, id := range productIDs {
		event.Items = append(event.Items, payloads.OrderCompletedLineItem{ProductID: id, Quantity: 1, PriceAtTime: decimal.NewFromInt(3)})
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.Envelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       envelope,
		Attributes: map[string]string{"event_type": string(enums.EventOrderCompleted)},
	}
}

func newTestConsumer(t *testing.T, reader productReader, dedup deduper, threshold int) *Consumer {
	t.Helper()
	c, err := NewConsumer(ConsumerParams{
		Products:     reader,
		Subscription: &sliceReceiver{},
		Idempotency:  dedup,
		Threshold:    threshold,
		Logger:       logger.Nop(),
	})
	require.NoError(t, err)
	return c
}

func TestProcessFlagsProductsAtThreshold(t *testing.T) {
	client := dbtest.Open(t)
	low := seedProduct(t, client, "Low", 2)
	out := seedProduct(t, client, "Out", 0)
	plenty := seedProduct(t, client, "Plenty", 40)

	c := newTestConsumer(t, products.NewRepository(client.DB()), newMemoryDeduper(), 2)
	result := c.process(context.Background(), orderMessage(t, uuid.New(), low.ID, out.ID, plenty.ID, uuid.New()))

	assert.True(t, result.ack)
	assert.False(t, result.nack)
	assert.Equal(t, 2, result.alerts)
}

func TestProcessSkipsDuplicatesAndOtherEvents(t *testing.T) {
	client := dbtest.Open(t)
	low := seedProduct(t, client, "Low", 1)
	dedup := newMemoryDeduper()
	c := newTestConsumer(t, products.NewRepository(client.DB()), dedup, 5)

	eventID := uuid.New()
	first := c.process(context.Background(), orderMessage(t, eventID, low.ID))
	assert.Equal(t, 1, first.alerts)

	second := c.process(context.Background(), orderMessage(t, eventID, low.ID))
	assert.True(t, second.ack)
	assert.Zero(t, second.alerts)

	other := orderMessage(t, uuid.New(), low.ID)
	other.Attributes["event_type"] = string(enums.EventProductDeleted)
	skipped := c.process(context.Background(), other)
	assert.True(t, skipped.ack)
	assert.Zero(t, skipped.alerts)
}

func TestProcessAcksUndecodableMessages(t *testing.T) {
	c := newTestConsumer(t, failingProducts{}, newMemoryDeduper(), 5)

	msg := &pubsub.Message{Data: []byte("{"), Attributes: map[string]string{"event_type": string(enums.EventOrderCompleted)}}
	assert.True(t, c.process(context.Background(), msg).ack)

	msg = &pubsub.Message{Data: []byte(`{"eventId":"nope"}`), Attributes: map[string]string{"event_type": string(enums.EventOrderCompleted)}}
	assert.True(t, c.process(context.Background(), msg).ack)
}

func TestProcessNacksAndReleasesOnFailure(t *testing.T) {
	dedup := newMemoryDeduper()
	c := newTestConsumer(t, failingProducts{}, dedup, 5)

	result := c.process(context.Background(), orderMessage(t, uuid.New(), uuid.New()))
	assert.True(t, result.nack)
	assert.Equal(t, 1, dedup.deleted)
	assert.Empty(t, dedup.seen)

	dedup.checkErr = errors.New("redis down")
	assert.True(t, c.process(context.Background(), orderMessage(t, uuid.New(), uuid.New())).nack)
}

func TestRunDrainsSubscription(t *testing.T) {
	client := dbtest.Open(t)
	low := seedProduct(t, client, "Low", 0)
	receiver := &sliceReceiver{messages: []*pubsub.Message{
		orderMessage(t, uuid.New(), low.ID),
		orderMessage(t, uuid.New(), low.ID),
	}}
	c, err := NewConsumer(ConsumerParams{
		Products:     products.NewRepository(client.DB()),
		Subscription: receiver,
		Idempotency:  newMemoryDeduper(),
		Threshold:    0,
		Logger:       logger.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))
}

func TestNewConsumerValidatesDependencies(t *testing.T) {
	_, err := NewConsumer(ConsumerParams{})
	assert.Error(t, err)

	_, err = NewConsumer(ConsumerParams{
		Products:     failingProducts{},
		Subscription: &sliceReceiver{},
		Idempotency:  newMemoryDeduper(),
		Threshold:    -1,
		Logger:       logger.Nop(),
	})
	assert.Error(t, err)
}

func TestProcessAcksUnknownSchemaVersionWithoutClaiming(t *testing.T) {
	dedup := newMemoryDeduper()
	c := newTestConsumer(t, failingProducts{}, dedup, 5)

	msg := orderMessage(t, uuid.New(), uuid.New())
	var env outbox.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	env.Version = 9
	data, err := json.Marshal(env)
	require.NoError(t, err)
	msg.Data = data

	result := c.process(context.Background(), msg)
	assert.True(t, result.ack)
	assert.Empty(t, dedup.seen)
}
