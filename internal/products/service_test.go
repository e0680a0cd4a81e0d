package products

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0111v/projeto-faculdade/pkg/db"
	"github.com/0111v/projeto-faculdade/pkg/db/dbtest"
	"github.com/0111v/projeto-faculdade/pkg/db/models"
	"github.com/0111v/projeto-faculdade/pkg/enums"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
)

type fakeImages struct {
	deleted []string
	err     error
}

func (f *fakeImages) DeleteByURL(_ context.Context, imageURL string) error {
	f.deleted = append(f.deleted, imageURL)
	return f.err
}

func newTestService(t *testing.T, images imageRemover) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	emitter := outbox.NewWriter(outbox.NewRepository(client.DB()), logger.Nop())
	svc, err := NewService(NewRepository(client.DB()), client, emitter, images, logger.Nop())
	require.NoError(t, err)
	return svc, client
}

func seedProduct(t *testing.T, client *db.Client, name string, price string, qty int, createdAt time.Time) models.Product {
	t.Helper()
	p := models.Product{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Quantity:  qty,
		CreatedAt: createdAt,
	}
	require.NoError(t, client.DB().Create(&p).Error)
	return p
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateAndGet(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateProductInput{
		Name:     "  Coffee Beans ",
		Price:    decimal.RequireFromString("10.5"),
		Quantity: 5,
		ImageURL: strPtr("https://cdn.test/product-images/products/a.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Coffee Beans", created.Name)
	assert.Equal(t, json.Number("10.50"), created.Price)
	assert.Equal(t, 5, created.Quantity)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	require.NotNil(t, got.ImageURL)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Create(context.Background(), CreateProductInput{
		Name:     " ",
		Price:    decimal.NewFromInt(-1),
		Quantity: -2,
		ImageURL: strPtr("not a url"),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Len(t, details, 4)
}

func TestListNewestFirst(t *testing.T) {
	svc, client := newTestService(t, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := seedProduct(t, client, "older", "1.00", 1, base)
	newer := seedProduct(t, client, "newer", "2.00", 1, base.Add(time.Hour))

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestGetMissingProduct(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestUpdatePartialPatch(t *testing.T) {
	svc, client := newTestService(t, nil)
	p := seedProduct(t, client, "mug", "8.00", 3, time.Now())

	price := decimal.RequireFromString("9.99")
	updated, err := svc.Update(context.Background(), p.ID, UpdateProductInput{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "mug", updated.Name)
	assert.Equal(t, json.Number("9.99"), updated.Price)
	assert.Equal(t, 3, updated.Quantity)

	updated, err = svc.Update(context.Background(), p.ID, UpdateProductInput{
		Quantity: intPtr(0),
		ImageURL: NullableString{Set: true, Value: strPtr("https://cdn.test/x.png")},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Quantity)
	require.NotNil(t, updated.ImageURL)

	updated, err = svc.Update(context.Background(), p.ID, UpdateProductInput{ImageURL: NullableString{Set: true}})
	require.NoError(t, err)
	assert.Nil(t, updated.ImageURL)
}

func TestUpdateRequiresAField(t *testing.T) {
	svc, client := newTestService(t, nil)
	p := seedProduct(t, client, "mug", "8.00", 3, time.Now())

	_, err := svc.Update(context.Background(), p.ID, UpdateProductInput{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Update(context.Background(), p.ID, UpdateProductInput{Quantity: intPtr(-1)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestUpdateMissingProduct(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Update(context.Background(), uuid.New(), UpdateProductInput{Name: strPtr("x")})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestDeleteEmitsEventAndRemovesImage(t *testing.T) {
	images := &fakeImages{err: errors.New("storage down")}
	svc, client := newTestService(t, images)
	p := seedProduct(t, client, "lamp", "30.00", 2, time.Now())
	imageURL := "https://cdn.test/product-images/products/lamp.png"
	require.NoError(t, client.DB().Model(&models.Product{}).Where("id = ?", p.ID).Update("image_url", imageURL).Error)

	actor := &outbox.ActorRef{UserID: uuid.New(), Role: string(enums.UserRoleAdmin)}
	require.NoError(t, svc.Delete(context.Background(), actor, p.ID))

	_, err := svc.Get(context.Background(), p.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	assert.Equal(t, []string{imageURL}, images.deleted)

	var events []models.OutboxEvent
	require.NoError(t, client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventProductDeleted, events[0].EventType)
	assert.Equal(t, p.ID, events[0].AggregateID)
}

func TestDeleteMissingProductWritesNothing(t *testing.T) {
	svc, client := newTestService(t, nil)

	err := svc.Delete(context.Background(), nil, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteKeepsOrderHistory(t *testing.T) {
	svc, client := newTestService(t, nil)
	p := seedProduct(t, client, "chair", "45.00", 4, time.Now())
	productID := p.ID

	order := models.Order{
		UserID:          uuid.New(),
		CustomerName:    "Ana Souza",
		CustomerPhone:   "11999990000",
		CustomerAddress: "Rua das Flores 100",
		TotalPrice:      decimal.RequireFromString("45.00"),
		Status:          enums.OrderStatusCompleted,
		Items: []models.OrderItem{{
			ProductID:   &productID,
			ProductName: "chair",
			Quantity:    1,
			PriceAtTime: decimal.RequireFromString("45.00"),
		}},
	}
	require.NoError(t, client.DB().Create(&order).Error)

	require.NoError(t, svc.Delete(context.Background(), nil, p.ID))

	var item models.OrderItem
	require.NoError(t, client.DB().First(&item, "order_id = ?", order.ID).Error)
	assert.Nil(t, item.ProductID)
	assert.Equal(t, "chair", item.ProductName)
	assert.True(t, item.PriceAtTime.Equal(decimal.RequireFromString("45.00")))
}

func TestNullableStringUnmarshal(t *testing.T) {
	var payload struct {
		ImageURL NullableString `json:"image_url"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &payload))
	assert.False(t, payload.ImageURL.Set)

	require.NoError(t, json.Unmarshal([]byte(`{"image_url":null}`), &payload))
	assert.True(t, payload.ImageURL.Set)
	assert.Nil(t, payload.ImageURL.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"image_url":"https://x.test/a.png"}`), &payload))
	require.NotNil(t, payload.ImageURL.Value)
	assert.Equal(t, "https://x.test/a.png", *payload.ImageURL.Value)
}
