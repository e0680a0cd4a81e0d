package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0111v/projeto-faculdade/internal/products"
	"github.com/0111v/projeto-faculdade/pkg/db"
	"github.com/0111v/projeto-faculdade/pkg/db/dbtest"
	"github.com/0111v/projeto-faculdade/pkg/db/models"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
	"github.com/0111v/projeto-faculdade/pkg/logger"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), products.NewRepository(client.DB()), logger.Nop())
	require.NoError(t, err)
	return svc, client
}

func seedProduct(t *testing.T, client *db.Client, name, price string, qty int) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: decimal.RequireFromString(price), Quantity: qty}
	require.NoError(t, client.DB().Create(&p).Error)
	return p
}

func intPtr(i int) *int { return &i }

func countRows(t *testing.T, client *db.Client, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, client.DB().Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func TestAddMergesIntoSingleRow(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	p := seedProduct(t, client, "Mug", "10.00", 10)

	first, err := svc.Add(ctx, user, AddItemInput{ProductID: p.ID, Quantity: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Quantity)

	second, err := svc.Add(ctx, user, AddItemInput{ProductID: p.ID, Quantity: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 5, second.Quantity)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.Product)
	assert.Equal(t, "Mug", second.Product.Name)

	assert.Equal(t, int64(1), countRows(t, client, user))
}

func TestAddDefaultsQuantityToOne(t *testing.T) {
	svc, client := newTestService(t)
	p := seedProduct(t, client, "Pen", "1.50", 0)

	item, err := svc.Add(context.Background(), uuid.New(), AddItemInput{ProductID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)
}

func TestAddDoesNotCheckStock(t *testing.T) {
	svc, client := newTestService(t)
	p := seedProduct(t, client, "Rare", "99.00", 1)

	item, err := svc.Add(context.Background(), uuid.New(), AddItemInput{ProductID: p.ID, Quantity: intPtr(50)})
	require.NoError(t, err)
	assert.Equal(t, 50, item.Quantity)
}

func TestAddValidation(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, client, "Pen", "1.50", 5)

	_, err := svc.Add(ctx, uuid.New(), AddItemInput{ProductID: p.ID, Quantity: intPtr(0)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Add(ctx, uuid.New(), AddItemInput{ProductID: uuid.New()})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = svc.Add(ctx, uuid.Nil, AddItemInput{ProductID: p.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestConcurrentAddsKeepOneRow(t *testing.T) {
	svc, client := newTestService(t)
	user := uuid.New()
	p := seedProduct(t, client, "Hot", "5.00", 100)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(context.Background(), user, AddItemInput{ProductID: p.ID, Quantity: intPtr(1)})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), countRows(t, client, user))
	cart, err := svc.List(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 8, cart.Items[0].Quantity)
}

func TestUpdateAndDeleteAreScopedToOwner(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()
	p := seedProduct(t, client, "Book", "20.00", 3)

	item, err := svc.Add(ctx, owner, AddItemInput{ProductID: p.ID})
	require.NoError(t, err)

	_, err = svc.Update(ctx, other, item.ID, 4)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	err = svc.Delete(ctx, other, item.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	updated, err := svc.Update(ctx, owner, item.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)

	_, err = svc.Update(ctx, owner, item.ID, 0)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	require.NoError(t, svc.Delete(ctx, owner, item.ID))
	err = svc.Delete(ctx, owner, item.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestClearOnlyTouchesCaller(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	p := seedProduct(t, client, "Tea", "3.00", 10)
	q := seedProduct(t, client, "Cup", "4.00", 10)

	for _, id := range []uuid.UUID{p.ID, q.ID} {
		_, err := svc.Add(ctx, alice, AddItemInput{ProductID: id})
		require.NoError(t, err)
	}
	_, err := svc.Add(ctx, bob, AddItemInput{ProductID: p.ID})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, alice))
	assert.Equal(t, int64(0), countRows(t, client, alice))
	assert.Equal(t, int64(1), countRows(t, client, bob))
}

func TestListNewestFirstWithSubtotal(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	p := seedProduct(t, client, "Old", "2.50", 10)
	q := seedProduct(t, client, "New", "1.25", 10)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.CartItem{
		{UserID: user, ProductID: p.ID, Quantity: 2, CreatedAt: base},
		{UserID: user, ProductID: q.ID, Quantity: 3, CreatedAt: base.Add(time.Minute)},
	}
	require.NoError(t, client.DB().Create(&rows).Error)

	cart, err := svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "New", cart.Items[0].Product.Name)
	assert.Equal(t, "Old", cart.Items[1].Product.Name)
	assert.Equal(t, "8.75", cart.Subtotal.String())

	empty, err := svc.List(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Equal(t, "0.00", empty.Subtotal.String())
}

func TestDeletingProductRemovesCartLines(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	p := seedProduct(t, client, "Gone", "1.00", 1)

	_, err := svc.Add(ctx, user, AddItemInput{ProductID: p.ID})
	require.NoError(t, err)
	require.NoError(t, client.DB().Delete(&models.Product{}, "id = ?", p.ID).Error)

	assert.Equal(t, int64(0), countRows(t, client, user))
}
