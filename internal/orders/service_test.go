package orders

import (
	"context"
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
)

func newTestService(t *testing.T) (Service, Repository, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo, client
}

func seedOrder(t *testing.T, repo Repository, userID uuid.UUID, createdAt time.Time, lines ...models.OrderItem) models.Order {
	t.Helper()
	ctx := context.Background()
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.PriceAtTime.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	order := models.Order{
		UserID:          userID,
		CustomerName:    "Ana Souza",
		CustomerPhone:   "11999998888",
		CustomerAddress: "Rua das Flores 123",
		TotalPrice:      total,
		Status:          enums.OrderStatusCompleted,
		CreatedAt:       createdAt,
	}
	require.NoError(t, repo.CreateOrder(ctx, &order))
	for i := range lines {
		lines[i].OrderID = order.ID
	}
	require.NoError(t, repo.CreateItems(ctx, lines))
	return order
}

func line(name, price string, qty int) models.OrderItem {
	return models.OrderItem{ProductName: name, PriceAtTime: decimal.RequireFromString(price), Quantity: qty}
}

func TestGetOwnerAndAdmin(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	order := seedOrder(t, repo, owner, time.Now().UTC(), line("Mug", "10.00", 2), line("Pen", "1.50", 1))

	got, err := svc.Get(ctx, Viewer{UserID: owner, Role: enums.UserRoleCustomer}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "21.50", got.TotalPrice.String())
	require.Len(t, got.Items, 2)
	subtotals := map[string]string{}
	for _, item := range got.Items {
		subtotals[item.ProductName] = item.Subtotal.String()
	}
	assert.Equal(t, map[string]string{"Mug": "20.00", "Pen": "1.50"}, subtotals)

	_, err = svc.Get(ctx, Viewer{UserID: uuid.New(), Role: enums.UserRoleCustomer}, order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	adminView, err := svc.Get(ctx, Viewer{UserID: uuid.New(), Role: enums.UserRoleAdmin}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, adminView.ID)

	_, err = svc.Get(ctx, Viewer{UserID: owner}, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestListForUserNewestFirst(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	user, other := uuid.New(), uuid.New()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	older := seedOrder(t, repo, user, base, line("A", "1.00", 1))
	newer := seedOrder(t, repo, user, base.Add(time.Hour), line("B", "2.00", 1))
	seedOrder(t, repo, other, base.Add(2*time.Hour), line("C", "3.00", 1))

	list, err := svc.ListForUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
	require.Len(t, list[0].Items, 1)
	assert.Equal(t, "B", list[0].Items[0].ProductName)

	empty, err := svc.ListForUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = svc.ListForUser(ctx, uuid.Nil)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestListAllIncludesEveryUser(t *testing.T) {
	svc, repo, _ := newTestService(t)
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	first := seedOrder(t, repo, uuid.New(), base, line("A", "1.00", 1))
	second := seedOrder(t, repo, uuid.New(), base.Add(time.Minute), line("B", "1.00", 1))

	list, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestDeleteItemsThenOrder(t *testing.T) {
	_, repo, client := newTestService(t)
	ctx := context.Background()
	order := seedOrder(t, repo, uuid.New(), time.Now().UTC(), line("A", "1.00", 1))

	require.NoError(t, repo.DeleteItems(ctx, order.ID))
	require.NoError(t, repo.DeleteOrder(ctx, order.ID))

	var n int64
	require.NoError(t, client.DB().Model(&models.OrderItem{}).Where("order_id = ?", order.ID).Count(&n).Error)
	assert.Zero(t, n)
	_, err := repo.FindByID(ctx, order.ID)
	assert.Error(t, err)
}
