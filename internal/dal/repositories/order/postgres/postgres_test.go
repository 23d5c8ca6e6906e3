//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/corray333/food-ordering/order/internal/dal/postgres/pgtest"
	orderrepo "github.com/corray333/food-ordering/order/internal/dal/repositories/order/postgres"
	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/corray333/food-ordering/order/internal/service/models/order"
	"github.com/corray333/food-ordering/order/internal/service/models/orderitem"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingOrder(t *testing.T) *order.Order {
	t.Helper()

	item, err := orderitem.New(uuid.New(), 2, money.MustNewFromString("50.00"), money.MustNewFromString("100.00"))
	require.NoError(t, err)

	o, err := order.New(order.NewParams{
		CustomerID:   uuid.New(),
		RestaurantID: uuid.New(),
		DeliveryAddress: order.StreetAddress{
			Street:     "street_1",
			PostalCode: "1000AB",
			City:       "Amsterdam",
		},
		Items: []orderitem.OrderItem{item},
		Price: money.MustNewFromString("100.00"),
	})
	require.NoError(t, err)
	require.NoError(t, o.Initialize(uuid.New(), uuid.New()))

	return o
}

func TestOrderRepository_SaveAndFind(t *testing.T) {
	client := pgtest.NewClient(t)
	repo := orderrepo.NewOrderRepository(client.Pool())
	ctx := context.Background()

	o := newPendingOrder(t)

	saved, err := repo.Save(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version())

	found, err := repo.FindByTrackingID(ctx, o.TrackingID())
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, o.ID(), found.ID())
	assert.Equal(t, order.StatusPending, found.Status())
	assert.True(t, found.Price().Equal(money.MustNewFromString("100")))
	assert.Equal(t, o.DeliveryAddress(), found.DeliveryAddress())
	require.Len(t, found.Items(), 1)
	assert.Equal(t, int64(1), found.Items()[0].ID)
	assert.True(t, found.Items()[0].IsSubTotalConsistent())
}

func TestOrderRepository_FindMissing(t *testing.T) {
	client := pgtest.NewClient(t)
	repo := orderrepo.NewOrderRepository(client.Pool())

	found, err := repo.FindByTrackingID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestOrderRepository_UpdateChecksVersion(t *testing.T) {
	client := pgtest.NewClient(t)
	repo := orderrepo.NewOrderRepository(client.Pool())
	ctx := context.Background()

	saved, err := repo.Save(ctx, newPendingOrder(t))
	require.NoError(t, err)

	first, err := repo.FindByTrackingID(ctx, saved.TrackingID())
	require.NoError(t, err)
	second, err := repo.FindByTrackingID(ctx, saved.TrackingID())
	require.NoError(t, err)

	require.NoError(t, first.Pay())
	paid, err := repo.Save(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), paid.Version())

	require.NoError(t, second.Cancel([]string{"customer gave up"}))
	_, err = repo.Save(ctx, second)
	require.ErrorIs(t, err, orderrepo.ErrVersionConflict)

	found, err := repo.FindByTrackingID(ctx, saved.TrackingID())
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, found.Status())
	assert.Empty(t, found.FailureMessages())
}
