package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/internal/debts"
	"github.com/angelmondragon/shopledger-backend/pkg/db"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/pagination"
)

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	repo := NewRepository(conn)
	ledger, err := debts.NewService(debts.ServiceParams{
		Repo:   debts.NewRepository(conn),
		Orders: repo,
		Tx:     db.FromGorm(conn),
		Logger: logger.Nop(),
		Now:    func() time.Time { return testNow },
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Debts:  ledger,
		Tx:     db.FromGorm(conn),
		Logger: logger.Nop(),
		Now:    func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return svc
}

func countDebts(t *testing.T, conn *gorm.DB, orderID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&models.Debt{}).Where("order_id = ?", orderID).Count(&count).Error)
	return count
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateOrder(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newTestService(t, conn)
	due := testNow.Add(72 * time.Hour)
	ref := "  INV-7 "

	order, err := svc.Create(context.Background(), CreateOrderInput{
		ShopID:     uuid.New(),
		CustomerID: uuid.New(),
		Amount:     decimal.RequireFromString("250.50"),
		DueDate:    &due,
		Reference:  &ref,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.CurrencyUSD, order.Currency)
	assert.True(t, order.PaidAmount.IsZero())
	require.NotNil(t, order.Reference)
	assert.Equal(t, "INV-7", *order.Reference)

	stored, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("250.50").Equal(stored.Amount))
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newTestService(t, setupOrdersTestDB(t))
	ctx := context.Background()

	cases := []CreateOrderInput{
		{CustomerID: uuid.New(), Amount: decimal.NewFromInt(1)},
		{ShopID: uuid.New(), Amount: decimal.NewFromInt(1)},
		{ShopID: uuid.New(), CustomerID: uuid.New(), Amount: decimal.Zero},
		{ShopID: uuid.New(), CustomerID: uuid.New(), Amount: decimal.NewFromInt(1), Currency: "XYZ"},
		{ShopID: uuid.New(), CustomerID: uuid.New(), Amount: decimal.RequireFromString("10.005")},
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, input)
		require.Error(t, err)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	}
}

func TestGetMissingOrder(t *testing.T) {
	svc := newTestService(t, setupOrdersTestDB(t))
	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestTransitionToCompletedCreatesDebtOnce(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	order := seedOrder(t, conn, uuid.New(), "100", "30", enums.OrderStatusInProgress, testNow)

	result, err := svc.TransitionStatus(ctx, TransitionInput{OrderID: order.ID, Target: enums.OrderStatusCompleted})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, result.DebtCreated)
	require.NotNil(t, result.Debt)
	assert.True(t, decimal.NewFromInt(70).Equal(result.Debt.RemainingAmount))
	assert.Equal(t, enums.DebtStatusPartiallyPaid, result.Debt.Status)
	require.NotNil(t, result.Order.CompletedAt)
	assert.True(t, testNow.Equal(*result.Order.CompletedAt))

	again, err := svc.TransitionStatus(ctx, TransitionInput{OrderID: order.ID, Target: enums.OrderStatusCompleted})
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.False(t, again.DebtCreated)
	require.NotNil(t, again.Debt)
	assert.Equal(t, result.Debt.ID, again.Debt.ID)
	assert.Equal(t, int64(1), countDebts(t, conn, order.ID))
}

func TestTransitionSettledOrderCreatesNoDebt(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newTestService(t, conn)
	order := seedOrder(t, conn, uuid.New(), "100", "100", enums.OrderStatusPending, testNow)

	result, err := svc.TransitionStatus(context.Background(), TransitionInput{OrderID: order.ID, Target: enums.OrderStatusCompleted})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Nil(t, result.Debt)
	assert.Equal(t, int64(0), countDebts(t, conn, order.ID))
}

func TestTransitionRejectsDisallowedMoves(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	cancelled := seedOrder(t, conn, uuid.New(), "100", "0", enums.OrderStatusPending, testNow)
	_, err := svc.TransitionStatus(ctx, TransitionInput{OrderID: cancelled.ID, Target: enums.OrderStatusCancelled})
	require.NoError(t, err)

	_, err = svc.TransitionStatus(ctx, TransitionInput{OrderID: cancelled.ID, Target: enums.OrderStatusCompleted})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	completed := seedOrder(t, conn, uuid.New(), "100", "100", enums.OrderStatusCompleted, testNow)
	_, err = svc.TransitionStatus(ctx, TransitionInput{OrderID: completed.ID, Target: enums.OrderStatusInProgress})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	_, err = svc.TransitionStatus(ctx, TransitionInput{OrderID: completed.ID, Target: "SHIPPED"})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	var stored models.Order
	require.NoError(t, conn.First(&stored, "id = ?", cancelled.ID).Error)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.NotNil(t, stored.CancelledAt)
}

func TestListOrders(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newTestService(t, conn)
	shopID := uuid.New()
	for i := 0; i < 3; i++ {
		seedOrder(t, conn, shopID, "10", "0", enums.OrderStatusPending, testNow.Add(time.Duration(i)*time.Minute))
	}

	page, err := svc.List(context.Background(), ListQuery{ShopID: shopID, Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.NotEmpty(t, page.NextCursor)

	_, err = svc.List(context.Background(), ListQuery{ShopID: shopID, Pagination: pagination.Params{Cursor: "!!"}})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
