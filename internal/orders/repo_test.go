package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopledger-backend/pkg/db"
	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
	"github.com/angelmondragon/shopledger-backend/pkg/pagination"
)

var testNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.OpenSQLite("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

func seedOrder(t *testing.T, conn *gorm.DB, shopID uuid.UUID, amount, paid string, status enums.OrderStatus, createdAt time.Time) models.Order {
	t.Helper()
	order := models.Order{
		ShopID:     shopID,
		CustomerID: uuid.New(),
		Amount:     decimal.RequireFromString(amount),
		PaidAmount: decimal.RequireFromString(paid),
		Currency:   enums.CurrencyUSD,
		Status:     status,
		CreatedAt:  createdAt,
	}
	if status == enums.OrderStatusCompleted {
		completed := createdAt.Add(time.Hour)
		order.CompletedAt = &completed
	}
	require.NoError(t, conn.Create(&order).Error)
	return order
}

func TestRepositoryUpdatePaymentCompareAndSwap(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, conn, uuid.New(), "100", "0", enums.OrderStatusPending, testNow)

	order.PaidAmount = decimal.NewFromInt(40)
	order.Status = enums.OrderStatusInProgress
	ok, err := repo.UpdatePayment(ctx, &order, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, ok)

	// a second writer still holding the old balance loses
	stale := order
	stale.PaidAmount = decimal.NewFromInt(60)
	ok, err = repo.UpdatePayment(ctx, &stale, decimal.Zero)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(stored.PaidAmount))
	assert.Equal(t, enums.OrderStatusInProgress, stored.Status)
}

func TestRepositoryUpdateStatusCompareAndSwap(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, conn, uuid.New(), "100", "0", enums.OrderStatusPending, testNow)

	order.Status = enums.OrderStatusCancelled
	ok, err := repo.UpdateStatus(ctx, &order, enums.OrderStatusInProgress)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateStatus(ctx, &order, enums.OrderStatusPending)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepositoryListPaginates(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	shopID := uuid.New()

	var seeded []models.Order
	for i := 0; i < 5; i++ {
		seeded = append(seeded, seedOrder(t, conn, shopID, "10", "0", enums.OrderStatusPending, testNow.Add(time.Duration(i)*time.Hour)))
	}
	seedOrder(t, conn, uuid.New(), "10", "0", enums.OrderStatusPending, testNow)

	first, next, err := repo.List(ctx, ListQuery{ShopID: shopID, Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotNil(t, next)
	assert.Equal(t, seeded[4].ID, first[0].ID)
	assert.Equal(t, seeded[3].ID, first[1].ID)

	second, next, err := repo.List(ctx, ListQuery{
		ShopID:     shopID,
		Pagination: pagination.Params{Limit: 2, Cursor: pagination.NextCursor(next)},
	})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, seeded[2].ID, second[0].ID)
	assert.Equal(t, seeded[1].ID, second[1].ID)

	third, next, err := repo.List(ctx, ListQuery{
		ShopID:     shopID,
		Pagination: pagination.Params{Limit: 2, Cursor: pagination.NextCursor(next)},
	})
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, seeded[0].ID, third[0].ID)
	assert.Nil(t, next)
}

func TestRepositoryListFiltersByStatus(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	shopID := uuid.New()
	seedOrder(t, conn, shopID, "10", "0", enums.OrderStatusPending, testNow)
	done := seedOrder(t, conn, shopID, "10", "10", enums.OrderStatusCompleted, testNow)

	status := enums.OrderStatusCompleted
	rows, _, err := repo.List(context.Background(), ListQuery{ShopID: shopID, Filters: ListFilters{Status: &status}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, done.ID, rows[0].ID)
}

func TestRepositoryCompletedWithBalance(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	shopA, shopB := uuid.New(), uuid.New()

	owing := seedOrder(t, conn, shopA, "100", "30", enums.OrderStatusCompleted, testNow)
	seedOrder(t, conn, shopA, "100", "100", enums.OrderStatusCompleted, testNow)
	seedOrder(t, conn, shopA, "100", "0", enums.OrderStatusInProgress, testNow)
	seedOrder(t, conn, shopB, "50", "0", enums.OrderStatusCompleted, testNow)

	rows, err := repo.ListCompletedWithBalance(ctx, shopA)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, owing.ID, rows[0].ID)

	shops, err := repo.ShopIDsWithCompletedBalance(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{shopA, shopB}, shops)
}
