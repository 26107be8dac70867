package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// User inserts a customer with a unique email.
func User(t testing.TB, conn *gorm.DB) models.User {
	t.Helper()
	user := models.User{
		Name:         "Test Customer",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Role:         enums.UserRoleCustomer,
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

// Product inserts a catalog product with the given price, discount and stock.
func Product(t testing.TB, conn *gorm.DB, price, discount string, stock int) models.Product {
	t.Helper()
	product := models.Product{
		Name:               "Product " + uuid.NewString()[:8],
		Description:        "fixture",
		Price:              decimal.RequireFromString(price),
		DiscountPercentage: decimal.RequireFromString(discount),
		Stock:              stock,
		Type:               enums.ProductTypeMain,
	}
	require.NoError(t, conn.Create(&product).Error)
	return product
}

// CartLine puts counter units of product in the user's cart.
func CartLine(t testing.TB, conn *gorm.DB, userID, productID uuid.UUID, counter int) models.CartItem {
	t.Helper()
	line := models.CartItem{UserID: userID, ProductID: productID, Counter: counter}
	require.NoError(t, conn.Create(&line).Error)
	return line
}

// Address adds an address to the user's book. createdAt fixes the position
// used by index-based lookups.
func Address(t testing.TB, conn *gorm.DB, userID uuid.UUID, createdAt time.Time) models.Address {
	t.Helper()
	addr := models.Address{
		UserID:     userID,
		Label:      "home",
		Line1:      "1 Main St",
		City:       "Springfield",
		Region:     "IL",
		PostalCode: "62701",
		Country:    "US",
		CreatedAt:  createdAt.UTC(),
	}
	require.NoError(t, conn.Create(&addr).Error)
	return addr
}

// Worker inserts an active fulfillment worker.
func Worker(t testing.TB, conn *gorm.DB, role enums.WorkerRole) models.Delivery {
	t.Helper()
	worker := models.Delivery{
		Name:         "Worker",
		Phone:        "+1" + uuid.NewString()[:10],
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, conn.Create(&worker).Error)
	return worker
}

// Order inserts an order in the given status without lines.
func Order(t testing.TB, conn *gorm.DB, userID uuid.UUID, status enums.OrderStatus) models.Order {
	t.Helper()
	order := models.Order{
		UserID:          userID,
		ShippingAddress: "1 Main St",
		Subtotal:        decimal.NewFromInt(10),
		Discount:        decimal.Zero,
		Price:           decimal.NewFromInt(10),
		Status:          status,
	}
	require.NoError(t, conn.Create(&order).Error)
	return order
}
