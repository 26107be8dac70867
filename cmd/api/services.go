package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/delivery"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

type services struct {
	auth      auth.Service
	cart      cart.Service
	checkout  checkout.Service
	orders    orders.Service
	delivery  delivery.Service
	vouchers  vouchers.Service
	users     users.Service
	addresses address.Service
	catalog   catalog.Service
}

// buildServices wires every domain service against one database client.
// Writes that change orders or vouchers share the outbox emitter so their
// events commit with them.
func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, sessions *session.Manager, reg prometheus.Registerer) (*services, error) {
	gdb := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(gdb), logg)
	hasher := security.NewHasher(cfg.Password)
	var (
		s   services
		err error
	)

	if s.vouchers, err = vouchers.NewService(vouchers.NewRepository(gdb), dbClient, emitter); err != nil {
		return nil, fmt.Errorf("vouchers service: %w", err)
	}
	if s.addresses, err = address.NewService(address.NewRepository(gdb)); err != nil {
		return nil, fmt.Errorf("address service: %w", err)
	}
	if s.users, err = users.NewService(users.NewRepository(gdb), s.vouchers); err != nil {
		return nil, fmt.Errorf("users service: %w", err)
	}
	if s.catalog, err = catalog.NewService(catalog.NewRepository(gdb), dbClient); err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}
	if s.cart, err = cart.NewService(cart.NewRepository(gdb), dbClient); err != nil {
		return nil, fmt.Errorf("cart service: %w", err)
	}
	if s.orders, err = orders.NewService(orders.NewRepository(gdb), dbClient, emitter); err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	s.checkout, err = checkout.NewService(checkout.ServiceParams{
		Repository: checkout.NewRepository(gdb),
		Tx:         dbClient,
		Addresses:  s.addresses,
		Vouchers:   s.vouchers,
		Outbox:     emitter,
		Metrics:    metrics.NewCheckoutMetrics(reg),
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	workers := delivery.NewRepository(gdb)
	s.delivery, err = delivery.NewService(delivery.ServiceParams{
		Repository: workers,
		Tx:         dbClient,
		Outbox:     emitter,
		Hasher:     hasher,
		Metrics:    metrics.NewDeliveryMetrics(reg),
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("delivery service: %w", err)
	}

	s.auth, err = auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(gdb),
		WorkerRepo:     workers,
		SessionManager: sessions,
		Hasher:         hasher,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	return &s, nil
}
