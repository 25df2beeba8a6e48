// Package bootstrap wires repositories, services and platform clients shared
// by the api and cron-worker binaries.
package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ordergenie-backend/internal/fulfillments"
	"github.com/angelmondragon/ordergenie-backend/internal/inventory"
	"github.com/angelmondragon/ordergenie-backend/internal/notifications"
	"github.com/angelmondragon/ordergenie-backend/internal/orders"
	"github.com/angelmondragon/ordergenie-backend/internal/returns"
	"github.com/angelmondragon/ordergenie-backend/internal/stores"
	shopifywebhook "github.com/angelmondragon/ordergenie-backend/internal/webhooks/shopify"
	"github.com/angelmondragon/ordergenie-backend/pkg/config"
	"github.com/angelmondragon/ordergenie-backend/pkg/db"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/metrics"
	"github.com/angelmondragon/ordergenie-backend/pkg/outbox"
	"github.com/angelmondragon/ordergenie-backend/pkg/shopify"
)

// Services is the domain layer of one process.
type Services struct {
	Outbox        *outbox.Service
	OutboxRepo    *outbox.Repository
	OutboxDLQ     *outbox.DLQRepository
	Notifications *notifications.Requester
	Stores        *stores.Service
	Inventory     *inventory.Service
	Orders        *orders.Service
	Fulfillments  *fulfillments.Service
	Returns       *returns.Service
	Webhooks      *shopifywebhook.Service
}

// NewServices builds every domain service on top of one database client.
// Metrics are registered on reg.
func NewServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (*Services, error) {
	conn := dbClient.DB()

	outboxRepo := outbox.NewRepository(conn)
	outboxService := outbox.NewService(outboxRepo, logg)

	notifier, err := notifications.NewRequester(outboxService, dbClient, logg)
	if err != nil {
		return nil, fmt.Errorf("notifications: %w", err)
	}

	storeService, err := stores.NewService(stores.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("stores: %w", err)
	}

	inventoryService, err := inventory.NewService(
		inventory.NewRepository(conn),
		dbClient,
		cfg.Inventory,
		metrics.NewLedgerMetrics(reg),
		logg,
	)
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}

	orderRepo := orders.NewRepository(conn)
	orderService, err := orders.NewService(orderRepo, dbClient, outboxService, inventoryService, notifier, logg)
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}

	platform := shopify.NewClient(cfg.Shopify, logg, shopify.WithBreakerMetrics(metrics.NewBreakerMetrics(reg)))

	fulfillmentService, err := fulfillments.NewService(
		fulfillments.NewRepository(conn),
		orderRepo,
		dbClient,
		outboxService,
		inventoryService,
		platform,
		storeService,
		notifier,
		logg,
	)
	if err != nil {
		return nil, fmt.Errorf("fulfillments: %w", err)
	}

	returnService, err := returns.NewService(returns.Deps{
		Repo:      returns.NewRepository(conn),
		Orders:    orderRepo,
		Tx:        dbClient,
		Outbox:    outboxService,
		Restocker: inventoryService,
		Platform:  platform,
		Stores:    storeService,
		Notifier:  notifier,
		Config:    cfg.Returns,
		Logger:    logg,
	})
	if err != nil {
		return nil, fmt.Errorf("returns: %w", err)
	}

	webhookService, err := shopifywebhook.NewService(shopifywebhook.ServiceParams{
		Repo:   shopifywebhook.NewRepository(conn),
		Orders: orderService,
		Lookup: orderRepo,
		Stores: storeService,
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("webhooks: %w", err)
	}

	return &Services{
		Outbox:        outboxService,
		OutboxRepo:    outboxRepo,
		OutboxDLQ:     outbox.NewDLQRepository(conn),
		Notifications: notifier,
		Stores:        storeService,
		Inventory:     inventoryService,
		Orders:        orderService,
		Fulfillments:  fulfillmentService,
		Returns:       returnService,
		Webhooks:      webhookService,
	}, nil
}
