package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/ordergenie-backend/api/controllers"
	fulfillmentcontrollers "github.com/angelmondragon/ordergenie-backend/api/controllers/fulfillments"
	inventorycontrollers "github.com/angelmondragon/ordergenie-backend/api/controllers/inventory"
	ordercontrollers "github.com/angelmondragon/ordergenie-backend/api/controllers/orders"
	returncontrollers "github.com/angelmondragon/ordergenie-backend/api/controllers/returns"
	storecontrollers "github.com/angelmondragon/ordergenie-backend/api/controllers/stores"
	webhookcontrollers "github.com/angelmondragon/ordergenie-backend/api/controllers/webhooks"
	"github.com/angelmondragon/ordergenie-backend/api/middleware"
	shopifywebhook "github.com/angelmondragon/ordergenie-backend/internal/webhooks/shopify"
	"github.com/angelmondragon/ordergenie-backend/pkg/config"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface is wired to.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	// Probed by /health/ready; nil entries are skipped.
	Readiness map[string]controllers.Pinger

	IdempotencyStore redis.IdempotencyStore

	Inventory    inventorycontrollers.Service
	Orders       ordercontrollers.Service
	Fulfillments fulfillmentcontrollers.Service
	Returns      returncontrollers.Service
	Stores       storecontrollers.Service

	ShopifyWebhooks webhookcontrollers.ShopifyWebhookService
	WebhookGuard    *shopifywebhook.IdempotencyGuard

	// Served unauthenticated at /metrics when set.
	Metrics http.Handler
}

var (
	operatorRoles = []enums.MemberRole{enums.MemberRoleAdmin, enums.MemberRoleManager, enums.MemberRoleWarehouse}
	approverRoles = []enums.MemberRole{enums.MemberRoleAdmin, enums.MemberRoleManager}
)

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness))
	})

	if p.Metrics != nil {
		r.Handle("/metrics", p.Metrics)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/shopify", webhookcontrollers.ShopifyWebhook(p.ShopifyWebhooks, cfg.Shopify.WebhookSecret, p.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.IdempotencyStore, logg))

		operators := middleware.RequireRoles(logg, operatorRoles...)
		approvers := middleware.RequireRoles(logg, approverRoles...)

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", inventorycontrollers.List(p.Inventory, logg))
			r.Get("/low-stock", inventorycontrollers.LowStock(p.Inventory, logg))
			r.Get("/reorder-suggestions", inventorycontrollers.ReorderSuggestions(p.Inventory, logg))
			r.Get("/analytics", inventorycontrollers.Analytics(p.Inventory, logg))
			r.Get("/{itemID}", inventorycontrollers.Get(p.Inventory, logg))

			r.Group(func(r chi.Router) {
				r.Use(operators)
				r.Post("/", inventorycontrollers.Create(p.Inventory, logg))
				r.Post("/reserve", inventorycontrollers.Reserve(p.Inventory, logg))
				r.Post("/release", inventorycontrollers.Release(p.Inventory, logg))
				r.Post("/{itemID}/adjust", inventorycontrollers.Adjust(p.Inventory, logg))
				r.Post("/{itemID}/restock", inventorycontrollers.Restock(p.Inventory, logg))
				r.Put("/{itemID}/reorder-point", inventorycontrollers.SetReorderPoint(p.Inventory, logg))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(p.Orders, logg))
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/analytics", ordercontrollers.Analytics(p.Orders, logg))
			r.Get("/{orderID}", ordercontrollers.Detail(p.Orders, logg))
			r.Post("/{orderID}/cancel", ordercontrollers.Cancel(p.Orders, logg))
			r.Patch("/{orderID}/status", ordercontrollers.UpdateStatus(p.Orders, logg))
			r.Post("/{orderID}/notes", ordercontrollers.AddNote(p.Orders, logg))
			r.Post("/{orderID}/tags", ordercontrollers.AddTags(p.Orders, logg))
		})

		r.Route("/fulfillments", func(r chi.Router) {
			r.Get("/", fulfillmentcontrollers.List(p.Fulfillments, logg))
			r.Get("/analytics", fulfillmentcontrollers.Analytics(p.Fulfillments, logg))
			r.Get("/{fulfillmentID}", fulfillmentcontrollers.Detail(p.Fulfillments, logg))

			r.Group(func(r chi.Router) {
				r.Use(operators)
				r.Post("/", fulfillmentcontrollers.Create(p.Fulfillments, logg))
				r.Patch("/{fulfillmentID}", fulfillmentcontrollers.Update(p.Fulfillments, logg))
				r.Put("/{fulfillmentID}/tracking", fulfillmentcontrollers.AddTracking(p.Fulfillments, logg))
				r.Patch("/{fulfillmentID}/status", fulfillmentcontrollers.UpdateStatus(p.Fulfillments, logg))
				r.Post("/{fulfillmentID}/ship", fulfillmentcontrollers.Ship(p.Fulfillments, logg))
				r.Post("/{fulfillmentID}/cancel", fulfillmentcontrollers.Cancel(p.Fulfillments, logg))
			})
		})

		r.Route("/returns", func(r chi.Router) {
			r.Post("/", returncontrollers.Create(p.Returns, logg))
			r.Get("/", returncontrollers.List(p.Returns, logg))
			r.Get("/analytics", returncontrollers.Analytics(p.Returns, logg))
			r.Get("/{returnID}", returncontrollers.Detail(p.Returns, logg))
			r.Post("/{returnID}/reject", returncontrollers.Reject(p.Returns, logg))
			r.Post("/{returnID}/receive", returncontrollers.Receive(p.Returns, logg))
			r.Post("/{returnID}/inspect", returncontrollers.Inspect(p.Returns, logg))
			r.Post("/{returnID}/cancel", returncontrollers.Cancel(p.Returns, logg))
			r.Post("/{returnID}/notes", returncontrollers.AddNote(p.Returns, logg))
			r.With(approvers).Post("/{returnID}/approve", returncontrollers.Approve(p.Returns, logg))
			r.With(approvers).Post("/{returnID}/refund", returncontrollers.Refund(p.Returns, logg))
		})

		r.Route("/stores", func(r chi.Router) {
			r.Use(middleware.RequireRoles(logg, enums.MemberRoleAdmin))
			r.Post("/", storecontrollers.Create(p.Stores, logg))
			r.Get("/{storeID}", storecontrollers.Get(p.Stores, logg))
			r.Post("/{storeID}/warehouses", storecontrollers.CreateWarehouse(p.Stores, logg))
			r.Get("/{storeID}/warehouses", storecontrollers.ListWarehouses(p.Stores, logg))
		})
	})

	return r
}
