package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ordergenie-backend/pkg/db"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/pagination"
)

const uniqueShopifyOrderID = "ux_orders_shopify_order_id"

// Repository persists orders and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the order together with its items.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if db.IsUniqueViolation(err, uniqueShopifyOrderID) || db.IsUniqueViolation(err, "orders.shopify_order_id") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already synced")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	return nil
}

// FindByID loads an order with its items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByIDForUpdate loads an order and, on Postgres, locks its row until the
// transaction ends. Writers that derive state from the order's shipments
// serialize on this lock.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := r.db
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return (&Repository{db: query}).findOne(ctx, "id = ?", id)
}

// FindByShopifyID loads the order synced from the given platform id.
func (r *Repository) FindByShopifyID(ctx context.Context, externalID string) (*models.Order, error) {
	return r.findOne(ctx, "shopify_order_id = ?", externalID)
}

func (r *Repository) findOne(ctx context.Context, where string, arg any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC").Order("id ASC")
		}).
		Where(where, arg).
		First(&order).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return &order, nil
}

// Update writes the given columns of one order.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "update order")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

// Transition writes updates only while the order is still in status from.
// It reports false when a concurrent writer moved the order first.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND order_status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "transition order")
	}
	return res.RowsAffected == 1, nil
}

// HasFulfillments reports whether any shipment, live or cancelled, was
// opened against the order.
func (r *Repository) HasFulfillments(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Fulfillment{}).
		Where("order_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count order fulfillments")
	}
	return count > 0, nil
}

// UpdateTags replaces the tag list. It goes through the struct path so the
// JSON serializer applies.
func (r *Repository) UpdateTags(ctx context.Context, id uuid.UUID, tags []string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{ID: id}).
		Select("tags", "updated_at").
		Updates(&models.Order{Tags: tags, UpdatedAt: time.Now().UTC()})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "update order tags")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

// UpdateItem writes the given columns of one order item.
func (r *Repository) UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.OrderItem{}).Where("id = ?", itemID).Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "update order item")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
	}
	return nil
}

func (r *Repository) scoped(ctx context.Context, storeID *uuid.UUID, start, end *time.Time) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if storeID != nil {
		query = query.Where("store_id = ?", *storeID)
	}
	if start != nil {
		query = query.Where("created_at >= ?", start.UTC())
	}
	if end != nil {
		query = query.Where("created_at <= ?", end.UTC())
	}
	return query
}

// List returns one page of orders, newest first, plus the total count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]models.Order, int64, error) {
	query := r.scoped(ctx, filters.StoreID, filters.StartDate, filters.EndDate)
	if filters.Status != nil {
		query = query.Where("order_status = ?", *filters.Status)
	}
	if filters.FulfillmentStatus != nil {
		query = query.Where("fulfillment_status = ?", *filters.FulfillmentStatus)
	}
	if search := strings.ToLower(strings.TrimSpace(filters.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(order_number) LIKE ? OR LOWER(customer_name) LIKE ? OR LOWER(COALESCE(customer_email, '')) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count orders")
	}

	var orders []models.Order
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Order("id ASC").
		Limit(pagination.NormalizeLimit(filters.Limit)).
		Offset(max(filters.Offset, 0)).
		Find(&orders).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return orders, total, nil
}

// Analytics computes order count, revenue and the status breakdown.
func (r *Repository) Analytics(ctx context.Context, filters AnalyticsFilters) (*Analytics, error) {
	var totals struct {
		Count   int64
		Revenue decimal.Decimal
	}
	err := r.scoped(ctx, filters.StoreID, filters.StartDate, filters.EndDate).
		Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS revenue").
		Scan(&totals).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order totals")
	}

	var rows []struct {
		OrderStatus enums.OrderStatus
		Count       int64
	}
	err = r.scoped(ctx, filters.StoreID, filters.StartDate, filters.EndDate).
		Select("order_status, COUNT(*) AS count").
		Group("order_status").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "orders by status")
	}

	out := &Analytics{
		TotalOrders:    totals.Count,
		TotalRevenue:   totals.Revenue.Round(2),
		AvgOrderValue:  decimal.Zero,
		OrdersByStatus: make(map[enums.OrderStatus]int64, len(rows)),
	}
	if totals.Count > 0 {
		out.AvgOrderValue = totals.Revenue.Div(decimal.NewFromInt(totals.Count)).Round(2)
	}
	for _, row := range rows {
		out.OrdersByStatus[row.OrderStatus] = row.Count
	}
	return out, nil
}
