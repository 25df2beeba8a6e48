package fulfillments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/pkg/db"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/pagination"
)

// Repository persists fulfillments and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to fulfillment operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the fulfillment with its items.
func (r *Repository) Create(ctx context.Context, f *models.Fulfillment) error {
	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create fulfillment")
	}
	return nil
}

// FindByID loads one fulfillment with its items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Fulfillment, error) {
	var f models.Fulfillment
	err := r.db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&f).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fulfillment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load fulfillment")
	}
	return &f, nil
}

// ListByOrder returns every fulfillment of an order, cancelled included.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Fulfillment, error) {
	var out []models.Fulfillment
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list order fulfillments")
	}
	return out, nil
}

// Update writes the given columns.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Fulfillment{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "update fulfillment")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "fulfillment not found")
	}
	return nil
}

// Transition writes updates only while the fulfillment is still in status
// from. It reports false when another writer moved it first.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from enums.FulfillmentStatus, updates map[string]any) (bool, error) {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Fulfillment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "transition fulfillment")
	}
	return res.RowsAffected == 1, nil
}

// ClaimOrder bumps the order row while it still has exactly seen
// fulfillments, cancelled ones included. It reports false when another
// shipment was opened in the meantime.
func (r *Repository) ClaimOrder(ctx context.Context, orderID uuid.UUID, seen int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Where("(SELECT COUNT(*) FROM fulfillments WHERE fulfillments.order_id = orders.id) = ?", seen).
		Update("updated_at", time.Now().UTC())
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "claim order for fulfillment")
	}
	return res.RowsAffected == 1, nil
}

// UpdateItemConsumed records how much of a shipped item came off the ledger.
func (r *Repository) UpdateItemConsumed(ctx context.Context, itemID uuid.UUID, consumed int) error {
	res := r.db.WithContext(ctx).
		Model(&models.FulfillmentItem{}).
		Where("id = ?", itemID).
		Update("consumed_quantity", consumed)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "update fulfillment item")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "fulfillment item not found")
	}
	return nil
}

func (r *Repository) scoped(ctx context.Context, storeID, warehouseID *uuid.UUID, start, end *time.Time) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Fulfillment{})
	if storeID != nil {
		query = query.Where("order_id IN (?)", r.db.Model(&models.Order{}).Select("id").Where("store_id = ?", *storeID))
	}
	if warehouseID != nil {
		query = query.Where("warehouse_id = ?", *warehouseID)
	}
	if start != nil {
		query = query.Where("created_at >= ?", start.UTC())
	}
	if end != nil {
		query = query.Where("created_at <= ?", end.UTC())
	}
	return query
}

// List returns one page of fulfillments, newest first, plus the total count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]models.Fulfillment, int64, error) {
	query := r.scoped(ctx, filters.StoreID, filters.WarehouseID, filters.StartDate, filters.EndDate)
	if filters.OrderID != nil {
		query = query.Where("order_id = ?", *filters.OrderID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count fulfillments")
	}

	var out []models.Fulfillment
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Order("id ASC").
		Limit(pagination.NormalizeLimit(filters.Limit)).
		Offset(max(filters.Offset, 0)).
		Find(&out).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list fulfillments")
	}
	return out, total, nil
}

// ListSyncFailures returns shipped fulfillments whose platform push failed,
// oldest first.
func (r *Repository) ListSyncFailures(ctx context.Context, limit int) ([]models.Fulfillment, error) {
	var out []models.Fulfillment
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("platform_sync_status = ?", enums.PlatformSyncFailed).
		Where("status IN ?", []enums.FulfillmentStatus{
			enums.FulfillmentShipped,
			enums.FulfillmentInTransit,
			enums.FulfillmentOutForDelivery,
			enums.FulfillmentDelivered,
		}).
		Order("updated_at ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&out).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list fulfillment sync failures")
	}
	return out, nil
}

// Analytics counts shipments by status and averages creation-to-ship time.
func (r *Repository) Analytics(ctx context.Context, filters AnalyticsFilters) (*Analytics, error) {
	var rows []struct {
		Status enums.FulfillmentStatus
		Count  int64
	}
	err := r.scoped(ctx, filters.StoreID, filters.WarehouseID, filters.StartDate, filters.EndDate).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fulfillments by status")
	}

	var shipped []struct {
		CreatedAt time.Time
		ShippedAt time.Time
	}
	err = r.scoped(ctx, filters.StoreID, filters.WarehouseID, filters.StartDate, filters.EndDate).
		Select("created_at, shipped_at").
		Where("shipped_at IS NOT NULL").
		Scan(&shipped).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fulfillment ship times")
	}

	var failures int64
	err = r.scoped(ctx, filters.StoreID, filters.WarehouseID, filters.StartDate, filters.EndDate).
		Where("platform_sync_status = ?", enums.PlatformSyncFailed).
		Count(&failures).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fulfillment sync failures")
	}

	out := &Analytics{
		ByStatus:          make(map[enums.FulfillmentStatus]int64, len(rows)),
		PlatformSyncFails: failures,
	}
	for _, row := range rows {
		out.ByStatus[row.Status] = row.Count
		out.TotalFulfillments += row.Count
	}
	if len(shipped) > 0 {
		var total time.Duration
		for _, s := range shipped {
			total += s.ShippedAt.Sub(s.CreatedAt)
		}
		out.AvgHoursToShip = total.Hours() / float64(len(shipped))
	}
	return out, nil
}
