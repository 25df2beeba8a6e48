package returns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/pkg/db"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/pagination"
)

// Repository persists return requests and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to return operations.
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

// Create inserts the return with its items.
func (r *Repository) Create(ctx context.Context, ret *models.ReturnRequest) error {
	if err := r.db.WithContext(ctx).Create(ret).Error; err != nil {
		if db.IsUniqueViolation(err, "ux_return_requests_number") || db.IsUniqueViolation(err, "return_requests.return_number") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "return number already used")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create return request")
	}
	return nil
}

// FindByID loads one return with its items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	err := r.db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&ret).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load return request")
	}
	return &ret, nil
}

// ListOpenByOrder returns the order's returns that still claim quantity.
func (r *Repository) ListOpenByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ReturnRequest, error) {
	var out []models.ReturnRequest
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", orderID).
		Where("status NOT IN ?", []enums.ReturnStatus{enums.ReturnRejected, enums.ReturnCancelled}).
		Find(&out).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list order returns")
	}
	return out, nil
}

// Update writes the given columns.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.ReturnRequest{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "update return request")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
	}
	return nil
}

// Transition moves a return from one status to another. It reports false
// when the return is no longer in from.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "transition return request")
	}
	return res.RowsAffected == 1, nil
}

// UpdateItemCondition records the inspected condition of one returned item.
func (r *Repository) UpdateItemCondition(ctx context.Context, returnID, orderItemID uuid.UUID, condition string) error {
	res := r.db.WithContext(ctx).
		Model(&models.ReturnItem{}).
		Where("return_request_id = ? AND order_item_id = ?", returnID, orderItemID).
		Update("condition", condition)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "update return item")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order item is not part of this return").
			WithDetails(map[string]any{"order_item_id": orderItemID})
	}
	return nil
}

func (r *Repository) scoped(ctx context.Context, storeID *uuid.UUID, start, end *time.Time) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.ReturnRequest{})
	if storeID != nil {
		query = query.Where("order_id IN (?)", r.db.Model(&models.Order{}).Select("id").Where("store_id = ?", *storeID))
	}
	if start != nil {
		query = query.Where("created_at >= ?", start.UTC())
	}
	if end != nil {
		query = query.Where("created_at <= ?", end.UTC())
	}
	return query
}

// List returns one page of returns, newest first, plus the total count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]models.ReturnRequest, int64, error) {
	query := r.scoped(ctx, filters.StoreID, filters.StartDate, filters.EndDate)
	if filters.OrderID != nil {
		query = query.Where("order_id = ?", *filters.OrderID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count returns")
	}

	var out []models.ReturnRequest
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Order("id ASC").
		Limit(pagination.NormalizeLimit(filters.Limit)).
		Offset(max(filters.Offset, 0)).
		Find(&out).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list returns")
	}
	return out, total, nil
}

// ListSyncFailures returns completed returns whose refund push failed,
// oldest first.
func (r *Repository) ListSyncFailures(ctx context.Context, limit int) ([]models.ReturnRequest, error) {
	var out []models.ReturnRequest
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND platform_sync_status = ?", enums.ReturnCompleted, enums.PlatformSyncFailed).
		Order("updated_at ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&out).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list return sync failures")
	}
	return out, nil
}

// Analytics counts returns by status and totals refunded amounts.
func (r *Repository) Analytics(ctx context.Context, filters AnalyticsFilters) (*Analytics, error) {
	var rows []struct {
		Status enums.ReturnStatus
		Count  int64
	}
	err := r.scoped(ctx, filters.StoreID, filters.StartDate, filters.EndDate).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "returns by status")
	}

	var refunded struct {
		Total decimal.Decimal
	}
	err = r.scoped(ctx, filters.StoreID, filters.StartDate, filters.EndDate).
		Select("COALESCE(SUM(refund_amount), 0) AS total").
		Where("refund_amount IS NOT NULL").
		Scan(&refunded).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refund total")
	}

	out := &Analytics{
		ByStatus:          make(map[enums.ReturnStatus]int64, len(rows)),
		TotalRefundAmount: refunded.Total.Round(2),
	}
	for _, row := range rows {
		out.ByStatus[row.Status] = row.Count
		out.TotalReturns += row.Count
	}
	return out, nil
}
