package inventory

import (
	"context"
	"time"

	"github.com/angelmondragon/ordergenie-backend/pkg/db"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const uniqueProductWarehouse = "ux_inventory_items_product_warehouse"

// ListFilters narrows inventory list queries.
type ListFilters struct {
	StoreID     *uuid.UUID
	ProductID   *uuid.UUID
	WarehouseID *uuid.UUID
	LowStock    bool
	Limit       int
	Offset      int
}

// Analytics summarises the ledger of a store, or of every store.
type Analytics struct {
	TotalItems      int64 `json:"total_items"`
	TotalQuantity   int64 `json:"total_quantity"`
	TotalAvailable  int64 `json:"total_available"`
	TotalReserved   int64 `json:"total_reserved"`
	LowStockCount   int64 `json:"low_stock_count"`
	OutOfStockCount int64 `json:"out_of_stock_count"`
}

// Repository persists inventory rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
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

// Create stores the first stocking of a product in a warehouse.
func (r *Repository) Create(ctx context.Context, item *models.InventoryItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		if db.IsUniqueViolation(err, uniqueProductWarehouse) || db.IsUniqueViolation(err, "inventory_items.product_id") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product already stocked in this warehouse")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create inventory item")
	}
	return nil
}

// FindByID loads a single row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory item")
	}
	return &item, nil
}

// FindCandidates returns the rows stocking productID, optionally scoped to a
// warehouse. Unscoped lookups skip inactive warehouses and are ordered by
// warehouse priority, then available balance, then age.
func (r *Repository) FindCandidates(ctx context.Context, productID uuid.UUID, warehouseID *uuid.UUID) ([]models.InventoryItem, error) {
	query := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Select("inventory_items.*").
		Joins("LEFT JOIN warehouses ON warehouses.id = inventory_items.warehouse_id").
		Where("inventory_items.product_id = ?", productID)

	if warehouseID != nil {
		query = query.Where("inventory_items.warehouse_id = ?", *warehouseID)
	} else {
		query = query.Where("warehouses.id IS NULL OR warehouses.is_active = ?", true)
	}

	var items []models.InventoryItem
	err := query.
		Order("COALESCE(warehouses.priority, 2147483647) ASC").
		Order("inventory_items.available_quantity DESC").
		Order("inventory_items.created_at ASC").
		Order("inventory_items.id ASC").
		Find(&items).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory candidates")
	}
	return items, nil
}

// CompareAndSwap writes the ledger only when the row still carries version.
// It reports false when another writer got there first.
func (r *Repository) CompareAndSwap(ctx context.Context, id uuid.UUID, version int64, next Ledger, extra map[string]any) (bool, error) {
	updates := map[string]any{
		"quantity":           next.Quantity,
		"reserved_quantity":  next.Reserved,
		"available_quantity": next.Available,
		"version":            gorm.Expr("version + 1"),
		"updated_at":         time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "update inventory ledger")
	}
	return res.RowsAffected == 1, nil
}

// UpdateReorderSettings changes the replenishment thresholds.
func (r *Repository) UpdateReorderSettings(ctx context.Context, id uuid.UUID, point, quantity *int) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reorder_point":    point,
			"reorder_quantity": quantity,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "update reorder settings")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
	}
	return nil
}

// List returns one page of rows plus the total matching count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]models.InventoryItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InventoryItem{})
	if filters.StoreID != nil {
		query = query.Where("store_id = ?", *filters.StoreID)
	}
	if filters.ProductID != nil {
		query = query.Where("product_id = ?", *filters.ProductID)
	}
	if filters.WarehouseID != nil {
		query = query.Where("warehouse_id = ?", *filters.WarehouseID)
	}
	if filters.LowStock {
		query = query.Where("reorder_point IS NOT NULL AND available_quantity <= reorder_point")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count inventory items")
	}

	var items []models.InventoryItem
	err := query.
		Order("created_at DESC").
		Order("id ASC").
		Limit(pagination.NormalizeLimit(filters.Limit)).
		Offset(max(filters.Offset, 0)).
		Find(&items).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list inventory items")
	}
	return items, total, nil
}

// LowStock returns every row at or below its reorder point, emptiest first.
func (r *Repository) LowStock(ctx context.Context, storeID *uuid.UUID) ([]models.InventoryItem, error) {
	query := r.db.WithContext(ctx).
		Where("reorder_point IS NOT NULL AND available_quantity <= reorder_point")
	if storeID != nil {
		query = query.Where("store_id = ?", *storeID)
	}

	var items []models.InventoryItem
	if err := query.Order("available_quantity ASC").Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock items")
	}
	return items, nil
}

// Analytics aggregates the ledger in one query.
func (r *Repository) Analytics(ctx context.Context, storeID *uuid.UUID) (*Analytics, error) {
	query := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Select(`COUNT(*) AS total_items,
			COALESCE(SUM(quantity), 0) AS total_quantity,
			COALESCE(SUM(available_quantity), 0) AS total_available,
			COALESCE(SUM(reserved_quantity), 0) AS total_reserved,
			COALESCE(SUM(CASE WHEN reorder_point IS NOT NULL AND available_quantity <= reorder_point THEN 1 ELSE 0 END), 0) AS low_stock_count,
			COALESCE(SUM(CASE WHEN available_quantity = 0 THEN 1 ELSE 0 END), 0) AS out_of_stock_count`)
	if storeID != nil {
		query = query.Where("store_id = ?", *storeID)
	}

	var out Analytics
	if err := query.Scan(&out).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inventory analytics")
	}
	return &out, nil
}
