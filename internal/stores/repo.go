package stores

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/pkg/db"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
)

// Repository handles store and warehouse persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to store operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new store row.
func (r *Repository) Create(ctx context.Context, store *models.Store) error {
	if err := r.db.WithContext(ctx).Create(store).Error; err != nil {
		if db.IsUniqueViolation(err, "ux_stores_shopify_domain") || db.IsUniqueViolation(err, "stores.shopify_domain") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "store domain already connected")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create store")
	}
	return nil
}

// FindByID loads a store by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&store).Error; err != nil {
		return nil, notFound(err, "store not found", "load store")
	}
	return &store, nil
}

// FindByDomain loads the store connected to a platform shop domain.
func (r *Repository) FindByDomain(ctx context.Context, domain string) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).
		Where("LOWER(shopify_domain) = ?", strings.ToLower(strings.TrimSpace(domain))).
		First(&store).Error
	if err != nil {
		return nil, notFound(err, "store not found for shop domain", "load store by domain")
	}
	return &store, nil
}

// CreateWarehouse persists a stocking location.
func (r *Repository) CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error {
	if err := r.db.WithContext(ctx).Create(warehouse).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create warehouse")
	}
	return nil
}

// ListWarehouses returns a store's warehouses in selection order.
func (r *Repository) ListWarehouses(ctx context.Context, storeID uuid.UUID) ([]models.Warehouse, error) {
	var out []models.Warehouse
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("priority ASC").
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list warehouses")
	}
	return out, nil
}

func notFound(err error, missing, op string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, missing)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}
