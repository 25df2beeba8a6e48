package stores

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/shopify"
)

// CreateStoreInput connects a platform shop.
type CreateStoreInput struct {
	Name          string
	ShopifyDomain string
	AccessToken   *string
	Email         *string
}

// CreateWarehouseInput adds a stocking location to a store.
type CreateWarehouseInput struct {
	StoreID  uuid.UUID
	Name     string
	Code     string
	Priority int
}

// Service resolves stores, warehouses and the platform credentials of a store.
type Service struct {
	repo *Repository
}

// NewService wires the store repository.
func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stores repository required")
	}
	return &Service{repo: repo}, nil
}

// Create connects a new store.
func (s *Service) Create(ctx context.Context, input CreateStoreInput) (*models.Store, error) {
	name := strings.TrimSpace(input.Name)
	domain := strings.ToLower(strings.TrimSpace(input.ShopifyDomain))
	if name == "" || domain == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and shopify_domain are required")
	}
	store := &models.Store{
		Name:          name,
		ShopifyDomain: domain,
		AccessToken:   input.AccessToken,
		Email:         input.Email,
	}
	if err := s.repo.Create(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

// GetByID loads one store.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByDomain resolves the store behind a webhook's shop domain.
func (s *Service) GetByDomain(ctx context.Context, domain string) (*models.Store, error) {
	if strings.TrimSpace(domain) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop domain is required")
	}
	return s.repo.FindByDomain(ctx, domain)
}

// Credentials returns what the platform client needs to act for a store.
// A store without an access token cannot be synced.
func (s *Service) Credentials(ctx context.Context, storeID uuid.UUID) (shopify.Credentials, error) {
	store, err := s.repo.FindByID(ctx, storeID)
	if err != nil {
		return shopify.Credentials{}, err
	}
	if store.AccessToken == nil || strings.TrimSpace(*store.AccessToken) == "" {
		return shopify.Credentials{}, pkgerrors.New(pkgerrors.CodeValidation, "store has no platform access token").
			WithDetails(map[string]any{"store_id": storeID})
	}
	return shopify.Credentials{ShopDomain: store.ShopifyDomain, AccessToken: *store.AccessToken}, nil
}

// CreateWarehouse adds a stocking location.
func (s *Service) CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*models.Warehouse, error) {
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store_id is required")
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and code are required")
	}
	if _, err := s.repo.FindByID(ctx, input.StoreID); err != nil {
		return nil, err
	}
	warehouse := &models.Warehouse{
		StoreID:  input.StoreID,
		Name:     strings.TrimSpace(input.Name),
		Code:     strings.ToUpper(strings.TrimSpace(input.Code)),
		Priority: input.Priority,
		IsActive: true,
	}
	if err := s.repo.CreateWarehouse(ctx, warehouse); err != nil {
		return nil, err
	}
	return warehouse, nil
}

// ListWarehouses lists a store's warehouses, preferred first.
func (s *Service) ListWarehouses(ctx context.Context, storeID uuid.UUID) ([]models.Warehouse, error) {
	return s.repo.ListWarehouses(ctx, storeID)
}
