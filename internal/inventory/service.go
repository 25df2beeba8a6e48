package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/ordergenie-backend/pkg/config"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/metrics"
	"github.com/angelmondragon/ordergenie-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultMaxCASAttempts = 5

// CreateItemInput stocks a product in a warehouse for the first time.
type CreateItemInput struct {
	StoreID         uuid.UUID
	ProductID       uuid.UUID
	WarehouseID     *uuid.UUID
	SKU             *string
	Quantity        int
	ReorderPoint    *int
	ReorderQuantity *int
}

// AdjustInput applies Amount to the on-hand quantity of one row.
type AdjustInput struct {
	ItemID uuid.UUID
	Amount int
	Mode   enums.AdjustmentMode
}

// ReservationInput names the product, quantity and optional warehouse scope
// of a reserve or release.
type ReservationInput struct {
	ProductID   uuid.UUID
	Quantity    int
	WarehouseID *uuid.UUID
}

// ReleaseResult reports the row touched by a release and how much of the
// request it actually returned.
type ReleaseResult struct {
	Item     *models.InventoryItem
	Released int
}

// ItemList is one page of inventory rows.
type ItemList struct {
	Items  []models.InventoryItem `json:"items"`
	Total  int64                  `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns every mutation of the quantity ledger.
type Service struct {
	repo        *Repository
	tx          txRunner
	metrics     *metrics.LedgerMetrics
	logg        *logger.Logger
	maxAttempts int
	now         func() time.Time
}

// NewService builds the ledger service.
func NewService(repo *Repository, tx txRunner, cfg config.InventoryConfig, ledgerMetrics *metrics.LedgerMetrics, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	attempts := cfg.MaxCASAttempts
	if attempts <= 0 {
		attempts = defaultMaxCASAttempts
	}
	return &Service{
		repo:        repo,
		tx:          tx,
		metrics:     ledgerMetrics,
		logg:        logg,
		maxAttempts: attempts,
		now:         time.Now,
	}, nil
}

// CreateItem stocks a product in a warehouse.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error) {
	if input.StoreID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store_id and product_id are required")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be zero or positive")
	}
	if err := validateReorder(input.ReorderPoint, input.ReorderQuantity); err != nil {
		return nil, err
	}

	ledger := newLedger(input.Quantity, 0)
	item := &models.InventoryItem{
		StoreID:           input.StoreID,
		ProductID:         input.ProductID,
		WarehouseID:       input.WarehouseID,
		SKU:               input.SKU,
		Quantity:          ledger.Quantity,
		ReservedQuantity:  ledger.Reserved,
		AvailableQuantity: ledger.Available,
		ReorderPoint:      input.ReorderPoint,
		ReorderQuantity:   input.ReorderQuantity,
		Version:           1,
	}
	if input.Quantity > 0 {
		stamp := s.now().UTC()
		item.LastRestockedAt = &stamp
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	s.logInfo(ctx, item, "inventory item created")
	return item, nil
}

// GetItem loads one row.
func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	return s.repo.FindByID(ctx, id)
}

// ListItems pages through rows matching filters.
func (s *Service) ListItems(ctx context.Context, filters ListFilters) (*ItemList, error) {
	filters.Limit = pagination.NormalizeLimit(filters.Limit)
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &ItemList{Items: items, Total: total, Limit: filters.Limit, Offset: filters.Offset}, nil
}

// Analytics summarises stock levels, optionally for a single store.
func (s *Service) Analytics(ctx context.Context, storeID *uuid.UUID) (*Analytics, error) {
	return s.repo.Analytics(ctx, storeID)
}

// Adjust applies a SET, ADD or SUBTRACT to on-hand stock.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (*models.InventoryItem, error) {
	if !input.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid adjustment mode %q", input.Mode))
	}
	item, err := s.mutateByID(ctx, nil, "adjust", input.ItemID, func(current models.InventoryItem) (Ledger, map[string]any, error) {
		next, err := Adjust(LedgerOf(current), input.Amount, input.Mode)
		return next, nil, err
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(s.withFields(ctx, map[string]any{"mode": input.Mode, "amount": input.Amount}), item, "inventory adjusted")
	return item, nil
}

// Restock adds stock and stamps the restock time.
func (s *Service) Restock(ctx context.Context, itemID uuid.UUID, amount int) (*models.InventoryItem, error) {
	return s.RestockTx(ctx, nil, itemID, amount)
}

// RestockTx is Restock inside the caller's transaction.
func (s *Service) RestockTx(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, amount int) (*models.InventoryItem, error) {
	stamp := s.now().UTC()
	item, err := s.mutateByID(ctx, tx, "restock", itemID, func(current models.InventoryItem) (Ledger, map[string]any, error) {
		next, err := Restock(LedgerOf(current), amount)
		return next, map[string]any{"last_restocked_at": stamp}, err
	})
	if err != nil {
		return nil, err
	}
	item.LastRestockedAt = &stamp
	s.logInfo(s.withFields(ctx, map[string]any{"amount": amount}), item, "inventory restocked")
	return item, nil
}

// RestockProduct restocks the preferred row of a product, used when returned
// goods go back on the shelf.
func (s *Service) RestockProduct(ctx context.Context, tx *gorm.DB, input ReservationInput) (*models.InventoryItem, error) {
	stamp := s.now().UTC()
	item, err := s.mutateByProduct(ctx, tx, "restock", input, func(candidates []models.InventoryItem) (models.InventoryItem, error) {
		return candidates[0], nil
	}, func(current models.InventoryItem) (Ledger, map[string]any, error) {
		next, err := Restock(LedgerOf(current), input.Quantity)
		return next, map[string]any{"last_restocked_at": stamp}, err
	})
	if err != nil {
		return nil, err
	}
	item.LastRestockedAt = &stamp
	s.logInfo(s.withFields(ctx, map[string]any{"amount": input.Quantity}), item, "inventory restocked")
	return item, nil
}

// Reserve claims available stock for a product.
func (s *Service) Reserve(ctx context.Context, input ReservationInput) (*models.InventoryItem, error) {
	return s.ReserveTx(ctx, nil, input)
}

// ReserveTx is Reserve inside the caller's transaction.
func (s *Service) ReserveTx(ctx context.Context, tx *gorm.DB, input ReservationInput) (*models.InventoryItem, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	item, err := s.mutateByProduct(ctx, tx, "reserve", input, func(candidates []models.InventoryItem) (models.InventoryItem, error) {
		for _, candidate := range candidates {
			if candidate.AvailableQuantity >= input.Quantity {
				return candidate, nil
			}
		}
		// Report against the preferred row so the error names its balance.
		return candidates[0], nil
	}, func(current models.InventoryItem) (Ledger, map[string]any, error) {
		next, err := Reserve(LedgerOf(current), input.Quantity)
		return next, nil, err
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(s.withFields(ctx, map[string]any{"requested": input.Quantity}), item, "inventory reserved")
	return item, nil
}

// Release returns reserved stock for a product, clamping at zero.
func (s *Service) Release(ctx context.Context, input ReservationInput) (*ReleaseResult, error) {
	return s.ReleaseTx(ctx, nil, input)
}

// ReleaseTx is Release inside the caller's transaction.
func (s *Service) ReleaseTx(ctx context.Context, tx *gorm.DB, input ReservationInput) (*ReleaseResult, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	released := 0
	item, err := s.mutateByProduct(ctx, tx, "release", input, func(candidates []models.InventoryItem) (models.InventoryItem, error) {
		for _, candidate := range candidates {
			if candidate.ReservedQuantity > 0 {
				return candidate, nil
			}
		}
		return candidates[0], nil
	}, func(current models.InventoryItem) (Ledger, map[string]any, error) {
		next, n, err := Release(LedgerOf(current), input.Quantity)
		released = n
		return next, nil, err
	})
	if err != nil {
		return nil, err
	}
	if released < input.Quantity {
		s.logWarn(s.withFields(ctx, map[string]any{"requested": input.Quantity, "released": released}), item, "release clamped to reserved quantity")
	} else {
		s.logInfo(s.withFields(ctx, map[string]any{"released": released}), item, "inventory released")
	}
	return &ReleaseResult{Item: item, Released: released}, nil
}

// ConsumeTx takes shipped units out of stock together with the reservation
// that held them.
func (s *Service) ConsumeTx(ctx context.Context, tx *gorm.DB, input ReservationInput) (*models.InventoryItem, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	item, err := s.mutateByProduct(ctx, tx, "consume", input, func(candidates []models.InventoryItem) (models.InventoryItem, error) {
		for _, candidate := range candidates {
			if candidate.ReservedQuantity >= input.Quantity {
				return candidate, nil
			}
		}
		return candidates[0], nil
	}, func(current models.InventoryItem) (Ledger, map[string]any, error) {
		next, err := Consume(LedgerOf(current), input.Quantity)
		return next, nil, err
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(s.withFields(ctx, map[string]any{"shipped": input.Quantity}), item, "inventory consumed")
	return item, nil
}

// ReinstateTx puts consumed units back on hand, still reserved.
func (s *Service) ReinstateTx(ctx context.Context, tx *gorm.DB, input ReservationInput) (*models.InventoryItem, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	item, err := s.mutateByProduct(ctx, tx, "reinstate", input, func(candidates []models.InventoryItem) (models.InventoryItem, error) {
		return candidates[0], nil
	}, func(current models.InventoryItem) (Ledger, map[string]any, error) {
		next, err := Reinstate(LedgerOf(current), input.Quantity)
		return next, nil, err
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(s.withFields(ctx, map[string]any{"reinstated": input.Quantity}), item, "inventory reinstated")
	return item, nil
}

// SetReorderPoint changes the thresholds the reorder advisor reads.
func (s *Service) SetReorderPoint(ctx context.Context, itemID uuid.UUID, point, quantity *int) (*models.InventoryItem, error) {
	if err := validateReorder(point, quantity); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateReorderSettings(ctx, itemID, point, quantity); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, itemID)
}

type ledgerStep func(current models.InventoryItem) (Ledger, map[string]any, error)

type candidatePicker func(candidates []models.InventoryItem) (models.InventoryItem, error)

func (s *Service) mutateByID(ctx context.Context, tx *gorm.DB, op string, id uuid.UUID, step ledgerStep) (*models.InventoryItem, error) {
	return s.mutate(ctx, tx, op, func(repo *Repository) (models.InventoryItem, error) {
		item, err := repo.FindByID(ctx, id)
		if err != nil {
			return models.InventoryItem{}, err
		}
		return *item, nil
	}, step)
}

func (s *Service) mutateByProduct(ctx context.Context, tx *gorm.DB, op string, input ReservationInput, pick candidatePicker, step ledgerStep) (*models.InventoryItem, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	return s.mutate(ctx, tx, op, func(repo *Repository) (models.InventoryItem, error) {
		candidates, err := repo.FindCandidates(ctx, input.ProductID, input.WarehouseID)
		if err != nil {
			return models.InventoryItem{}, err
		}
		if len(candidates) == 0 {
			return models.InventoryItem{}, pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found for product").
				WithDetails(map[string]any{"product_id": input.ProductID, "warehouse_id": input.WarehouseID})
		}
		return pick(candidates)
	}, step)
}

// mutate runs load, step and compare-and-swap until the write lands or the
// attempt budget is spent. Losing the race reloads the row and recomputes.
func (s *Service) mutate(ctx context.Context, tx *gorm.DB, op string, load func(*Repository) (models.InventoryItem, error), step ledgerStep) (*models.InventoryItem, error) {
	repo := s.repo.WithTx(tx)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current, err := load(repo)
		if err != nil {
			return nil, err
		}
		next, extra, err := step(current)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) || pkgerrors.IsCode(err, pkgerrors.CodeInsufficientAvailable) {
				s.metrics.IncRejected(op)
			}
			return nil, err
		}
		if err := next.Check(); err != nil {
			s.metrics.IncRejected(op)
			return nil, err
		}

		swapped, err := repo.CompareAndSwap(ctx, current.ID, current.Version, next, extra)
		if err != nil {
			return nil, err
		}
		if swapped {
			current.Quantity = next.Quantity
			current.ReservedQuantity = next.Reserved
			current.AvailableQuantity = next.Available
			current.Version++
			return &current, nil
		}
		s.metrics.IncConflict(op)
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("inventory %s lost %d concurrent updates", op, s.maxAttempts))
}

func validateReorder(point, quantity *int) error {
	if point != nil && *point < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reorder_point must be zero or positive")
	}
	if quantity != nil && *quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reorder_quantity must be zero or positive")
	}
	return nil
}

func (s *Service) withFields(ctx context.Context, fields map[string]any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *Service) entityCtx(ctx context.Context, item *models.InventoryItem) context.Context {
	ctx = s.logg.WithEntity(ctx, "inventory_item", item.ID)
	return s.logg.WithFields(ctx, map[string]any{
		"product_id":         item.ProductID,
		"quantity":           item.Quantity,
		"reserved_quantity":  item.ReservedQuantity,
		"available_quantity": item.AvailableQuantity,
	})
}

func (s *Service) logInfo(ctx context.Context, item *models.InventoryItem, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.entityCtx(ctx, item), msg)
}

func (s *Service) logWarn(ctx context.Context, item *models.InventoryItem, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.entityCtx(ctx, item), msg)
}
