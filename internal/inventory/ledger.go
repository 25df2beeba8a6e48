package inventory

import (
	"fmt"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
)

// Ledger is the quantity triple of one inventory row. Every mutation is
// computed on a Ledger first and written back in a single statement.
type Ledger struct {
	Quantity  int
	Reserved  int
	Available int
}

// LedgerOf extracts the quantity triple from a persisted row.
func LedgerOf(item models.InventoryItem) Ledger {
	return Ledger{
		Quantity:  item.Quantity,
		Reserved:  item.ReservedQuantity,
		Available: item.AvailableQuantity,
	}
}

func newLedger(quantity, reserved int) Ledger {
	return Ledger{Quantity: quantity, Reserved: reserved, Available: quantity - reserved}
}

// Check enforces 0 <= reserved <= quantity and available == quantity - reserved.
func (l Ledger) Check() error {
	switch {
	case l.Quantity < 0:
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "on-hand quantity cannot be negative")
	case l.Reserved < 0:
		return pkgerrors.New(pkgerrors.CodeInternal, "reserved quantity cannot be negative")
	case l.Reserved > l.Quantity:
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "reserved quantity exceeds on-hand quantity").
			WithDetails(map[string]any{"quantity": l.Quantity, "reserved": l.Reserved})
	case l.Available != l.Quantity-l.Reserved:
		return pkgerrors.New(pkgerrors.CodeInternal, "available quantity out of sync")
	}
	return nil
}

// Adjust applies amount to on-hand stock. Reserved stock is untouched, so a
// result that would leave less on hand than is reserved is rejected.
func Adjust(l Ledger, amount int, mode enums.AdjustmentMode) (Ledger, error) {
	if amount < 0 {
		return l, pkgerrors.New(pkgerrors.CodeValidation, "amount must be zero or positive")
	}

	var quantity int
	switch mode {
	case enums.AdjustmentSet:
		quantity = amount
	case enums.AdjustmentAdd:
		quantity = l.Quantity + amount
	case enums.AdjustmentSubtract:
		quantity = l.Quantity - amount
		if quantity < 0 {
			return l, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("cannot subtract %d from %d on hand", amount, l.Quantity)).
				WithDetails(map[string]any{"quantity": l.Quantity, "requested": amount})
		}
	default:
		return l, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid adjustment mode %q", mode))
	}

	next := newLedger(quantity, l.Reserved)
	if next.Available < 0 {
		return l, pkgerrors.New(pkgerrors.CodeInsufficientStock, "adjustment would leave reserved stock uncovered").
			WithDetails(map[string]any{"quantity": quantity, "reserved": l.Reserved})
	}
	return next, nil
}

// Restock adds amount to on-hand stock.
func Restock(l Ledger, amount int) (Ledger, error) {
	if amount <= 0 {
		return l, pkgerrors.New(pkgerrors.CodeValidation, "restock amount must be positive")
	}
	return Adjust(l, amount, enums.AdjustmentAdd)
}

// Reserve claims qty of the available balance without consuming stock.
func Reserve(l Ledger, qty int) (Ledger, error) {
	if qty <= 0 {
		return l, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if l.Available < qty {
		return l, pkgerrors.New(pkgerrors.CodeInsufficientAvailable, fmt.Sprintf("only %d available, %d requested", l.Available, qty)).
			WithDetails(map[string]any{"available": l.Available, "requested": qty})
	}
	return newLedger(l.Quantity, l.Reserved+qty), nil
}

// Release returns up to qty reserved units to the available balance. Asking
// for more than is reserved clamps at zero.
func Release(l Ledger, qty int) (Ledger, int, error) {
	if qty <= 0 {
		return l, 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	released := min(qty, l.Reserved)
	return newLedger(l.Quantity, l.Reserved-released), released, nil
}

// Consume ships qty reserved units: they leave both the on-hand and the
// reserved balance, so available stock is unchanged.
func Consume(l Ledger, qty int) (Ledger, error) {
	if qty <= 0 {
		return l, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if l.Reserved < qty {
		return l, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("only %d reserved, cannot ship %d", l.Reserved, qty)).
			WithDetails(map[string]any{"reserved": l.Reserved, "requested": qty})
	}
	return newLedger(l.Quantity-qty, l.Reserved-qty), nil
}

// Reinstate undoes Consume for a shipment that never left: the units come
// back on hand and stay reserved for their order.
func Reinstate(l Ledger, qty int) (Ledger, error) {
	if qty <= 0 {
		return l, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return newLedger(l.Quantity+qty, l.Reserved+qty), nil
}
