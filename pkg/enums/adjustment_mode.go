package enums

import (
	"fmt"
	"strings"
)

// AdjustmentMode selects how an amount is applied to on-hand stock.
type AdjustmentMode string

const (
	AdjustmentSet      AdjustmentMode = "SET"
	AdjustmentAdd      AdjustmentMode = "ADD"
	AdjustmentSubtract AdjustmentMode = "SUBTRACT"
)

var validAdjustmentModes = []AdjustmentMode{
	AdjustmentSet,
	AdjustmentAdd,
	AdjustmentSubtract,
}

// String implements fmt.Stringer.
func (m AdjustmentMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known AdjustmentMode.
func (m AdjustmentMode) IsValid() bool {
	for _, candidate := range validAdjustmentModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseAdjustmentMode accepts the mode in any case ("set", "Add", ...).
func ParseAdjustmentMode(value string) (AdjustmentMode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validAdjustmentModes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid adjustment mode %q", value)
}
