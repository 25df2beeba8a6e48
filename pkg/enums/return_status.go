package enums

import "fmt"

// ReturnStatus is the lifecycle of a return request.
type ReturnStatus string

const (
	ReturnPending    ReturnStatus = "PENDING"
	ReturnApproved   ReturnStatus = "APPROVED"
	ReturnRejected   ReturnStatus = "REJECTED"
	ReturnReceived   ReturnStatus = "RECEIVED"
	ReturnInspecting ReturnStatus = "INSPECTING"
	ReturnCompleted  ReturnStatus = "COMPLETED"
	ReturnCancelled  ReturnStatus = "CANCELLED"
)

var validReturnStatuses = []ReturnStatus{
	ReturnPending,
	ReturnApproved,
	ReturnRejected,
	ReturnReceived,
	ReturnInspecting,
	ReturnCompleted,
	ReturnCancelled,
}

// String implements fmt.Stringer.
func (s ReturnStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReturnStatus.
func (s ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the return is closed.
func (s ReturnStatus) IsTerminal() bool {
	switch s {
	case ReturnRejected, ReturnCompleted, ReturnCancelled:
		return true
	}
	return false
}

var returnMoves = map[ReturnStatus][]ReturnStatus{
	ReturnPending:    {ReturnApproved, ReturnRejected, ReturnCancelled},
	ReturnApproved:   {ReturnReceived, ReturnCompleted, ReturnCancelled},
	ReturnReceived:   {ReturnInspecting, ReturnCompleted, ReturnCancelled},
	ReturnInspecting: {ReturnCompleted, ReturnCancelled},
}

// CanMoveTo reports whether a return may go from s to next. Refunds complete
// an approved or received return; inspection is part of receiving.
func (s ReturnStatus) CanMoveTo(next ReturnStatus) bool {
	for _, candidate := range returnMoves[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}
