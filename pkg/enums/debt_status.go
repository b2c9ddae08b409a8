package enums

import "fmt"

// DebtStatus tracks collection progress of an outstanding order balance.
type DebtStatus string

const (
	DebtStatusActive        DebtStatus = "ACTIVE"
	DebtStatusPartiallyPaid DebtStatus = "PARTIALLY_PAID"
	DebtStatusPaid          DebtStatus = "PAID"
	DebtStatusWrittenOff    DebtStatus = "WRITTEN_OFF"
)

var validDebtStatuses = []DebtStatus{
	DebtStatusActive,
	DebtStatusPartiallyPaid,
	DebtStatusPaid,
	DebtStatusWrittenOff,
}

// String implements fmt.Stringer.
func (d DebtStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DebtStatus.
func (d DebtStatus) IsValid() bool {
	for _, candidate := range validDebtStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDebtStatus converts raw input into a DebtStatus.
func ParseDebtStatus(value string) (DebtStatus, error) {
	for _, candidate := range validDebtStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid debt status %q", value)
}
