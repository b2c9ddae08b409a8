package enums

import "fmt"

// PlanType is the tier a billing plan belongs to.
type PlanType string

const (
	PlanTypeFree         PlanType = "FREE"
	PlanTypeProfessional PlanType = "PROFESSIONAL"
	PlanTypeEnterprise   PlanType = "ENTERPRISE"
)

var validPlanTypes = []PlanType{
	PlanTypeFree,
	PlanTypeProfessional,
	PlanTypeEnterprise,
}

// String implements fmt.Stringer.
func (p PlanType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanType.
func (p PlanType) IsValid() bool {
	for _, candidate := range validPlanTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanType converts raw input into a PlanType.
func ParsePlanType(value string) (PlanType, error) {
	for _, candidate := range validPlanTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan type %q", value)
}
