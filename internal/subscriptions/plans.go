package subscriptions

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
)

// Change classifies moving from one plan to another.
type Change string

const (
	ChangeUpgrade   Change = "upgrade"
	ChangeDowngrade Change = "downgrade"
	// ChangeLateral covers equal prices and shops with no plan yet.
	ChangeLateral Change = "lateral"
)

// PlanOption is a plan the shop could switch to.
type PlanOption struct {
	Plan   models.BillingPlan `json:"plan"`
	Change Change             `json:"change"`
}

// ClassifyPlanChange compares list prices. Equal prices are lateral.
func ClassifyPlanChange(current *models.BillingPlan, candidate models.BillingPlan) Change {
	if current == nil {
		return ChangeLateral
	}
	switch candidate.Price.Cmp(current.Price) {
	case 1:
		return ChangeUpgrade
	case -1:
		return ChangeDowngrade
	default:
		return ChangeLateral
	}
}

// PlanOptions lists the active plans other than current, classified.
func PlanOptions(current *models.BillingPlan, plans []models.BillingPlan) []PlanOption {
	currentID := uuid.Nil
	if current != nil {
		currentID = current.ID
	}
	options := make([]PlanOption, 0, len(plans))
	for _, plan := range plans {
		if !plan.IsActive || plan.ID == currentID {
			continue
		}
		options = append(options, PlanOption{Plan: plan, Change: ClassifyPlanChange(current, plan)})
	}
	return options
}
