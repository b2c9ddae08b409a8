package views

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopledger-backend/pkg/db/models"
	"github.com/angelmondragon/shopledger-backend/pkg/enums"
)

func TestOrderBalanceClampsOverpayment(t *testing.T) {
	view := NewOrder(models.Order{
		Amount:     decimal.NewFromInt(100),
		PaidAmount: decimal.RequireFromString("106.66"),
		Currency:   enums.CurrencyUSD,
		Status:     enums.OrderStatusCompleted,
	})
	payload, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(payload)
	for _, want := range []string{`"amount":"100.00"`, `"paid_amount":"106.66"`, `"balance":"0.00"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}
}

func TestPlanFeaturesNeverNull(t *testing.T) {
	view := NewPlan(models.BillingPlan{Price: decimal.NewFromInt(29)})
	if view.Features == nil {
		t.Fatal("expected empty features slice")
	}
	if NewSubscription(nil) != nil || NewDebtPtr(nil) != nil {
		t.Fatal("nil models must map to nil views")
	}
}
