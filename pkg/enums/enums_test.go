package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("IN_PROGRESS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != OrderStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", got)
	}
	if _, err := ParseOrderStatus("in_progress"); err == nil {
		t.Fatal("expected lowercase status to be rejected")
	}
}

func TestIsValidRejectsUnknownValues(t *testing.T) {
	if PaymentStatus("").IsValid() {
		t.Fatal("empty payment status must not be valid")
	}
	if !DebtStatusWrittenOff.IsValid() {
		t.Fatal("expected WRITTEN_OFF to be valid")
	}
	if BillingCycle("WEEKLY").IsValid() {
		t.Fatal("WEEKLY is not a supported billing cycle")
	}
	if !SubscriptionStatusPastDue.IsValid() {
		t.Fatal("expected PAST_DUE to be valid")
	}
}

func TestParseCurrency(t *testing.T) {
	if _, err := ParseCurrency("XYZ"); err == nil {
		t.Fatal("expected unknown currency error")
	}
	c, err := ParseCurrency("KES")
	if err != nil || c != CurrencyKES {
		t.Fatalf("expected KES, got %q (%v)", c, err)
	}
}
