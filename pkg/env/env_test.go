package env

import "testing"

func TestGetAndFirst(t *testing.T) {
	t.Setenv("SHOPLEDGER_ENV_TEST_A", "  ")
	t.Setenv("SHOPLEDGER_ENV_TEST_B", " value ")

	if got := Get("SHOPLEDGER_ENV_TEST_A", "fallback"); got != "fallback" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
	if got := Get("SHOPLEDGER_ENV_TEST_B", "fallback"); got != "value" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	if got := First("SHOPLEDGER_ENV_TEST_MISSING", "SHOPLEDGER_ENV_TEST_A", "SHOPLEDGER_ENV_TEST_B"); got != "value" {
		t.Fatalf("expected first non-blank, got %q", got)
	}
	if got := First(); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
