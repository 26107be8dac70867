package env

import "testing"

func TestFirst(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_A", "")
	t.Setenv("STOREFRONT_TEST_B", " console ")
	if got := First("json", "STOREFRONT_TEST_A", "STOREFRONT_TEST_B"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
	if got := First("json", "STOREFRONT_TEST_A"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
