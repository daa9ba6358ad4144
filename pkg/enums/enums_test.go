package enums

import "testing"

func TestParseCurrencyNormalizes(t *testing.T) {
	got, err := ParseCurrency(" gbp ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != CurrencyGBP {
		t.Fatalf("expected GBP, got %s", got)
	}
	if _, err := ParseCurrency("EUR"); err == nil {
		t.Fatalf("expected EUR to be rejected")
	}
}

func TestParseQuoteActionIsCaseSensitive(t *testing.T) {
	if _, err := ParseQuoteAction("applyPromo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseQuoteAction("APPLYPROMO"); err == nil {
		t.Fatalf("expected mismatched casing to be rejected")
	}
}

func TestDiscountEnumsValidity(t *testing.T) {
	if !DiscountKindPackage.IsValid() || DiscountKind("bundle").IsValid() {
		t.Fatalf("discount kind validity mismatch")
	}
	if mode, err := ParseOfferMode("BONUS_ITEM"); err != nil || mode != OfferModeBonusItem {
		t.Fatalf("expected bonus_item, got %q (%v)", mode, err)
	}
	if _, err := ParseDiscountType("percent"); err == nil {
		t.Fatalf("expected unknown discount type to fail")
	}
}
