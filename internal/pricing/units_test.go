package pricing

import "testing"

func TestCanonicalUnit_SpanishAliases(t *testing.T) {
	cases := map[string]string{
		"unidades": "unit",
		"Unidad":   "unit",
		"PZAS":     "unit",
		"kilos":    "kg",
		"  KG  ":   "kg",
		"litros":   "l",
		"docena":   "dozen",
		"":         "unit",
		"metros":   "metros",
	}
	for token, want := range cases {
		if got := CanonicalUnit(token); got != want {
			t.Errorf("CanonicalUnit(%q) = %q, want %q", token, got, want)
		}
	}
}

func TestParsePackaging_PackPattern(t *testing.T) {
	cases := map[string]Packaging{
		"pack x10":     {BaseQty: 10, BaseUnit: "unit"},
		"Pack X 10":    {BaseQty: 10, BaseUnit: "unit"},
		"PAQUETE X 24": {BaseQty: 24, BaseUnit: "unit"},
		"caja x12":     {BaseQty: 12, BaseUnit: "unit"},
		"pack 6":       {BaseQty: 6, BaseUnit: "unit"},
		"paquete x2,5": {BaseQty: 2.5, BaseUnit: "unit"},
	}
	for label, want := range cases {
		got := ParsePackaging(label)
		if got != want {
			t.Errorf("ParsePackaging(%q) = %+v, want %+v", label, got, want)
		}
	}
}

func TestParsePackaging_LeadingCount(t *testing.T) {
	got := ParsePackaging("10 unidades")
	if got.BaseQty != 10 || got.BaseUnit != "unit" {
		t.Fatalf("expected 10 unit, got %+v", got)
	}

	// A leading count only packages countable items; "10 kg" is a plain label.
	got = ParsePackaging("10 kg")
	if got.BaseQty != 1 || got.BaseUnit != "10 kg" {
		t.Fatalf("expected pass-through for %q, got %+v", "10 kg", got)
	}
}

func TestParsePackaging_Dozen(t *testing.T) {
	for _, label := range []string{"docena", "dozen", "Docenas"} {
		got := ParsePackaging(label)
		if got.BaseQty != 12 || got.BaseUnit != "unit" {
			t.Errorf("ParsePackaging(%q) = %+v, want 12 unit", label, got)
		}
	}
}

func TestParsePackaging_PlainUnit(t *testing.T) {
	got := ParsePackaging("kg")
	if got.BaseQty != 1 || got.BaseUnit != "kg" {
		t.Fatalf("expected 1 kg, got %+v", got)
	}

	got = ParsePackaging("")
	if got.BaseQty != 1 || got.BaseUnit != "unit" {
		t.Fatalf("expected empty label to price per unit, got %+v", got)
	}
}
