package sweep

import (
	"math/big"
	"testing"
)

func TestParseUnits(t *testing.T) {
	cases := []struct {
		value    string
		decimals int
		want     string
	}{
		{"0.05", 18, "50000000000000000"},
		{"0.03", 6, "30000"},
		{"1", 6, "1000000"},
		{"0", 18, "0"},
		{"0.0005", 18, "500000000000000"},
	}
	for _, tc := range cases {
		got, err := ParseUnits(tc.value, tc.decimals)
		if err != nil {
			t.Fatalf("ParseUnits(%q, %d) returned error: %v", tc.value, tc.decimals, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseUnits(%q, %d) = %s, want %s", tc.value, tc.decimals, got, tc.want)
		}
	}
}

func TestParseUnitsRejectsInvalid(t *testing.T) {
	if _, err := ParseUnits("abc", 18); err == nil {
		t.Fatal("expected error for non-numeric amount")
	}
	if _, err := ParseUnits("-1", 18); err == nil {
		t.Fatal("expected error for negative amount")
	}
	if _, err := ParseUnits("0.1234567", 6); err == nil {
		t.Fatal("expected error for excess precision")
	}
}

func TestFormatUnits(t *testing.T) {
	amount, _ := new(big.Int).SetString("50000000000000000", 10)
	if got := FormatUnits(amount, 18); got != "0.05" {
		t.Fatalf("FormatUnits = %s, want 0.05", got)
	}
	if got := FormatUnits(nil, 18); got != "0" {
		t.Fatalf("FormatUnits(nil) = %s, want 0", got)
	}
	if got := FormatUnits(big.NewInt(30000), 6); got != "0.03" {
		t.Fatalf("FormatUnits = %s, want 0.03", got)
	}
}
