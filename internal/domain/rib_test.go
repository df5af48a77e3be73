package domain

import (
	"errors"
	"testing"
)

func TestComputeRIBKey(t *testing.T) {
	cases := []struct {
		bank, branch, account string
		want                  string
	}{
		{"30002", "00550", "00000012345", "52"},
		{"12345", "67890", "12345678901", "04"},
		// Letters transliterate per the RIB table: M -> 4.
		{"20041", "01005", "0500013M026", "06"},
	}
	for _, c := range cases {
		got, err := ComputeRIBKey(c.bank, c.branch, c.account)
		if err != nil {
			t.Fatalf("ComputeRIBKey(%s, %s, %s) error: %v", c.bank, c.branch, c.account, err)
		}
		if got != c.want {
			t.Errorf("ComputeRIBKey(%s, %s, %s) = %q, want %q", c.bank, c.branch, c.account, got, c.want)
		}
	}
}

func TestComputeRIBKeyPadsShortComponents(t *testing.T) {
	padded, err := ComputeRIBKey("00042", "00007", "00000000123")
	if err != nil {
		t.Fatalf("padded form error: %v", err)
	}
	short, err := ComputeRIBKey("42", "7", "123")
	if err != nil {
		t.Fatalf("short form error: %v", err)
	}
	if padded != short {
		t.Fatalf("expected identical keys for padded and short forms, got %q and %q", padded, short)
	}
}

func TestComputeRIBKeyRejectsBadComponents(t *testing.T) {
	if _, err := ComputeRIBKey("", "00550", "00000012345"); !errors.Is(err, ErrInvalidRIB) {
		t.Fatalf("expected ErrInvalidRIB for empty bank, got %v", err)
	}
	if _, err := ComputeRIBKey("123456", "00550", "00000012345"); !errors.Is(err, ErrInvalidRIB) {
		t.Fatalf("expected ErrInvalidRIB for oversized bank, got %v", err)
	}
	if _, err := ComputeRIBKey("30002", "00550", "0000001234!"); !errors.Is(err, ErrInvalidRIB) {
		t.Fatalf("expected ErrInvalidRIB for bad character, got %v", err)
	}
}

func TestVerifyRIBKey(t *testing.T) {
	if !VerifyRIBKey("30002", "00550", "00000012345", "52") {
		t.Fatal("expected matching key to verify")
	}
	if !VerifyRIBKey("30002", "00550", "00000012345", " 52 ") {
		t.Fatal("expected whitespace around the stored key to be tolerated")
	}
	if VerifyRIBKey("30002", "00550", "00000012345", "53") {
		t.Fatal("expected mismatched key to fail")
	}
	if VerifyRIBKey("", "00550", "00000012345", "52") {
		t.Fatal("expected invalid components to fail verification")
	}
}
