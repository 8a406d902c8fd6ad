package id

import "testing"

func TestParseAddress(t *testing.T) {
	valid := "0x00000000000000000000000000000000000000AA"
	if _, err := ParseAddress(valid); err != nil {
		t.Fatalf("expected valid address, got %v", err)
	}
	invalid := []string{
		"",
		"0x1234",
		"00000000000000000000000000000000000000AAAA",
		"0x00000000000000000000000000000000000000ZZ",
		"0x00000000000000000000000000000000000000AAA",
	}
	for _, v := range invalid {
		if _, err := ParseAddress(v); err == nil {
			t.Fatalf("expected %q to be rejected", v)
		}
	}
}

func TestShortAddress(t *testing.T) {
	got := ShortAddress("0x1234567890abcdef1234567890abcdef1234abcd")
	if got != "0x1234...abcd" {
		t.Fatalf("unexpected short address: %s", got)
	}
}
