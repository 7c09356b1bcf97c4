package checksum

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Hello   World  ", "hello world"},
		{"Tabs\tand\nnewlines", "tabs and newlines"},
		{"", ""},
		{"   ", ""},
		{"Already normal", "already normal"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSignatureStableAcrossFormatting(t *testing.T) {
	a := Signature([]string{"Great ramen in Tokyo.", "Stay in Shinjuku."})
	b := Signature([]string{"  great   RAMEN in\ntokyo. ", "stay in shinjuku."})
	if a != b {
		t.Error("signature should be stable across whitespace and case differences")
	}

	c := Signature([]string{"Great ramen in Tokyo.", "Stay in Shibuya."})
	if a == c {
		t.Error("different content should produce a different signature")
	}
}

func TestSignatureSkipsEmptyBodies(t *testing.T) {
	a := Signature([]string{"one", "", "   ", "two"})
	b := Signature([]string{"one", "two"})
	if a != b {
		t.Error("blank bodies should not affect the signature")
	}
}

func TestSignatureOrderMatters(t *testing.T) {
	a := Signature([]string{"one", "two"})
	b := Signature([]string{"two", "one"})
	if a == b {
		t.Error("section order should affect the signature")
	}
}

func TestSumKnownValue(t *testing.T) {
	// sha256 of the empty string.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %q", got)
	}
}
