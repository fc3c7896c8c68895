package fingerprint

import "testing"

func TestKeyDeterministic(t *testing.T) {
	texts := []string{
		"",
		"hello world",
		"hello world ", // trailing space keys separately
		"Hello World",
		"The registrant entered into a merger agreement.",
		"revenue: 1,200, 1,350, 1,410",
	}

	seen := make(map[string]string)
	for _, text := range texts {
		k1 := Key(text)
		k2 := Key(text)
		if k1 != k2 {
			t.Errorf("Key(%q) not deterministic: %s vs %s", text, k1, k2)
		}
		if len(k1) != 64 {
			t.Errorf("Key(%q) length = %d, want 64", text, len(k1))
		}
		if prev, ok := seen[k1]; ok {
			t.Errorf("Key collision between %q and %q", prev, text)
		}
		seen[k1] = text
	}
}

func TestKeyKnownValue(t *testing.T) {
	// SHA-256 of the empty string is a published constant.
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Key(""); got != want {
		t.Errorf("Key(\"\") = %s, want %s", got, want)
	}
}
