package completion

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("prompt", []string{"c1", "c2"})
	b := Fingerprint("prompt", []string{"c1", "c2"})
	if a != b {
		t.Fatalf("same input produced different fingerprints: %s vs %s", a, b)
	}
}

func TestFingerprintContextOrderMatters(t *testing.T) {
	a := Fingerprint("prompt", []string{"c1", "c2"})
	b := Fingerprint("prompt", []string{"c2", "c1"})
	if a == b {
		t.Fatalf("reordered context produced identical fingerprint")
	}
}

func TestFingerprintFraming(t *testing.T) {
	// Without length framing these would hash the same byte sequence.
	a := Fingerprint("ab", []string{"c"})
	b := Fingerprint("a", []string{"bc"})
	if a == b {
		t.Fatalf("framing failed: boundary shift produced identical fingerprint")
	}
	c := Fingerprint("abc", nil)
	if a == c || b == c {
		t.Fatalf("prompt-only input collided with prompt+context input")
	}
}

func TestFingerprintEmptyContext(t *testing.T) {
	if Fingerprint("p", nil) != Fingerprint("p", []string{}) {
		t.Fatalf("nil and empty context should fingerprint identically")
	}
}
