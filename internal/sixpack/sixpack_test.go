package sixpack

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []string{
		"a",
		"ab",
		"abc",
		"abcd",
		"user:1234",
		"session:abcdef:9",
		"0123456789",
	}
	for _, s := range cases {
		packed, ok := Pack([]byte(s))
		if !ok {
			t.Fatalf("Pack(%q): expected sixpackable", s)
		}
		got := Unpack(packed)
		if string(got) != s {
			t.Fatalf("round trip mismatch: got %q want %q", got, s)
		}
	}
}

func TestPackRejectsOutsideAlphabet(t *testing.T) {
	for _, s := range []string{"Q", "Z", "z", "hello world", "k\x00"} {
		if _, ok := Pack([]byte(s)); ok {
			t.Fatalf("Pack(%q): expected rejection", s)
		}
	}
}

func TestPackPreservesOrder(t *testing.T) {
	keys := []string{"a", "ab", "abc", "b", "ba"}
	for i := 0; i < len(keys); i++ {
		for j := 0; j < len(keys); j++ {
			a, _ := Pack([]byte(keys[i]))
			b, _ := Pack([]byte(keys[j]))
			gotLess := compareBytes(a, b) < 0
			wantLess := keys[i] < keys[j]
			if gotLess != wantLess {
				t.Fatalf("order mismatch for %q vs %q", keys[i], keys[j])
			}
		}
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}
