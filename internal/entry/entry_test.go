package entry

import "testing"

func TestBuildRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		key     []byte
		val     []byte
		expires int64
		flags   uint32
		cas     uint64
		opts    Options
	}{
		{"plain", []byte("hello world"), []byte("value"), 0, 0, 0, Options{}},
		{"sixpackable-with-expires", []byte("user:1234"), []byte("payload"), 99, 7, 3, Options{UseCAS: true}},
		{"nosixpack", []byte("user:1234"), []byte("payload"), 0, 0, 0, Options{NoSixpack: true}},
		{"empty-value", []byte("k"), nil, 0, 0, 0, Options{}},
		{"binary-key", []byte{0, 1, 2, 255}, []byte("v"), 0, 0, 0, Options{UseCAS: true}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := Build(c.key, c.val, c.expires, c.flags, c.cas, 1000, c.opts)
			if got := string(Key(e)); got != string(c.key) {
				t.Fatalf("Key: got %q want %q", got, c.key)
			}
			if got := string(Value(e)); got != string(c.val) {
				t.Fatalf("Value: got %q want %q", got, c.val)
			}
			if got := Expires(e); got != c.expires {
				t.Fatalf("Expires: got %d want %d", got, c.expires)
			}
			if got := Flags(e); got != c.flags {
				t.Fatalf("Flags: got %d want %d", got, c.flags)
			}
			wantCAS := c.cas
			if !c.opts.UseCAS {
				wantCAS = 0
			}
			if got := CAS(e); got != wantCAS {
				t.Fatalf("CAS: got %d want %d", got, wantCAS)
			}
			if got := AccessTime(e); got != 1000 {
				t.Fatalf("AccessTime: got %d want 1000", got)
			}
		})
	}
}

func TestSetAccessTime(t *testing.T) {
	e := Build([]byte("k"), []byte("v"), 0, 0, 0, 10, Options{})
	SetAccessTime(e, 20)
	if got := AccessTime(e); got != 20 {
		t.Fatalf("got %d want 20", got)
	}
	// key/value must be unaffected by an in-place access-time bump.
	if string(Key(e)) != "k" || string(Value(e)) != "v" {
		t.Fatalf("key/value corrupted after SetAccessTime")
	}
}

func TestAlive(t *testing.T) {
	e := Build([]byte("k"), []byte("v"), 500, 0, 0, 100, Options{})
	if r := Alive(e, 100, 0); r != ReasonNone {
		t.Fatalf("expected alive, got %v", r)
	}
	if r := Alive(e, 600, 0); r != ReasonExpired {
		t.Fatalf("expected expired, got %v", r)
	}
	if r := Alive(e, 100, 200); r != ReasonCleared {
		t.Fatalf("expected cleared, got %v", r)
	}
}

func TestKeyEqual(t *testing.T) {
	e := Build([]byte("user:42"), []byte("v"), 0, 0, 0, 0, Options{})
	if !KeyEqual(e, []byte("user:42")) {
		t.Fatalf("expected key to match")
	}
	if KeyEqual(e, []byte("user:43")) {
		t.Fatalf("expected key mismatch")
	}
}
