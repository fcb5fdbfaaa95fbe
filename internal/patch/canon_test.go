package patch

import "testing"

func TestCanonUnicodeNormalization(t *testing.T) {
	cases := map[string]string{
		"hello—world": "hello-world",
		"“hello”": `"hello"`,
		"it’s":          "it's",
		"hello world":  "hello world",
	}
	for in, want := range cases {
		if got := Canon(in); got != want {
			t.Errorf("Canon(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonMultipleSubstitutions(t *testing.T) {
	in := "—“smart quotes”—’apostrophe’ test"
	want := `-"smart quotes"-'apostrophe' test`
	if got := Canon(in); got != want {
		t.Errorf("Canon(%q) = %q, want %q", in, got, want)
	}
}

func TestCanonIdempotent(t *testing.T) {
	in := "already — ascii \"text\" 'here'"
	once := Canon(in)
	twice := Canon(once)
	if once != twice {
		t.Errorf("Canon is not idempotent: %q != %q", once, twice)
	}
}
