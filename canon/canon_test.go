package canon

import "testing"

func TestCanonicalize(t *testing.T) {
	// WHAT: Equivalent URL spellings collapse to one canonical form.
	// WHY: The canonical URL is the dedup identity for the whole crawl.
	c := New(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"case and fragment", "https://Host.EX/a/?b=2&a=1#x", "https://host.ex/a?a=1&b=2"},
		{"already canonical", "https://host.ex/a?a=1&b=2", "https://host.ex/a?a=1&b=2"},
		{"root slash kept", "https://host.ex/", "https://host.ex/"},
		{"no path", "https://host.ex", "https://host.ex"},
		{"trailing slash stripped", "https://host.ex/a/b/", "https://host.ex/a/b"},
		{"fragment only", "https://host.ex/p#frag", "https://host.ex/p"},
		{"query sorted", "https://host.ex/p?z=1&m=2&a=3", "https://host.ex/p?a=3&m=2&z=1"},
		{"repeated key order kept", "https://host.ex/p?b=2&a=1&a=0", "https://host.ex/p?a=1&a=0&b=2"},
		{"port preserved", "https://Host.EX:8443/a/", "https://host.ex:8443/a"},
		{"userinfo preserved", "https://user:pw@host.ex/a", "https://user:pw@host.ex/a"},
		{"empty input", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Canonicalize(tt.in); got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	// WHAT: canon(canon(u)) == canon(u) for a spread of inputs.
	// WHY: Queue and document keys are canonical URLs; re-canonicalizing a
	// stored key must never produce a new identity.
	c := New(map[string]string{"site.test": "www.site.test"})

	inputs := []string{
		"https://Host.EX/a/?b=2&a=1#x",
		"http://site.test/path/",
		"https://host.ex/p?q=hello%20world&a=%2Fslash",
		"https://host.ex:8080/deep/path/?z=9&y=8&x=7",
		"https://host.ex/",
	}
	for _, in := range inputs {
		once := c.Canonicalize(in)
		twice := c.Canonicalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestCanonicalizeHostAlias(t *testing.T) {
	// WHAT: Configured apex hosts are rewritten to their alias.
	// WHY: Sites serving identical content on apex and www must dedup to one key.
	c := New(map[string]string{"site.test": "www.site.test"})

	got := c.Canonicalize("https://Site.TEST/page")
	want := "https://www.site.test/page"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	// Aliased form is stable.
	if again := c.Canonicalize(got); again != want {
		t.Errorf("alias not idempotent: %q", again)
	}
}

func TestDomain(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://Host.EX/a", "host.ex"},
		{"https://host.ex:8080/a", "host.ex:8080"},
		{"not a url at all ::", ""},
		{"/relative/only", ""},
	}
	for _, tt := range tests {
		if got := Domain(tt.in); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
