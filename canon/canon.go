// Package canon normalizes URLs into a deterministic comparable identity.
//
// Two URLs that differ only in scheme/host casing, trailing slash, query
// parameter order, or fragment canonicalize to the same string. The result
// is idempotent: Canonicalize(Canonicalize(u)) == Canonicalize(u).
package canon

import (
	"net/url"
	"sort"
	"strings"
)

// Canonicalizer applies deterministic URL normalization with optional
// host aliasing (e.g. bare apex rewritten to the www subdomain).
type Canonicalizer struct {
	hostAliases map[string]string
}

// New creates a Canonicalizer. aliases maps a lowercased host to its
// replacement; nil is valid and means no aliasing.
func New(aliases map[string]string) *Canonicalizer {
	return &Canonicalizer{hostAliases: aliases}
}

// Canonicalize returns the canonical form of raw, or the empty string if
// raw is not a parseable URL. Callers must treat empty as "skip".
//
// Normalization: lowercase scheme and host, apply host aliases, strip one
// trailing slash (except on the root path), sort query parameters
// lexicographically by key and re-encode, drop the fragment. Userinfo,
// port, and path parameters pass through verbatim.
func (c *Canonicalizer) Canonicalize(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	if alias, ok := c.hostAliases[parsed.Host]; ok {
		parsed.Host = alias
	}

	if p := parsed.EscapedPath(); len(p) > 1 && strings.HasSuffix(p, "/") {
		parsed.RawPath = ""
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""

	if parsed.RawQuery != "" {
		parsed.RawQuery = sortQuery(parsed.Query())
	}

	return parsed.String()
}

// sortQuery re-encodes query parameters sorted lexicographically by key.
// Value order within a key is preserved.
func sortQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for _, k := range keys {
		for _, v := range params[k] {
			if buf.Len() > 0 {
				buf.WriteByte('&')
			}
			buf.WriteString(url.QueryEscape(k))
			buf.WriteByte('=')
			buf.WriteString(url.QueryEscape(v))
		}
	}
	return buf.String()
}

// Domain returns the lowercased host (including any port) of raw, or the
// empty string if raw is not a parseable URL.
func Domain(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}
