package rank

import "strings"

// NormalizeBlogURL produces a canonical comparison key for a blog URL so two
// spellings of the same post compare equal: scheme and leading "www." are
// dropped, the query string and a single trailing slash are removed and the
// remainder is lower-cased. Malformed input is not an error; it simply
// canonicalises to itself after the substitutions.
func NormalizeBlogURL(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "/")
	return s
}

// SameBlogURL reports whether two URL strings point at the same target.
// The match is deliberately loose: after normalisation either side may carry
// extra path segments the other lacks (stored targets and SERP links are not
// captured consistently), so a mutual substring test is used.
func SameBlogURL(a, b string) bool {
	na, nb := NormalizeBlogURL(a), NormalizeBlogURL(b)
	if na == "" || nb == "" {
		return na == nb && na != ""
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}
