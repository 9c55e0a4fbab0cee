// Package wildmat implements the narrow glob dialect used for newsgroup
// name matching: '*' matches any run of characters (including none) and
// '?' matches exactly one. Matching is anchored and case-sensitive.
//
// This is intentionally not a regular-expression engine: no classes, no
// back-references. Match runs on the intake hot path for every article
// against every configured pattern, so it must not allocate.
package wildmat

// Match reports whether candidate matches pattern in full.
//
// The implementation is the classic iterative two-pointer glob match:
// on a mismatch after a '*', the candidate position backtracks by one
// while the pattern restarts just past the star. O(n*m) worst case,
// zero allocations.
func Match(pattern, candidate string) bool {
	var p, c int
	star := -1
	mark := 0

	for c < len(candidate) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == candidate[c]):
			p++
			c++
		case p < len(pattern) && pattern[p] == '*':
			star = p
			mark = c
			p++
		case star >= 0:
			p = star + 1
			mark++
			c = mark
		default:
			return false
		}
	}

	// Only trailing stars may remain in the pattern.
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// MatchAny reports whether candidate matches any of the given patterns.
func MatchAny(patterns []string, candidate string) bool {
	for _, p := range patterns {
		if Match(p, candidate) {
			return true
		}
	}
	return false
}
