// Helpers for word-level matching of free-form text against keyword lists.
package keyword

import "slices"

// Helper to check a single token against a list of tokens
func TokenInSet(tok string, set []string) bool {
	return slices.Contains(set, tok)
}

// Reports whether seq appears as a contiguous run within tokens. A single-token seq is a plain membership test.
func ContainsSequence(tokens, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(tokens) {
		return false
	}
	for i := 0; i+len(seq) <= len(tokens); i++ {
		if slices.Equal(tokens[i:i+len(seq)], seq) {
			return true
		}
	}
	return false
}

// Counts how many distinct entries of set occur among tokens.
func CountInSet(tokens []string, set map[string]bool) int {
	seen := make(map[string]bool)
	for _, tok := range tokens {
		if set[tok] && !seen[tok] {
			seen[tok] = true
		}
	}
	return len(seen)
}
