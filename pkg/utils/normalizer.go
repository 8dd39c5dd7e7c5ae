package utils

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextNormalizer folds text to a lowercase, accent-free form so that
// "Cómo" and "como" compare equal. Safe for concurrent use.
type TextNormalizer struct {
	pool sync.Pool
}

// NewTextNormalizer creates a new TextNormalizer instance.
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{
		pool: sync.Pool{
			New: func() any {
				return transform.Chain(
					norm.NFKD,                          // Decompose with compatibility decomposition
					runes.Remove(runes.In(unicode.Mn)), // Remove non-spacing marks
					runes.Map(unicode.ToLower),         // Convert to lowercase before normalization
					norm.NFKC,                          // Normalize with compatibility composition
				)
			},
		},
	}
}

// Normalize cleans up text using the normalizer.
// Returns empty string if normalization fails or input is empty.
func (n *TextNormalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}

	// Clean up whitespace while preserving newlines
	s = CompressWhitespacePreserveNewlines(s)
	if s == "" {
		return ""
	}

	t := n.pool.Get().(transform.Transformer)
	defer n.pool.Put(t)

	result, _, err := transform.String(t, s)
	if err != nil || result == "" {
		return ""
	}

	return result
}

// Contains checks if substr exists within s using the normalizer.
// Empty strings or normalization failures return false.
func (n *TextNormalizer) Contains(s, substr string) bool {
	if s == "" || substr == "" {
		return false
	}

	normalizedS := n.Normalize(s)
	normalizedSubstr := n.Normalize(substr)

	if normalizedS == "" || normalizedSubstr == "" {
		return strings.Contains(
			strings.ToLower(s),
			strings.ToLower(substr),
		)
	}

	return strings.Contains(normalizedS, normalizedSubstr)
}

// NormalizeAll folds every term and drops duplicates and empties,
// keeping the first occurrence order.
func (n *TextNormalizer) NormalizeAll(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	result := make([]string, 0, len(terms))

	for _, term := range terms {
		folded := n.Normalize(term)
		if folded == "" {
			continue
		}

		if _, ok := seen[folded]; ok {
			continue
		}

		seen[folded] = struct{}{}
		result = append(result, folded)
	}

	return result
}

// ContainsAny reports whether the folded form of s contains any of the
// already-folded terms. Terms should come from NormalizeAll.
func (n *TextNormalizer) ContainsAny(s string, foldedTerms []string) bool {
	folded := n.Normalize(s)
	if folded == "" {
		return false
	}

	for _, term := range foldedTerms {
		if strings.Contains(folded, term) {
			return true
		}
	}

	return false
}
