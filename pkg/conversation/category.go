package conversation

import (
	"strings"
	"unicode"
)

// NormalizeCategory folds case and treats runs of spaces, hyphens and
// underscores as one separator, so "tax-law", "Tax Law" and "TAX_LAW" compare
// equal.
func NormalizeCategory(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	return strings.Join(fields, " ")
}

// CategorySlug is the route form of a category name: "Tax Law" → "tax-law".
func CategorySlug(category string) string {
	return strings.ReplaceAll(NormalizeCategory(category), " ", "-")
}

type categoryIndex struct {
	ordered []string
	byKey   map[string]string
}

func newCategoryIndex(categories []string) categoryIndex {
	idx := categoryIndex{byKey: map[string]string{}}
	for _, c := range categories {
		key := NormalizeCategory(c)
		if key == "" {
			continue
		}
		if _, dup := idx.byKey[key]; dup {
			continue
		}
		idx.byKey[key] = c
		idx.ordered = append(idx.ordered, c)
	}
	return idx
}

// resolve returns the canonical spelling of name.
func (c categoryIndex) resolve(name string) (string, bool) {
	canonical, ok := c.byKey[NormalizeCategory(name)]
	return canonical, ok
}
