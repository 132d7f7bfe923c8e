package ledger

import "strings"

// Classifier decides whether a line-item category counts toward qualifying
// childcare expenses. Category assignment itself belongs to the ledger; the
// engine only consumes the tag.
type Classifier interface {
	IsNonQualifying(category string) bool
}

// nonQualifyingCategories is the fixed set of charges excluded from Box E.
// Matching is case-insensitive substring against the tag.
var nonQualifyingCategories = []string{
	"medical",
	"hospital",
	"transportation",
	"tuition",
	"education",
	"field trip",
	"registration",
	"late fee",
	"penalty",
}

// CategoryClassifier is the default Classifier over the fixed category set.
type CategoryClassifier struct {
	categories []string
}

// NewCategoryClassifier builds a classifier; extra categories extend the
// fixed set.
func NewCategoryClassifier(extra ...string) *CategoryClassifier {
	cats := make([]string, 0, len(nonQualifyingCategories)+len(extra))
	cats = append(cats, nonQualifyingCategories...)
	for _, c := range extra {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			cats = append(cats, c)
		}
	}
	return &CategoryClassifier{categories: cats}
}

// IsNonQualifying reports whether the category tag falls in the excluded set.
func (c *CategoryClassifier) IsNonQualifying(category string) bool {
	tag := strings.ToLower(strings.TrimSpace(category))
	if tag == "" {
		return false
	}
	for _, candidate := range c.categories {
		if strings.Contains(tag, candidate) {
			return true
		}
	}
	return false
}
