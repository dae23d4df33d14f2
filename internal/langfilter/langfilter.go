package langfilter

import (
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/orgball2608/comment-pulse/internal/domain"
)

// Filter keeps only comments whose text is detected as English before
// they reach the analysis stage. Detection failures drop the comment,
// the same way an undetectable language would.
type Filter struct {
	detector lingua.LanguageDetector
}

func New() *Filter {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English,
			lingua.Spanish,
			lingua.French,
			lingua.German,
			lingua.Portuguese,
			lingua.Italian,
			lingua.Dutch,
			lingua.Russian,
			lingua.Arabic,
			lingua.Hindi,
			lingua.Japanese,
			lingua.Korean,
			lingua.Chinese,
		).
		Build()
	return &Filter{detector: detector}
}

// IsEnglish reports whether text is detected as English. Empty or
// whitespace-only text is never English.
func (f *Filter) IsEnglish(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	lang, ok := f.detector.DetectLanguageOf(text)
	return ok && lang == lingua.English
}

// EnglishComments returns the subset of comments with English text,
// preserving order.
func (f *Filter) EnglishComments(comments []domain.Comment) []domain.Comment {
	kept := make([]domain.Comment, 0, len(comments))
	for _, c := range comments {
		if f.IsEnglish(c.Text) {
			kept = append(kept, c)
		}
	}
	return kept
}
