package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strip converts an HTML fragment to plain text. Block-ish structure is
// collapsed to single spaces, the result is trimmed. Invalid markup is
// handled leniently; on a hard parse failure the input is returned
// trimmed as-is rather than dropped.
func Strip(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}

	var b strings.Builder
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if text == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	})

	return strings.Join(strings.Fields(b.String()), " ")
}
