// Package slug builds lower-case ASCII URL slugs from published titles.
package slug

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// pool of decompose -> strip marks -> recompose chains
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	},
}

type Slugifier struct{}

func New() Slugifier { return Slugifier{} }

func (Slugifier) Slug(title string) string {
	return Make(title)
}

// symbolWords spells out symbols that would otherwise be dropped.
var symbolWords = map[rune]string{
	'&': "and",
	'$': "dollar",
	'%': "percent",
	'<': "less",
	'>': "greater",
	'|': "or",
}

// Make folds accents, keeps only ASCII letters and digits, and joins the
// whitespace-separated words with single hyphens. Punctuation is removed
// without splitting a word, so "app.js" becomes "appjs".
func Make(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	tr := chainPool.Get().(transform.Transformer)
	folded, _, err := transform.String(tr, title)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		default:
			if word, ok := symbolWords[r]; ok {
				b.WriteString(word)
			}
		}
	}
	return strings.Join(strings.Fields(b.String()), "-")
}
