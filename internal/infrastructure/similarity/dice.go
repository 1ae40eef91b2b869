// Package similarity scores lexical similarity between error texts.
package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Dice is the Sorensen-Dice coefficient over character bigrams, computed on
// whitespace-stripped text and scaled to 0..100. Comparison is case
// sensitive; an empty side always scores 0.
type Dice struct {
	metric *metrics.SorensenDice
}

func NewDice() *Dice {
	metric := metrics.NewSorensenDice()
	metric.CaseSensitive = true
	metric.NgramSize = 2
	return &Dice{metric: metric}
}

func (d *Dice) Score(a, b string) float64 {
	a, b = stripSpace(a), stripSpace(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	if utf8.RuneCountInString(a) < 2 || utf8.RuneCountInString(b) < 2 {
		return 0
	}
	// Canonical argument order keeps the score symmetric bit for bit.
	if b < a {
		a, b = b, a
	}
	return strutil.Similarity(a, b, d.metric) * 100
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
