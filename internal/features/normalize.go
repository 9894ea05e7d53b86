// Package features implements the deterministic feature extractor. The
// normalization rules here mirror the ones applied when the model was
// trained; changing them without retraining silently degrades accuracy,
// which is why they are exercised directly by tests.
package features

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Replacement tokens shared with the training pipeline.
const (
	tokenURL    = "URL"
	tokenEmail  = "EMAIL"
	tokenMoney  = "MONEY"
	tokenNumber = "NUMBER"
)

var (
	urlRE    = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+)`)
	emailRE  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	moneyRE  = regexp.MustCompile(`(?i)(\$|usd|eur|sgd|£|₹)\s?\d[\d,]*(\.\d+)?`)
	numberRE = regexp.MustCompile(`\b\d+([.,]\d+)?\b`)
	wordRE   = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// Normalize applies the training-time text normalization: NFKC folding,
// URL/email/money/number token replacement, zero-width stripping, repeated
// character squeezing, lowercasing and whitespace collapsing.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = urlRE.ReplaceAllString(s, " "+tokenURL+" ")
	s = emailRE.ReplaceAllString(s, " "+tokenEmail+" ")
	s = moneyRE.ReplaceAllString(s, " "+tokenMoney+" ")
	s = numberRE.ReplaceAllString(s, " "+tokenNumber+" ")
	s = stripZeroWidth(s)
	s = squeezeRepeats(s, 2)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// Tokenize splits normalized text into word tokens, dropping punctuation
// the same way the training tokenizer does.
func Tokenize(normalized string) []string {
	cleaned := wordRE.ReplaceAllString(normalized, " ")
	return strings.Fields(cleaned)
}

// stripZeroWidth removes zero-width and BOM-like code points that mail
// clients sometimes inject.
func stripZeroWidth(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufe0f', '\ufeff':
			return -1
		}
		return r
	}, s)
}

// squeezeRepeats caps runs of the same rune at max occurrences, so
// "heeeeelp!!!!" and "heelp!!" normalize identically.
func squeezeRepeats(s string, max int) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	run := 0
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run <= max {
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}
