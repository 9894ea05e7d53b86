package features

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/schema"
	"github.com/mikey/email-classifier/internal/utils"
)

// Phrases counted by the urgency_terms feature. Frozen with the training
// pipeline; do not extend without retraining.
var urgencyPhrases = []string{
	"urgent",
	"act now",
	"limited time",
	"winner",
	"win",
	"free",
	"money",
	"congratulations",
	"click here",
	"verify",
	"expires",
	"immediately",
	"last chance",
}

// Extractor derives the pinned schema's feature vector from a raw email.
// It is stateless apart from the schema and safe for concurrent use.
type Extractor struct {
	schema *schema.Schema
	logger *zap.Logger
}

// NewExtractor creates an extractor for the registry's pinned schema. It
// fails if the schema names a feature this extractor cannot derive, so an
// incompatible artifact is rejected at startup rather than per request.
func NewExtractor(registry *schema.Registry, logger *zap.Logger) (*Extractor, error) {
	s := registry.Current()
	for _, f := range s.Features {
		if !supportedFeatures[f.Name] {
			return nil, fmt.Errorf("schema %q requires feature %q, which this extractor cannot derive", s.Version, f.Name)
		}
	}
	return &Extractor{schema: s, logger: logger}, nil
}

// Extract computes the ordered feature vector for an email. Absent
// optional signals take the schema's declared default; absent mandatory
// signals fail with MissingRequiredFeature. The same input always yields
// the same vector.
func (e *Extractor) Extract(email *core.RawEmail) (*core.FeatureVector, error) {
	sig := newSignals(email)

	values := make([]float64, len(e.schema.Features))
	for i, f := range e.schema.Features {
		if !sig.sourcePresent(f.Source) {
			if f.Required {
				return nil, &core.MissingRequiredFeatureError{Feature: f.Name}
			}
			values[i] = applyScaling(&f, f.Default)
			continue
		}
		values[i] = applyScaling(&f, sig.derive(f.Name))
	}

	e.logger.Debug("Features extracted",
		zap.String("schema_version", e.schema.Version),
		zap.Int("feature_count", len(values)))

	return &core.FeatureVector{
		SchemaVersion: e.schema.Version,
		Names:         e.schema.Names(),
		Values:        values,
	}, nil
}

// applyScaling clips and scales a raw value with the schema's frozen
// training-time parameters. Defaults pass through the same path so a
// substituted value lands in the same range as a derived one.
func applyScaling(f *schema.Feature, v float64) float64 {
	if f.Clip != nil {
		v = math.Min(math.Max(v, f.Clip.Min), f.Clip.Max)
	}
	if f.Scale == schema.ScaleMinMax {
		v = (v - f.Clip.Min) / (f.Clip.Max - f.Clip.Min)
	}
	return v
}

// supportedFeatures lists every feature name this extractor knows how to
// derive. A schema asking for anything else is incompatible.
var supportedFeatures = map[string]bool{
	"subject_length":       true,
	"subject_caps_ratio":   true,
	"subject_exclamations": true,
	"is_reply":             true,
	"body_length":          true,
	"body_token_count":     true,
	"body_caps_ratio":      true,
	"body_exclamations":    true,
	"avg_token_length":     true,
	"digit_ratio":          true,
	"url_count":            true,
	"money_count":          true,
	"number_count":         true,
	"urgency_terms":        true,
	"recipient_count":      true,
	"has_list_unsubscribe": true,
}

// signals holds the intermediate values features are derived from. They
// are computed once per email so every feature sees the same view.
type signals struct {
	email       *core.RawEmail
	rawSubject  string
	rawBody     string
	normSubject string
	normBody    string
	bodyTokens  []string
}

func newSignals(email *core.RawEmail) *signals {
	rawSubject := utils.SanitizeUTF8(email.Subject)
	rawBody := utils.SanitizeUTF8(email.Body)
	normBody := Normalize(rawBody)
	return &signals{
		email:       email,
		rawSubject:  rawSubject,
		rawBody:     rawBody,
		normSubject: Normalize(rawSubject),
		normBody:    normBody,
		bodyTokens:  Tokenize(normBody),
	}
}

// sourcePresent reports whether the raw-email signal backing a feature
// source exists at all on this email.
func (s *signals) sourcePresent(src schema.Source) bool {
	switch src {
	case schema.SourceSubject:
		return s.email.Subject != ""
	case schema.SourceBody:
		return s.email.Body != ""
	case schema.SourceHeaders:
		return len(s.email.Headers) > 0
	default:
		return true
	}
}

// derive computes a single raw feature value. Callers have already checked
// source presence; names were checked against supportedFeatures at
// construction.
func (s *signals) derive(name string) float64 {
	switch name {
	case "subject_length":
		return float64(utf8.RuneCountInString(s.normSubject))
	case "subject_caps_ratio":
		return capsRatio(s.rawSubject)
	case "subject_exclamations":
		return float64(strings.Count(s.rawSubject, "!"))
	case "is_reply":
		return boolFeature(strings.HasPrefix(strings.ToLower(strings.TrimSpace(s.rawSubject)), "re:"))
	case "body_length":
		return float64(utf8.RuneCountInString(s.normBody))
	case "body_token_count":
		return float64(len(s.bodyTokens))
	case "body_caps_ratio":
		return capsRatio(s.rawBody)
	case "body_exclamations":
		return float64(strings.Count(s.rawBody, "!"))
	case "avg_token_length":
		return avgTokenLength(s.bodyTokens)
	case "digit_ratio":
		return digitRatio(s.rawBody)
	case "url_count":
		return float64(len(urlRE.FindAllString(s.rawSubject+" "+s.rawBody, -1)))
	case "money_count":
		return float64(len(moneyRE.FindAllString(s.rawSubject+" "+s.rawBody, -1)))
	case "number_count":
		return bareNumberCount(s.rawSubject + " " + s.rawBody)
	case "urgency_terms":
		return countUrgencyTerms(s.normSubject + " " + s.normBody)
	case "recipient_count":
		return float64(len(s.email.To))
	case "has_list_unsubscribe":
		_, ok := s.email.Header("List-Unsubscribe")
		return boolFeature(ok)
	}
	return 0
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// capsRatio returns the share of letters that are upper case.
func capsRatio(s string) float64 {
	var letters, upper int
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

func digitRatio(s string) float64 {
	var total, digits int
	for _, r := range s {
		total++
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(digits) / float64(total)
}

func avgTokenLength(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var runes int
	for _, tok := range tokens {
		runes += utf8.RuneCountInString(tok)
	}
	return float64(runes) / float64(len(tokens))
}

// bareNumberCount counts standalone numeric literals. Digits inside a
// URL, email address or money amount do not count; the replacement order
// matches the normalizer's.
func bareNumberCount(text string) float64 {
	text = urlRE.ReplaceAllString(text, " ")
	text = emailRE.ReplaceAllString(text, " ")
	text = moneyRE.ReplaceAllString(text, " ")
	return float64(len(numberRE.FindAllString(text, -1)))
}

func countUrgencyTerms(normalized string) float64 {
	var n int
	for _, phrase := range urgencyPhrases {
		n += countWholePhrase(normalized, phrase)
	}
	return float64(n)
}

// countWholePhrase counts non-overlapping occurrences of phrase bounded by
// non-letter characters, so "win" does not match inside "winning".
func countWholePhrase(text, phrase string) int {
	var n, offset int
	for {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return n
		}
		start := offset + i
		end := start + len(phrase)
		if boundedBefore(text, start) && boundedAfter(text, end) {
			n++
		}
		offset = end
	}
}

func boundedBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !unicode.IsLetter(r)
}

func boundedAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !unicode.IsLetter(r)
}
