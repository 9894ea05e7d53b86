package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "urls become url token",
			input: "Visit https://example.com/win today",
			want:  "visit url today",
		},
		{
			name:  "www urls without scheme",
			input: "go to www.example.com now",
			want:  "go to url now",
		},
		{
			name:  "email addresses become email token",
			input: "Contact bob@example.com please",
			want:  "contact email please",
		},
		{
			name:  "currency amounts become money token",
			input: "Only $99.99 today",
			want:  "only money today",
		},
		{
			name:  "bare numbers become number token",
			input: "call 555 now",
			want:  "call number now",
		},
		{
			name:  "repeated characters squeezed to two",
			input: "soooo cool!!!!",
			want:  "soo cool!!",
		},
		{
			name:  "whitespace collapsed",
			input: "  hello \t  world ",
			want:  "hello world",
		},
		{
			name:  "zero width characters stripped",
			input: "fr\u200be\u200ce",
			want:  "free",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	input := "WIN $1,000,000 at https://spam.example!!! Contact win@spam.example NOW"
	first := Normalize(input)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Normalize(input))
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	input := "Heeeello   from bob@example.com, send $50!!!"
	once := Normalize(input)
	assert.Equal(t, once, Normalize(once))
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "punctuation dropped",
			input: "click here!! money, now.",
			want:  []string{"click", "here", "money", "now"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "only punctuation",
			input: "!!! ... ???",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSqueezeRepeatsKeepsShortRuns(t *testing.T) {
	assert.Equal(t, "bookkeeper", squeezeRepeats("bookkeeper", 2))
	assert.Equal(t, "aa", squeezeRepeats("aaaaa", 2))
	assert.Equal(t, "", squeezeRepeats("", 2))
}
