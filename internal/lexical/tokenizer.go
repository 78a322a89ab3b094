package lexical

import (
	"strings"
	"unicode"
)

// Tokenizer turns text into the token stream the lexical index scores
// over. It is a pluggable strategy: whitespace splitting is known to be
// insufficient for numeric/unit-bearing technical text, so the choice is
// kept explicit rather than baked in.
type Tokenizer interface {
	// Tokenize returns the normalized tokens of the text, in order.
	Tokenize(text string) []string

	// Name identifies the strategy for status reporting.
	Name() string
}

// StandardTokenizer lowercases and splits alphanumeric runs apart from
// punctuation, and letter runs apart from digit runs. "5mm" becomes
// ["5" "mm"], "M8x1.25" becomes ["m" "8" "x" "1" "25"], so queries match
// dimensioned values regardless of spacing in the source.
type StandardTokenizer struct{}

// NewStandardTokenizer returns the default tokenization strategy.
func NewStandardTokenizer() *StandardTokenizer {
	return &StandardTokenizer{}
}

// Name implements Tokenizer.
func (t *StandardTokenizer) Name() string { return "standard" }

// Tokenize implements Tokenizer.
func (t *StandardTokenizer) Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	var currentClass runeClass

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		class := classify(r)
		if class == classOther {
			flush()
			currentClass = classOther
			continue
		}
		if class != currentClass {
			flush()
			currentClass = class
		}
		current.WriteRune(r)
	}
	flush()

	return tokens
}

type runeClass int

const (
	classOther runeClass = iota
	classLetter
	classDigit
)

func classify(r rune) runeClass {
	switch {
	case unicode.IsLetter(r):
		return classLetter
	case unicode.IsDigit(r):
		return classDigit
	default:
		return classOther
	}
}

// WhitespaceTokenizer lowercases and splits on whitespace only. It is
// the baseline strategy that failed to separate numbers from units in
// the field; it stays available so the two can be compared on real
// corpora before trusting either.
type WhitespaceTokenizer struct{}

// NewWhitespaceTokenizer returns the baseline whitespace strategy.
func NewWhitespaceTokenizer() *WhitespaceTokenizer {
	return &WhitespaceTokenizer{}
}

// Name implements Tokenizer.
func (t *WhitespaceTokenizer) Name() string { return "whitespace" }

// Tokenize implements Tokenizer.
func (t *WhitespaceTokenizer) Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// ForName returns the tokenizer registered under the given name, or the
// standard strategy for an empty or unknown name.
func ForName(name string) Tokenizer {
	switch name {
	case "whitespace":
		return NewWhitespaceTokenizer()
	default:
		return NewStandardTokenizer()
	}
}
