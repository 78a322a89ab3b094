package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardTokenizer(t *testing.T) {
	tok := NewStandardTokenizer()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "case normalization",
			input:    "The Pump Housing",
			expected: []string{"the", "pump", "housing"},
		},
		{
			name:     "number and unit separated",
			input:    "clearance is 5mm",
			expected: []string{"clearance", "is", "5", "mm"},
		},
		{
			name:     "thread designation",
			input:    "M8x1.25 bolt",
			expected: []string{"m", "8", "x", "1", "25", "bolt"},
		},
		{
			name:     "punctuation dropped",
			input:    "Note: torque=35Nm.",
			expected: []string{"note", "torque", "35", "nm"},
		},
		{
			name:     "hyphenated term",
			input:    "self-priming",
			expected: []string{"self", "priming"},
		},
		{
			name:     "accented letters kept",
			input:    "Café",
			expected: []string{"café"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
		{
			name:     "punctuation only",
			input:    "--- === ...",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tok.Tokenize(tt.input))
		})
	}
}

func TestWhitespaceTokenizer(t *testing.T) {
	tok := NewWhitespaceTokenizer()

	// The baseline keeps "5mm" glued together; that is exactly the
	// failure mode the standard strategy exists to fix.
	assert.Equal(t, []string{"clearance", "is", "5mm"}, tok.Tokenize("Clearance is 5mm"))
	assert.Empty(t, tok.Tokenize("   "))
}

func TestForName(t *testing.T) {
	assert.Equal(t, "whitespace", ForName("whitespace").Name())
	assert.Equal(t, "standard", ForName("standard").Name())
	assert.Equal(t, "standard", ForName("").Name())
	assert.Equal(t, "standard", ForName("unknown").Name())
}
