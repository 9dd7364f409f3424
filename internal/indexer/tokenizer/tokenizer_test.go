package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"simple sentence", "Laboratory blood test results.", []string{"laboratory", "blood", "test", "results"}},
		{"punctuation and digits", "Sample #123: pH=7.4", []string{"sample", "123", "ph", "7", "4"}},
		{"diacritics", "Café Crème brûlée", []string{"cafe", "creme", "brulee"}},
		{"decomposed diacritics", "cafe\u0301 au lait", []string{"cafe", "au", "lait"}},
		{"single characters kept", "a b c", []string{"a", "b", "c"}},
		{"empty", "", []string{}},
		{"only separators", " -- ,, !! ", []string{}},
		{"non latin", "Анализ крови", []string{"анализ", "крови"}},
	}
	a := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, a.Terms(tt.input))
		})
	}
}

func TestTokenPositionsAndOffsets(t *testing.T) {
	text := "Urine  analysis, report."
	tokens := Default().Collect(text)
	require.Len(t, tokens, 3)
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
		assert.Equal(t, tok.Term, Fold(text[tok.Start:tok.End]))
	}
	assert.Equal(t, "analysis", text[tokens[1].Start:tokens[1].End])
}

func TestTokenizeIsRestartable(t *testing.T) {
	seq := Default().Tokenize("one two three")
	var first, second []string
	for tok := range seq {
		first = append(first, tok.Term)
	}
	for tok := range seq {
		second = append(second, tok.Term)
	}
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"one", "two", "three"}, first)
}

func TestTokenizeStopsEarly(t *testing.T) {
	count := 0
	for range Default().Tokenize("a b c d e f") {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestEnglishAnalyzer(t *testing.T) {
	a, err := New(English)
	require.NoError(t, err)
	assert.Equal(t, English, a.Name())

	tokens := a.Collect("The results of the testing")
	require.Len(t, tokens, 2)
	assert.Equal(t, "result", tokens[0].Term)
	assert.Equal(t, 0, tokens[0].Position)
	assert.Equal(t, "test", tokens[1].Term)
	assert.Equal(t, 1, tokens[1].Position)
}

func TestNewUnknownAnalyzer(t *testing.T) {
	_, err := New("klingon")
	assert.Error(t, err)

	a, err := New("")
	require.NoError(t, err)
	assert.Equal(t, Standard, a.Name())
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"running":  "runn",
		"analyses": "analys",
		"bodies":   "body",
		"glass":    "glass",
		"is":       "is",
	}
	for in, want := range tests {
		assert.Equal(t, want, stem(in), in)
	}
}
