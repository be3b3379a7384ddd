package lexical

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases latin", "Hello WORLD", "hello world"},
		{"strips punctuation", "what's up?!", "what s up"},
		{"keeps digits", "error 404 page", "error 404 page"},
		{"strips thai tone marks", "ค่ะ", "คะ"},
		{"keeps thai text", "ลืมรหัสผาน", "ลืมรหัสผาน"},
		{"strips emoji and symbols", "ราคา 💰 $100", "ราคา 100"},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Normalize(tc.input))
		})
	}
}

func TestExtractKeywords_FiltersShortAndStopwords(t *testing.T) {
	keywords := ExtractKeywords("What is the price of the course, and how can I pay?")

	for _, kw := range keywords {
		assert.Greater(t, utf8.RuneCountInString(kw), 2, "keyword %q too short", kw)
		_, isStop := stopwords[kw]
		assert.False(t, isStop, "keyword %q is a stopword", kw)
	}
	assert.Contains(t, keywords, "price")
	assert.Contains(t, keywords, "course")
	assert.NotContains(t, keywords, "the")
	assert.NotContains(t, keywords, "is")
}

func TestExtractKeywords_Deduplicates(t *testing.T) {
	keywords := ExtractKeywords("course course COURSE lesson")
	assert.Equal(t, []string{"course", "lesson"}, keywords)
}

func TestExtractKeywords_Idempotent(t *testing.T) {
	inputs := []string{
		"ลืมรหัสผ่าน เข้าสู่ระบบไม่ได้ ช่วยด้วยครับ",
		"How do I reset my password for the login page?",
		"ชำระเงินด้วยบัตรเครดิต payment failed error 500",
	}
	for _, input := range inputs {
		first := ExtractKeywords(input)
		second := ExtractKeywords(strings.Join(first, " "))
		assert.Equal(t, first, second, "input %q", input)
	}
}

func TestExtractKeywords_Empty(t *testing.T) {
	assert.Empty(t, ExtractKeywords(""))
	assert.Empty(t, ExtractKeywords("!!! ??? ..."))
	assert.Empty(t, ExtractKeywords("a an is"))
}

func TestTokenize_SplitsOnWhitespace(t *testing.T) {
	tokens := Tokenize("hello   world\nfoo\tbar")
	assert.Equal(t, []string{"hello", "world", "foo", "bar"}, tokens)
}
