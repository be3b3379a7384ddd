// Package lexical provides tokenization, keyword extraction and lexical
// similarity scoring for Thai/English support questions.
package lexical

import (
	"strings"
	"unicode/utf8"
)

// Thai tone marks (mai ek through mai chattawa). They carry no lexical
// information for matching and users type them inconsistently, so they are
// stripped before tokenization.
const toneMarkLo, toneMarkHi = '่', '๋'

// minTokenLen is the minimum rune length of a useful token. Anything shorter
// is noise once tone marks are stripped.
const minTokenLen = 3

var stopwords map[string]struct{}

// Raw stopword list. Entries are normalized at init so that tone-mark
// stripping cannot desynchronize the list from the tokenizer output.
var rawStopwords = []string{
	// Thai function words
	"ที่", "การ", "และ", "ใน", "ของ", "ให้", "ได้", "ไม่", "ว่า", "จะ",
	"เป็น", "ไป", "มา", "กับ", "แล้ว", "ก็", "มี", "คือ", "ครับ", "ค่ะ",
	"คะ", "นะ", "อยาก", "ต้อง", "เรื่อง", "ยัง", "หรือ", "เมื่อ", "ถ้า",
	"อยู่", "อย่าง", "ทำ", "เลย", "ด้วย", "จาก", "ตาม", "โดย", "ต่อ",
	// English function words
	"the", "and", "for", "are", "was", "were", "been", "have", "has", "had",
	"does", "did", "will", "would", "should", "could", "may", "might", "must",
	"can", "what", "which", "who", "where", "when", "why", "how", "about",
	"this", "that", "these", "those", "with", "from", "into", "you", "your",
	"not", "but",
}

func init() {
	stopwords = make(map[string]struct{}, len(rawStopwords))
	for _, w := range rawStopwords {
		n := Normalize(w)
		if n != "" {
			stopwords[n] = struct{}{}
		}
	}
}

// Normalize lowercases text, drops Thai tone marks, and replaces every rune
// outside the allow-list (Latin letters, digits, Thai) with a single space.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= toneMarkLo && r <= toneMarkHi:
			// dropped entirely, not replaced with a space
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r >= 'ก' && r <= '๛':
			if pendingSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		default:
			pendingSpace = true
		}
	}
	return b.String()
}

// Tokenize splits normalized text on whitespace. Duplicates are kept; use
// ExtractKeywords for set semantics.
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}

// ExtractKeywords returns the set of indexable keywords in text: normalized
// tokens longer than two runes that are not stopwords, deduplicated in first
// occurrence order. Running it on its own joined output is a no-op.
func ExtractKeywords(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < minTokenLen {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}
	return keywords
}
