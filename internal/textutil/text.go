// Package textutil has the word and sentence primitives the compression
// stages count and cut with.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// WordCount returns the number of whitespace-delimited tokens in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Sentences splits text after '.', '!' or '?' when followed by whitespace.
// The punctuation stays on the sentence; the whitespace is dropped.
func Sentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < len(text) {
			r, size := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(r) {
				break
			}
			j += size
		}
		if j == i+1 {
			continue
		}
		if s := text[start : i+1]; strings.TrimSpace(s) != "" {
			sentences = append(sentences, s)
		}
		start = j
		i = j - 1
	}
	if start < len(text) {
		if s := text[start:]; strings.TrimSpace(s) != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// Tokens returns the case-folded word tokens of text. A token is a run of
// letters, digits or underscores.
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
}

// LastWords returns the trailing n words of text, or "" when text has n
// words or fewer.
func LastWords(text string, n int) string {
	words := strings.Fields(text)
	if n <= 0 || len(words) <= n {
		return ""
	}
	return strings.Join(words[len(words)-n:], " ")
}

// TruncateWords keeps the first n words of text, re-joined by single spaces.
func TruncateWords(text string, n int) string {
	words := strings.Fields(text)
	if n < 0 {
		n = 0
	}
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// Context returns text[start-radius : end+radius] trimmed, widened onto
// rune boundaries.
func Context(text string, start, end, radius int) string {
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return strings.TrimSpace(text[lo:hi])
}
