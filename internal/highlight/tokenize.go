package highlight

import (
	"iter"
	"strings"
)

// Token is a lowercase word found in page text.
// Start and End are byte offsets of the original occurrence.
type Token struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Tokens returns a lazy sequence of the non-stop-word tokens in text.
// A token is an ASCII letter followed by letters, apostrophes or hyphens;
// every other byte separates tokens. The sequence can be ranged over repeatedly.
func Tokens(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		i := 0
		for i < len(text) {
			if !isASCIILetter(text[i]) {
				i++
				continue
			}
			start := i
			i++
			for i < len(text) && isWordByte(text[i]) {
				i++
			}
			word := strings.ToLower(text[start:i])
			if IsStopWord(word) {
				continue
			}
			if !yield(Token{Text: word, Start: start, End: i}) {
				return
			}
		}
	}
}

// Tokenize collects Tokens into a slice
func Tokenize(text string) []Token {
	var tokens []Token
	for tok := range Tokens(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordByte(c byte) bool {
	return isASCIILetter(c) || c == '\'' || c == '-'
}
