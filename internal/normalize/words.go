package normalize

import "unicode/utf8"

// Token is one word of a text with its byte range.
type Token struct {
	Text  string
	Start int
	End   int
}

// Words splits s into words: runs of letters, digits and marks, with inner
// apostrophes kept ("what's").
func Words(s string) []Token {
	var out []Token
	start := -1
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case isWordRune(r):
			if start < 0 {
				start = i
			}
		case (r == '\'' || r == '’') && start >= 0 && nextIsWord(s, i+size):
		default:
			if start >= 0 {
				out = append(out, Token{Text: s[start:i], Start: start, End: i})
				start = -1
			}
		}
		i += size
	}
	if start >= 0 {
		out = append(out, Token{Text: s[start:], Start: start, End: len(s)})
	}
	return out
}

// Fields returns just the word texts of s.
func Fields(s string) []string {
	toks := Words(s)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

func nextIsWord(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isWordRune(r)
}

// IsWordAt reports whether the rune starting at s[i] is part of a word.
func IsWordAt(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isWordRune(r)
}
