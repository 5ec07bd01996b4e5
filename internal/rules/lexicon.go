package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"intentc/internal/normalize"
)

// Hit is one occurrence of a lexicon phrase in a text.
type Hit struct {
	Phrase string
	Start  int
	End    int
}

// Lexicon is a compiled list of folded phrases, longest first.
type Lexicon struct {
	raw      []string
	tokens   [][]string
	patterns []*regexp.Regexp
}

func NewLexicon(phrases []string) (Lexicon, error) {
	seen := make(map[string]struct{}, len(phrases))
	var raw []string
	for _, p := range phrases {
		p = strings.Join(strings.Fields(normalize.New(p).Folded), " ")
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		raw = append(raw, p)
	}
	sort.SliceStable(raw, func(i, j int) bool { return len(raw[i]) > len(raw[j]) })
	lex := Lexicon{raw: raw, tokens: make([][]string, len(raw)), patterns: make([]*regexp.Regexp, len(raw))}
	for i, p := range raw {
		lex.tokens[i] = normalize.Fields(p)
		re, err := PhraseRegexp(p)
		if err != nil {
			return Lexicon{}, fmt.Errorf("compile phrase %q: %w", p, err)
		}
		lex.patterns[i] = re
	}
	return lex, nil
}

// PhraseRegexp compiles p as an anchored pattern whose words may be separated by any whitespace.
func PhraseRegexp(p string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + strings.Join(quoteWords(strings.Fields(p)), `\s+`) + `)`)
}

// Bounded reports whether s[start:end] sits on word boundaries. An apostrophe
// inside a word ("what's") is part of the word.
func Bounded(s string, start, end int) bool {
	if start > 0 && startsWord(s[start:]) && wordBefore(s, start) {
		return false
	}
	if end > start && endsWord(s[:end]) && wordAt(s, end) {
		return false
	}
	return true
}

func startsWord(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return isWord(r)
}

func endsWord(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return isWord(r)
}

func wordBefore(s string, i int) bool {
	r, size := utf8.DecodeLastRuneInString(s[:i])
	if r == '\'' && i-size > 0 {
		return endsWord(s[:i-size])
	}
	return isWord(r)
}

func wordAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, size := utf8.DecodeRuneInString(s[i:])
	if r == '\'' {
		return normalize.IsWordAt(s, i+size)
	}
	return isWord(r)
}

func quoteWords(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = regexp.QuoteMeta(w)
	}
	return out
}

func isWord(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func (l Lexicon) Phrases() []string { return append([]string{}, l.raw...) }

func (l Lexicon) Len() int { return len(l.raw) }

// Has reports whether phrase is exactly one of the lexicon entries.
func (l Lexicon) Has(phrase string) bool {
	phrase = strings.Join(strings.Fields(phrase), " ")
	for _, p := range l.raw {
		if p == phrase {
			return true
		}
	}
	return false
}

// Prefix returns the word count of the longest entry that starts words, or 0.
func (l Lexicon) Prefix(words []string) int {
	best := 0
	for _, toks := range l.tokens {
		if len(toks) <= best || len(toks) > len(words) {
			continue
		}
		if equalWords(toks, words[:len(toks)]) {
			best = len(toks)
		}
	}
	return best
}

// Suffix returns the word count of the longest entry that ends words, or 0.
func (l Lexicon) Suffix(words []string) int {
	best := 0
	for _, toks := range l.tokens {
		if len(toks) <= best || len(toks) > len(words) {
			continue
		}
		if equalWords(toks, words[len(words)-len(toks):]) {
			best = len(toks)
		}
	}
	return best
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MatchAt returns the longest entry occurring at pos on word boundaries.
func (l Lexicon) MatchAt(s string, pos int) (Hit, bool) {
	for i, re := range l.patterns {
		loc := re.FindStringIndex(s[pos:])
		if loc == nil || loc[1] == 0 {
			continue
		}
		end := pos + loc[1]
		if !Bounded(s, pos, end) {
			continue
		}
		return Hit{Phrase: l.raw[i], Start: pos, End: end}, true
	}
	return Hit{}, false
}

// FindAll returns non-overlapping occurrences in s, leftmost first.
func (l Lexicon) FindAll(s string) []Hit {
	if len(l.patterns) == 0 {
		return nil
	}
	var hits []Hit
	for pos := 0; pos < len(s); {
		if h, ok := l.MatchAt(s, pos); ok {
			hits = append(hits, h)
			pos = h.End
			continue
		}
		_, size := utf8.DecodeRuneInString(s[pos:])
		pos += size
	}
	return hits
}

// Find returns the first occurrence starting at or after from.
func (l Lexicon) Find(s string, from int) (Hit, bool) {
	for _, h := range l.FindAll(s) {
		if h.Start >= from {
			return h, true
		}
	}
	return Hit{}, false
}
