package segment

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"intentc/internal/domain"
	"intentc/internal/normalize"
	"intentc/internal/rules"
)

// Segmenter splits an utterance into intent-bearing clauses.
type Segmenter struct {
	table *rules.Table
}

func New(table *rules.Table) *Segmenter {
	return &Segmenter{table: table}
}

type cutKind int

const (
	cutGated cutKind = iota
	cutHard
)

type cut struct {
	start int
	end   int
	kind  cutKind
}

// Segments yields the clauses of f in order. The sequence is lazy and can be
// ranged over any number of times; each range rescans f.
func (s *Segmenter) Segments(f normalize.Form) iter.Seq[domain.Segment] {
	return func(yield func(domain.Segment) bool) {
		text := f.Folded
		if strings.TrimSpace(text) == "" {
			return
		}
		quotes := normalize.QuoteSpans(text)
		index := 0
		from := 0
		emit := func(a, b int) bool {
			a, b = s.trim(text, quotes, a, b)
			if a >= b {
				return true
			}
			seg := domain.Segment{
				Index: index,
				Start: f.OriginalOffset(a),
				End:   f.OriginalOffset(b),
				Text:  f.Span(a, b),
				Form:  f.Slice(a, b),
			}
			index++
			return yield(seg)
		}
		for c := range s.cuts(text, quotes) {
			if c.kind == cutGated && !s.verbFollows(text, c.end) {
				continue
			}
			if !emit(from, c.start) {
				return
			}
			from = c.end
		}
		emit(from, len(text))
	}
}

// All collects every segment of f.
func (s *Segmenter) All(f normalize.Form) []domain.Segment {
	var out []domain.Segment
	for seg := range s.Segments(f) {
		out = append(out, seg)
	}
	return out
}

func (s *Segmenter) cuts(text string, quotes []normalize.Quote) iter.Seq[cut] {
	return func(yield func(cut) bool) {
		words := normalize.Words(text)
		w := 0
		for i := 0; i < len(text); {
			r, size := utf8.DecodeRuneInString(text[i:])
			if normalize.InQuote(quotes, i) {
				i += size
				continue
			}
			var c cut
			found := false
			switch r {
			case ',':
				c, found = cut{start: i, end: i + size, kind: cutGated}, true
			case ';', '\n':
				c, found = cut{start: i, end: i + size, kind: cutHard}, true
			case '.', '!', '?':
				if followedBySpace(text, i+size) {
					kind := cutHard
					if r == '.' && s.table.AbbreviationBefore(text, i) {
						kind = cutGated
					}
					c, found = cut{start: i, end: i + size, kind: kind}, true
				}
			default:
				for w < len(words) && words[w].Start < i {
					w++
				}
				if w < len(words) && words[w].Start == i && (words[w].Text == "and" || words[w].Text == "then") {
					c, found = cut{start: i, end: words[w].End, kind: cutGated}, true
				}
			}
			if found {
				if !yield(c) {
					return
				}
				i = c.end
				continue
			}
			i += size
		}
	}
}

func followedBySpace(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r)
}

// verbFollows reports whether the text after pos, once leading fillers are
// skipped, starts with a governing verb.
func (s *Segmenter) verbFollows(text string, pos int) bool {
	words := normalize.Fields(text[pos:])
	lex := s.table.Lex()
	for {
		n := lex.Leading.Prefix(words)
		if n == 0 || n == len(words) {
			break
		}
		words = words[n:]
	}
	return lex.Verbs.Prefix(words) > 0
}

// trim narrows [a, b) to exclude separators, whitespace, a trailing period
// and leading or trailing filler words.
func (s *Segmenter) trim(text string, quotes []normalize.Quote, a, b int) (int, int) {
	lex := s.table.Lex()
	for {
		a, b = trimPunct(text, quotes, a, b)
		if a >= b {
			return a, b
		}
		words := normalize.Words(text[a:b])
		fields := texts(words)
		if lex.Leading.Prefix(fields) == len(fields) || lex.Trailing.Suffix(fields) == len(fields) {
			return a, a
		}
		changed := false
		if n := lex.Leading.Prefix(fields); n > 0 {
			a += words[n].Start
			changed = true
		} else if n := lex.Trailing.Suffix(fields); n > 0 {
			last := words[len(words)-n]
			if !normalize.InQuote(quotes, a+last.Start) {
				b = a + words[len(words)-n-1].End
				changed = true
			}
		}
		if !changed {
			return a, b
		}
	}
}

func trimPunct(text string, quotes []normalize.Quote, a, b int) (int, int) {
	for a < b {
		r, size := utf8.DecodeRuneInString(text[a:b])
		if !unicode.IsSpace(r) && !strings.ContainsRune(",;:.!?-", r) {
			break
		}
		a += size
	}
	for a < b {
		r, size := utf8.DecodeLastRuneInString(text[a:b])
		if normalize.InQuote(quotes, b-size) {
			break
		}
		if !unicode.IsSpace(r) && !strings.ContainsRune(",;:.", r) {
			break
		}
		b -= size
	}
	return a, b
}

func texts(words []normalize.Token) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Text
	}
	return out
}
