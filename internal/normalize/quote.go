package normalize

import (
	"unicode"
	"unicode/utf8"
)

// Quote is a paired quotation. Open is the offset of the opening mark,
// Close the offset just past the closing mark.
type Quote struct {
	Open       int
	Close      int
	innerStart int
	innerEnd   int
}

func (q Quote) Inner(s string) string { return s[q.innerStart:q.innerEnd] }

func (q Quote) InnerSpan() (int, int) { return q.innerStart, q.innerEnd }

func (q Quote) Contains(pos int) bool { return pos >= q.Open && pos < q.Close }

var closers = map[rune][]rune{
	'"':  {'"', '”'},
	'“':  {'”', '"'},
	'\'': {'\'', '’'},
	'‘':  {'’', '\''},
}

// QuoteSpans finds paired quotes in s. An apostrophe between letters never
// opens or closes a quote, and an unmatched mark is ignored.
func QuoteSpans(s string) []Quote {
	var out []Quote
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		ends, ok := closers[r]
		if !ok || !canOpen(s, i, size) {
			i += size
			continue
		}
		closeAt, closeSize := findClose(s, i+size, ends, r == '"' || r == '“')
		if closeAt < 0 {
			i += size
			continue
		}
		out = append(out, Quote{Open: i, Close: closeAt + closeSize, innerStart: i + size, innerEnd: closeAt})
		i = closeAt + closeSize
	}
	return out
}

// InQuote reports whether pos lies inside any of quotes.
func InQuote(quotes []Quote, pos int) bool {
	for _, q := range quotes {
		if q.Contains(pos) {
			return true
		}
	}
	return false
}

func canOpen(s string, i, size int) bool {
	if i > 0 {
		prev, _ := utf8.DecodeLastRuneInString(s[:i])
		if isWordRune(prev) {
			return false
		}
	}
	if i+size >= len(s) {
		return false
	}
	next, _ := utf8.DecodeRuneInString(s[i+size:])
	return !unicode.IsSpace(next)
}

func findClose(s string, from int, ends []rune, double bool) (int, int) {
	for j := from; j < len(s); {
		r, size := utf8.DecodeRuneInString(s[j:])
		if isCloser(r, ends) && j > from {
			if double {
				return j, size
			}
			prev, _ := utf8.DecodeLastRuneInString(s[:j])
			var next rune
			if j+size < len(s) {
				next, _ = utf8.DecodeRuneInString(s[j+size:])
			}
			if !unicode.IsSpace(prev) && !isWordRune(next) {
				return j, size
			}
		}
		j += size
	}
	return -1, 0
}

func isCloser(r rune, ends []rune) bool {
	for _, e := range ends {
		if r == e {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
