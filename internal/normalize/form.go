package normalize

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Form is an utterance together with its case-folded rendering.
// index[i] is the byte offset in Original of the rune that produced Folded[i];
// index has one extra trailing entry equal to len(Original).
type Form struct {
	Original string
	Folded   string
	index    []int
}

// New folds s rune by rune with full Unicode case folding. Accents are kept.
// The typographic apostrophe is folded to ASCII so lexicon phrases match either spelling.
func New(s string) Form {
	if s == "" {
		return Form{}
	}
	caser := cases.Fold()
	var b strings.Builder
	b.Grow(len(s))
	index := make([]int, 0, len(s)+1)
	for i, r := range s {
		start := b.Len()
		switch {
		case r == '’':
			b.WriteByte('\'')
		case r < utf8.RuneSelf:
			if 'A' <= r && r <= 'Z' {
				r += 'a' - 'A'
			}
			b.WriteByte(byte(r))
		default:
			b.WriteString(caser.String(string(r)))
		}
		for range b.Len() - start {
			index = append(index, i)
		}
	}
	index = append(index, len(s))
	return Form{Original: s, Folded: b.String(), index: index}
}

func (f Form) Len() int { return len(f.Folded) }

func (f Form) Empty() bool { return strings.TrimSpace(f.Folded) == "" }

// OriginalOffset maps a folded byte offset onto the original text.
func (f Form) OriginalOffset(i int) int {
	if len(f.index) == 0 {
		return 0
	}
	if i <= 0 {
		return f.index[0]
	}
	if i >= len(f.index) {
		return f.index[len(f.index)-1]
	}
	return f.index[i]
}

// Span returns the original-case text of the folded range [start, end).
func (f Form) Span(start, end int) string {
	a, b := f.OriginalOffset(start), f.OriginalOffset(end)
	if a >= b {
		return ""
	}
	return f.Original[a:b]
}

// Slice returns the sub-form of the folded range [start, end) with offsets rebased to zero.
func (f Form) Slice(start, end int) Form {
	start = max(0, min(start, len(f.Folded)))
	end = max(start, min(end, len(f.Folded)))
	if start == end {
		return Form{}
	}
	base := f.OriginalOffset(start)
	stop := f.OriginalOffset(end)
	index := make([]int, 0, end-start+1)
	for i := start; i < end; i++ {
		index = append(index, f.index[i]-base)
	}
	index = append(index, stop-base)
	return Form{Original: f.Original[base:stop], Folded: f.Folded[start:end], index: index}
}
