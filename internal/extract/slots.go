package extract

import (
	"strings"

	"intentc/internal/domain"
	"intentc/internal/normalize"
	"intentc/internal/rules"
)

var weatherNouns = map[string]bool{"weather": true, "forecast": true, "temperature": true}

var locationSkip = map[string]bool{"what's": true, "what": true, "how's": true, "how": true, "the": true, "is": true}

func (e *Extractor) weather(seg domain.Segment) (domain.Arguments, error) {
	f := seg.Form
	s := f.Folded
	for _, h := range e.lex.LocationPrepositions.FindAll(s) {
		if stop, ok := e.lex.LocationStops.MatchAt(s, h.Start); ok && stop.End > h.End {
			continue
		}
		a, b := h.End, len(s)
		if stop, ok := e.lex.LocationStops.Find(s, a); ok {
			b = stop.Start
		}
		for i := a; i < b; i++ {
			if strings.IndexByte("?!;", s[i]) >= 0 || (s[i] == '.' && (i+1 == len(s) || s[i+1] == ' ')) {
				b = i
				break
			}
		}
		a, b = stripEdges(s, a, b, ",:")
		if a >= b || isDigitByte(s[a]) {
			continue
		}
		return domain.Arguments{"location": f.Span(a, b)}, nil
	}

	toks := words(f)
	for i, t := range toks {
		if !weatherNouns[t.Text] {
			continue
		}
		j := i
		for j > 0 {
			prev := toks[j-1]
			text := strings.TrimSuffix(prev.Text, "'s")
			if locationSkip[text] || e.lex.Verbs.Has(text) || !startsUpper(f.Span(prev.Start, prev.End)) {
				break
			}
			j--
		}
		if j < i {
			name := original(f, toks[j:i])
			name = strings.TrimSuffix(strings.TrimSuffix(name, "'s"), "’s")
			return domain.Arguments{"location": name}, nil
		}
	}
	return nil, domain.Incomplete(domain.ToolGetWeather, "location", "no place named")
}

func (e *Extractor) contact(seg domain.Segment) (domain.Arguments, error) {
	f := seg.Form
	s := f.Folded
	toks := words(f)
	a := 0
	if n := e.lex.ContactVerbs.Prefix(fields(toks)); n > 0 {
		a = toks[n-1].End
	}
	var cuts [][2]int
	for _, h := range e.lex.ContactNoise.FindAll(s[a:]) {
		cuts = append(cuts, [2]int{a + h.Start, a + h.End})
	}
	query := cutRanges(f, a, len(s), cuts)
	query = strings.TrimSpace(strings.Trim(query, ".,;:!?\"' "))
	if fq := normalize.Fields(normalize.New(query).Folded); len(fq) > 1 && e.lex.Honorifics.Has(fq[0]) {
		qt := normalize.Words(query)
		query = query[qt[1].Start:]
	}
	if query == "" {
		return nil, domain.Incomplete(domain.ToolSearchContacts, "query", "no contact named")
	}
	return domain.Arguments{"query": query}, nil
}

func (e *Extractor) music(seg domain.Segment) (domain.Arguments, error) {
	f := seg.Form
	s := f.Folded
	a := 0
	if h, ok := e.lex.MusicVerbs.Find(s, 0); ok {
		a = h.End
	}
	for _, q := range normalize.QuoteSpans(s) {
		if q.Open >= a {
			x, y := q.InnerSpan()
			if song := strings.TrimSpace(f.Span(x, y)); song != "" {
				return domain.Arguments{"song": song}, nil
			}
		}
	}

	toks := tokensIn(words(f), a, len(s))
	quantified := false
	for {
		n := e.lex.MusicLeading.Prefix(fields(toks))
		if q := e.lex.MusicQuantifiers.Prefix(fields(toks)); q > n {
			n = q
			quantified = true
		}
		if n == 0 || n >= len(toks) {
			break
		}
		toks = toks[n:]
	}
	for {
		n := e.lex.MusicTrailing.Suffix(fields(toks))
		if n == 0 && quantified {
			n = e.lex.MusicGeneric.Suffix(fields(toks))
		}
		if n == 0 || n >= len(toks) {
			break
		}
		toks = toks[:len(toks)-n]
	}
	if e.musicFillerOnly(fields(toks)) {
		return nil, domain.Incomplete(domain.ToolPlayMusic, "song", "no song or genre named")
	}
	song := original(f, toks)
	if song == "" {
		return nil, domain.Incomplete(domain.ToolPlayMusic, "song", "nothing to play")
	}
	return domain.Arguments{"song": song}, nil
}

// musicFillerOnly reports whether the query is one generic or filler phrase
// such as "music" or "please".
func (e *Extractor) musicFillerOnly(f []string) bool {
	if len(f) == 0 {
		return false
	}
	for _, lex := range []rules.Lexicon{e.lex.MusicGeneric, e.lex.MusicTrailing, e.lex.MusicLeading, e.lex.MusicQuantifiers} {
		if lex.Prefix(f) == len(f) {
			return true
		}
	}
	return false
}

func isDigitByte(b byte) bool { return '0' <= b && b <= '9' }
