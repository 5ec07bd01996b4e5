package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"intentc/internal/classify"
	"intentc/internal/domain"
	"intentc/internal/normalize"
)

var selfPronouns = map[string]bool{"i": true, "i'm": true, "i'll": true, "i'd": true, "i've": true}

func (e *Extractor) message(seg domain.Segment, m classify.Match, ctx Context) (domain.Arguments, error) {
	f := seg.Form
	s := f.Folded
	toks := words(f)

	var name, body string
	switch {
	case strings.HasPrefix(s[m.Start:], "let ") && strings.HasSuffix(s[m.Start:m.End], "know"):
		inner := tokensIn(toks, m.Start, m.End)
		name = e.nameRun(f, inner[1:len(inner)-1])
		rest := tokensIn(toks, m.End, len(s))
		if len(rest) > 0 && rest[0].Text == "that" {
			body = e.unquotedBody(f, rest[0].End, len(s))
		} else {
			body = e.unquotedBody(f, m.End, len(s))
		}
	default:
		name, body = e.recipientAndBody(f, toks, m.End)
	}

	if name == "" || e.lex.Pronouns.Has(normalize.New(name).Folded) {
		name = ctx.LastPerson
	}
	if name == "" {
		return nil, domain.Incomplete(domain.ToolSendMessage, "recipient", "no recipient named or carried over")
	}
	if strings.TrimSpace(body) == "" {
		return nil, domain.Incomplete(domain.ToolSendMessage, "message", "no message body found")
	}
	return domain.Arguments{"recipient": name, "message": body}, nil
}

// recipientAndBody splits the text after the trigger into the addressee and
// the message body. The body is the first quoted span, or the text after a
// body marker, or after "that"; otherwise the first name is the addressee and
// the rest is the body.
func (e *Extractor) recipientAndBody(f normalize.Form, toks []normalize.Token, from int) (string, string) {
	s := f.Folded
	quotes := normalize.QuoteSpans(s)
	var quote *normalize.Quote
	for i := range quotes {
		if quotes[i].Open >= from {
			quote = &quotes[i]
			break
		}
	}
	marker, bodyAt, hasMarker := e.table.BodyStart(s, from)

	switch {
	case quote != nil && (!hasMarker || quote.Open < marker):
		a, b := quote.InnerSpan()
		body := f.Span(a, b)
		if !e.hasName(toks, from, quote.Open) {
			return e.recipient(f, toks, quote.Close, len(s)), body
		}
		return e.recipient(f, toks, from, quote.Open), body
	case hasMarker:
		return e.recipient(f, toks, from, marker), e.bodyFrom(f, quotes, bodyAt)
	}

	for _, t := range tokensIn(toks, from, len(s)) {
		if t.Text == "that" {
			return e.recipient(f, toks, from, t.Start), e.bodyFrom(f, quotes, t.End)
		}
	}

	rest := tokensIn(toks, from, len(s))
	if len(rest) > 1 && e.lex.Honorifics.Has(rest[0].Text) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return "", ""
	}
	n := 1
	for n < len(rest) && startsUpper(f.Span(rest[n].Start, rest[n].End)) && !selfPronouns[rest[n].Text] {
		n++
	}
	name := original(f, rest[:n])
	if n == len(rest) {
		return name, ""
	}
	return name, e.bodyFrom(f, quotes, rest[n].Start)
}

// hasName reports whether [a, b) holds any word other than message nouns.
func (e *Extractor) hasName(toks []normalize.Token, a, b int) bool {
	for _, t := range tokensIn(toks, a, b) {
		switch t.Text {
		case "a", "an", "the", "message", "text", "note", "quick", "this":
		default:
			return true
		}
	}
	return false
}

// recipient reads the addressee from [a, b): the name after to/for/with when
// present, otherwise the leading name.
func (e *Extractor) recipient(f normalize.Form, toks []normalize.Token, a, b int) string {
	region := tokensIn(toks, a, b)
	for i, t := range region {
		if e.lex.RecipientPrepositions.Has(t.Text) {
			if name := e.nameRun(f, region[i+1:]); name != "" {
				return name
			}
			break
		}
	}
	return e.nameRun(f, region)
}

// nameRun takes words up to the first stop word, without a leading honorific.
func (e *Extractor) nameRun(f normalize.Form, toks []normalize.Token) string {
	if len(toks) > 1 && e.lex.Honorifics.Has(toks[0].Text) {
		toks = toks[1:]
	}
	n := 0
	for n < len(toks) && !e.lex.RecipientStops.Has(toks[n].Text) {
		n++
	}
	return original(f, toks[:n])
}

// bodyFrom returns the message text starting at a. A body that is exactly one
// quoted span is returned without its quotes.
func (e *Extractor) bodyFrom(f normalize.Form, quotes []normalize.Quote, a int) string {
	s := f.Folded
	a, b := stripEdges(s, a, len(s), "")
	for _, q := range quotes {
		if q.Open == a && strings.Trim(s[q.Close:b], ".,;!? ") == "" {
			x, y := q.InnerSpan()
			return f.Span(x, y)
		}
	}
	return e.unquotedBody(f, a, b)
}

// unquotedBody trims whitespace and trailing . , ; from [a, b). ? and ! stay.
func (e *Extractor) unquotedBody(f normalize.Form, a, b int) string {
	s := f.Folded
	a, b = stripEdges(s, a, b, "")
	for b > a && strings.ContainsRune(".,;", rune(s[b-1])) {
		b--
	}
	a, b = stripEdges(s, a, b, "")
	return f.Span(a, b)
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
