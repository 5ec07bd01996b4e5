package extract

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"intentc/internal/classify"
	"intentc/internal/domain"
	"intentc/internal/normalize"
	"intentc/internal/rules"
)

type Options struct {
	HourFormat domain.HourFormat
}

// Context carries what earlier segments of the same utterance established.
type Context struct {
	// LastPerson is the most recent contact query or message recipient.
	LastPerson string
}

// Observe records the person slot of a successful call, if it has one.
func (c Context) Observe(call domain.ToolCall) Context {
	var person any
	switch call.Tool {
	case domain.ToolSearchContacts:
		person = call.Arguments["query"]
	case domain.ToolSendMessage:
		person = call.Arguments["recipient"]
	}
	if p, ok := person.(string); ok && strings.TrimSpace(p) != "" {
		c.LastPerson = p
	}
	return c
}

// Extractor turns a classified segment into tool arguments. Safe for concurrent use.
type Extractor struct {
	table *rules.Table
	lex   *rules.Lexicons
	opts  Options
}

func New(table *rules.Table, opts Options) *Extractor {
	if opts.HourFormat == "" {
		opts.HourFormat = domain.Hour24
	}
	return &Extractor{table: table, lex: table.Lex(), opts: opts}
}

// Extract fills the slots of m.Tool from seg. It fails with a
// domain.ErrExtractionIncomplete FieldError naming the missing slot.
func (e *Extractor) Extract(seg domain.Segment, m classify.Match, ctx Context) (domain.Arguments, error) {
	switch m.Tool {
	case domain.ToolGetWeather:
		return e.weather(seg)
	case domain.ToolSetAlarm:
		return e.alarm(seg)
	case domain.ToolSetTimer:
		return e.timer(seg)
	case domain.ToolSendMessage:
		return e.message(seg, m, ctx)
	case domain.ToolCreateReminder:
		return e.reminder(seg)
	case domain.ToolSearchContacts:
		return e.contact(seg)
	case domain.ToolPlayMusic:
		return e.music(seg)
	default:
		return nil, domain.ErrUnclassified
	}
}

func (e *Extractor) alarm(seg domain.Segment) (domain.Arguments, error) {
	s := seg.Form.Folded
	c, ok := findClock(s)
	if !ok {
		return nil, domain.Incomplete(domain.ToolSetAlarm, "hour", "no time of day found")
	}
	h, _ := c.resolve(contextMeridiem(e.lex, s))
	if e.opts.HourFormat == domain.Hour12 && h >= 0 && h <= 23 {
		h %= 12
		if h == 0 {
			h = 12
		}
	}
	return domain.Arguments{"hour": h, "minute": c.Minute}, nil
}

func (e *Extractor) timer(seg domain.Segment) (domain.Arguments, error) {
	d, ok := findDuration(seg.Form.Folded)
	if !ok {
		return nil, domain.Incomplete(domain.ToolSetTimer, "minutes", "no duration found")
	}
	if !fitsInt(d.minutes) {
		return nil, domain.Implausible(domain.ToolSetTimer, "minutes", d.minutes, "duration is out of range")
	}
	minutes, ok := wholeMinutes(d.minutes)
	if !ok {
		return nil, domain.Implausible(domain.ToolSetTimer, "minutes", d.minutes, "duration is not a whole number of minutes")
	}
	return domain.Arguments{"minutes": minutes}, nil
}

// words tokenizes the folded text of f.
func words(f normalize.Form) []normalize.Token {
	return normalize.Words(f.Folded)
}

func fields(toks []normalize.Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

// original returns the original-case text between the first and last token.
func original(f normalize.Form, toks []normalize.Token) string {
	if len(toks) == 0 {
		return ""
	}
	return f.Span(toks[0].Start, toks[len(toks)-1].End)
}

// tokensIn returns the tokens lying fully inside [a, b).
func tokensIn(toks []normalize.Token, a, b int) []normalize.Token {
	var out []normalize.Token
	for _, t := range toks {
		if t.Start >= a && t.End <= b {
			out = append(out, t)
		}
	}
	return out
}

// stripEdges trims whitespace and the given punctuation from both ends of
// [a, b) in s.
func stripEdges(s string, a, b int, punct string) (int, int) {
	for a < b {
		r, size := utf8.DecodeRuneInString(s[a:b])
		if !unicode.IsSpace(r) && !strings.ContainsRune(punct, r) {
			break
		}
		a += size
	}
	for a < b {
		r, size := utf8.DecodeLastRuneInString(s[a:b])
		if !unicode.IsSpace(r) && !strings.ContainsRune(punct, r) {
			break
		}
		b -= size
	}
	return a, b
}

// cutRanges removes the ranges in cuts from [a, b) of f and joins what is left
// with single spaces, in original case.
func cutRanges(f normalize.Form, a, b int, cuts [][2]int) string {
	var parts []string
	pos := a
	flush := func(end int) {
		if end <= pos {
			return
		}
		x, y := stripEdges(f.Folded, pos, end, ",;")
		if x < y {
			parts = append(parts, f.Span(x, y))
		}
	}
	for _, c := range sortedRanges(cuts) {
		if c[1] <= pos || c[0] >= b {
			continue
		}
		flush(max(c[0], pos))
		pos = max(pos, c[1])
	}
	flush(b)
	return strings.Join(parts, " ")
}

func sortedRanges(in [][2]int) [][2]int {
	out := append([][2]int{}, in...)
	slices.SortStableFunc(out, func(x, y [2]int) int { return cmp.Compare(x[0], y[0]) })
	return out
}
