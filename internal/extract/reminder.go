package extract

import (
	"regexp"
	"strings"

	"intentc/internal/domain"
	"intentc/internal/normalize"
)

var (
	relativeDelay = regexp.MustCompile(`\bin\s+(?:\d+(?:\.\d+)?|an?|` + numberWords + `)\s*-?\s*(?:hours?|hrs?|minutes?|mins?|seconds?|secs?)(?:\s+and\s+(?:\d+|` + numberWords + `)\s+(?:minutes?|mins?))?\b` +
		`|\bin\s+(?:half\s+an\s+hour|an\s+hour\s+and\s+a\s+half|a\s+few\s+minutes|a\s+bit)\b`)
	timePrepositions = map[string]bool{"at": true, "by": true, "around": true, "for": true, "on": true, "until": true, "till": true}
)

func (e *Extractor) reminder(seg domain.Segment) (domain.Arguments, error) {
	f := seg.Form
	s := f.Folded
	toks := words(f)

	a := 0
	if h, ok := e.lex.ReminderLeadIns.Find(s, 0); ok {
		a = h.End
	}

	var cuts [][2]int
	cut := func(start, end int) {
		cuts = append(cuts, [2]int{extendOverPreposition(toks, start), end})
	}

	var day string
	if h, ok := e.lex.DayWords.Find(s, 0); ok {
		day = h.Phrase
		cut(h.Start, h.End)
	}
	var clock string
	if c, ok := findClock(s); ok {
		ctx := contextMeridiem(e.lex, s)
		if day == "tonight" && ctx == meridiemNone {
			ctx = meridiemPM
		}
		h, known := c.resolve(ctx)
		clock = clockString(h, c.Minute, known)
		cut(c.Start, c.End)
	}
	var relative string
	if loc := relativeDelay.FindStringIndex(s); loc != nil && clock == "" {
		relative = f.Span(loc[0], loc[1])
		cut(loc[0], loc[1])
	}
	var period string
	for _, h := range append(e.lex.PMContext.FindAll(s), e.lex.AMContext.FindAll(s)...) {
		if period == "" {
			period = h.Phrase
		}
		cut(h.Start, h.End)
	}

	title := cutRanges(f, a, len(s), cuts)
	title = e.trimTitle(title)
	if title == "" {
		return nil, domain.Incomplete(domain.ToolCreateReminder, "title", "nothing to be reminded of")
	}

	var when string
	switch {
	case clock != "" && day != "":
		when = day + " " + clock
	case clock != "":
		when = clock
	case relative != "":
		when = relative
	case day != "":
		when = day
	case period != "":
		when = period
	default:
		return nil, domain.Incomplete(domain.ToolCreateReminder, "time", "no time given")
	}
	return domain.Arguments{"title": title, "time": when}, nil
}

// extendOverPreposition moves start back over an "at"/"on"/"by" that
// introduces the time phrase beginning there.
func extendOverPreposition(toks []normalize.Token, start int) int {
	for i, t := range toks {
		if t.Start >= start {
			if i > 0 && timePrepositions[toks[i-1].Text] {
				return toks[i-1].Start
			}
			return start
		}
	}
	return start
}

func (e *Extractor) trimTitle(title string) string {
	for {
		title = strings.TrimSpace(strings.Trim(title, ".,;:!? "))
		folded := normalize.Fields(normalize.New(title).Folded)
		toks := normalize.Words(title)
		if len(folded) != len(toks) || len(toks) < 2 {
			return title
		}
		if n := e.lex.TitleFillers.Prefix(folded); n > 0 && n < len(toks) {
			title = title[toks[n].Start:]
		} else if n := e.lex.Trailing.Suffix(folded); n > 0 && n < len(toks) {
			title = title[:toks[len(toks)-n-1].End]
		} else {
			return title
		}
	}
}
